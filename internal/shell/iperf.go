package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/session"
)

type iperfCmd struct {
	Client   optAddr `short:"c" placeholder:"<ip>" help:"run in client mode, connecting to <ip>"`
	Server   bool    `short:"s" help:"run in server mode"`
	UDP      bool    `short:"u" name:"udp" help:"use UDP rather than TCP"`
	Port     optPort `short:"p" placeholder:"<port>" help:"server port to listen on/connect to"`
	Interval optInt  `short:"i" placeholder:"<interval>" help:"seconds between periodic bandwidth reports"`
	Time     optInt  `short:"t" placeholder:"<time>" help:"time in seconds to transmit for"`
	TOS      optTOS  `short:"S" name:"tos" placeholder:"<precedence TID0~TID7>" help:"set IP TOS"`
	Window   optInt  `short:"w" placeholder:"<window size>" help:"set TCP window size (socket buffer size)"`
	Abort    bool    `short:"a" help:"abort running iperf"`
}

func (c *iperfCmd) request() iperf.Request {
	var r iperf.Request
	if c.Client.Set {
		a := c.Client.Value
		r.Client = &a
	}
	r.Server = c.Server
	r.UDP = c.UDP
	if c.Port.Set {
		p := int(c.Port.Value)
		r.Port = &p
	}
	if c.Interval.Set {
		r.Interval = &c.Interval.Value
	}
	if c.Time.Set {
		r.Time = &c.Time.Value
	}
	if c.TOS.Set {
		r.TOS = &c.TOS.Value
	}
	if c.Window.Set {
		r.TCPWindow = &c.Window.Value
	}
	return r
}

func (c *iperfCmd) Run(ctx context.Context, env *Env) error {
	s := env.Session
	if c.Abort {
		if err := s.Engine.Stop(ctx); err != nil {
			return fmt.Errorf("stop iperf: %w", err)
		}
		return nil
	}

	req := c.request()
	if err := req.Validate(); err != nil {
		env.Log.Error(err.Error())
		return nil
	}

	local, err := s.LocalIP(ctx)
	switch {
	case errors.Is(err, session.ErrSTANoIP):
		env.Log.Error("sta has no IP")
		return nil
	case err != nil:
		env.Log.Error("no local IP", zap.Error(err))
		return nil
	}

	cfg, err := iperf.Build(req, local, env.Iperf)
	if err != nil {
		env.Log.Error("invalid iperf options", zap.Error(err))
		return nil
	}

	fields := []zap.Field{zap.Uint8("tos", cfg.TOS)}
	if cfg.Flag.Has(iperf.FlagTCPWindow) {
		fields = append(fields, zap.String("window", humanize.IBytes(uint64(cfg.TCPWindow))))
	}
	env.Log.Info(cfg.String(), fields...)

	if err := s.Engine.Start(ctx, cfg); err != nil {
		return fmt.Errorf("start iperf: %w", err)
	}
	return nil
}
