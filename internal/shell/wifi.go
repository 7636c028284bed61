package shell

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/session"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

type staCmd struct {
	SSID     string `arg:"" name:"ssid" help:"SSID of AP"`
	Password string `arg:"" name:"pass" optional:"" help:"password of AP"`
}

// Run leaves the current network if needed, then joins the requested one
// and waits for an address. The join result is only logged.
func (c *staCmd) Run(ctx context.Context, env *Env) error {
	s := env.Session
	env.Log.Info(fmt.Sprintf("sta connecting to '%s'", c.SSID))

	if s.Signal.Has(session.Connected) {
		s.SetReconnect(false)
		s.Leave()
		if err := s.Stack.Disconnect(ctx); err != nil {
			env.Log.Warn("disconnect failed", zap.Error(err))
		} else {
			s.Signal.Wait(ctx, session.Disconnected, env.Station.LeaveTimeout)
		}
	}
	s.SetReconnect(true)

	if err := s.Stack.SetMode(ctx, wifi.ModeSTA); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := s.Stack.SetConfig(ctx, wifi.InterfaceSTA, wifi.NewSTAConfig(c.SSID, c.Password)); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	if err := s.Stack.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	joined := s.Signal.Wait(ctx, session.Connected, env.Station.JoinTimeout)
	env.Log.Debug("join finished", zap.String("ssid", c.SSID), zap.Bool("connected", joined))
	return nil
}

type apCmd struct {
	SSID     string `arg:"" name:"ssid" help:"SSID of AP"`
	Password string `arg:"" name:"pass" optional:"" help:"password of AP"`
}

// Run switches to AP mode. A short passphrase leaves the radio untouched.
func (c *apCmd) Run(ctx context.Context, env *Env) error {
	s := env.Session
	s.SetReconnect(false)

	cfg, err := wifi.NewAPConfig(c.SSID, c.Password)
	if errors.Is(err, wifi.ErrPassphraseTooShort) {
		s.SetReconnect(true)
		env.Log.Error("password less than 8")
		return nil
	} else if err != nil {
		return err
	}

	if err := s.Stack.SetMode(ctx, wifi.ModeAP); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := s.Stack.SetConfig(ctx, wifi.InterfaceAP, cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	env.Log.Info(fmt.Sprintf("AP mode, %s", cfg.AP.SSID), zap.String("auth", string(cfg.AP.AuthMode)))
	return nil
}

type scanCmd struct {
	SSID string `arg:"" name:"ssid" optional:"" help:"SSID of AP want to be scanned"`
}

func (c *scanCmd) Run(ctx context.Context, env *Env) error {
	s := env.Session
	env.Log.Info("sta start to scan")
	if err := s.Stack.SetMode(ctx, wifi.ModeSTA); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if err := s.Stack.StartScan(ctx, wifi.ScanConfig{SSID: c.SSID}); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	return nil
}

type queryCmd struct{}

func (c *queryCmd) Run(ctx context.Context, env *Env) error {
	s := env.Session
	mode, err := s.Stack.Mode(ctx)
	if err != nil {
		return fmt.Errorf("get mode: %w", err)
	}

	switch mode {
	case wifi.ModeAP:
		cfg, err := s.Stack.Config(ctx, wifi.InterfaceAP)
		if err != nil {
			return fmt.Errorf("get ap config: %w", err)
		}
		if cfg.AP == nil {
			return errors.New("ap config missing")
		}
		env.Log.Info(fmt.Sprintf("AP mode, %s %s", cfg.AP.SSID, cfg.AP.AuthMode))
	case wifi.ModeSTA:
		if !s.Signal.Has(session.Connected) {
			env.Log.Info("sta mode, disconnected")
			return nil
		}
		cfg, err := s.Stack.Config(ctx, wifi.InterfaceSTA)
		if err != nil {
			return fmt.Errorf("get sta config: %w", err)
		}
		ssid := ""
		if cfg.STA != nil {
			ssid = cfg.STA.SSID
		}
		env.Log.Info(fmt.Sprintf("sta mode, connected %s", ssid))
	default:
		env.Log.Info("NULL mode")
	}
	return nil
}
