// Package cli is the wifictl process command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/api"
	"github.com/vitaminmoo/wifictl/internal/ble"
	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/logging"
	"github.com/vitaminmoo/wifictl/internal/metrics"
	"github.com/vitaminmoo/wifictl/internal/session"
	"github.com/vitaminmoo/wifictl/internal/shell"
	"github.com/vitaminmoo/wifictl/internal/sim"
	"github.com/vitaminmoo/wifictl/internal/tui"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

// CLI is the root command structure for wifictl.
type CLI struct {
	Config  string `short:"c" type:"path" help:"Configuration file (default: wifictl.yaml)"`
	Verbose bool   `short:"v" help:"Enable verbose debug output"`
	Backend string `help:"Device backend: ble or sim (overrides config)"`
	Device  string `help:"BLE device name to connect to (overrides config)"`

	// Default command - console
	Shell    ShellCmd    `cmd:"" default:"withargs" help:"Interactive console (default)"`
	Exec     ExecCmd     `cmd:"" help:"Run console command lines and exit"`
	Commands CommandsCmd `cmd:"" help:"List console commands"`
}

// ExitError carries a non-zero console status out of Run.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.Device != "" {
		cfg.BLE.Device = c.Device
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// console is a running backend plus the command registry driving it.
type console struct {
	cfg      *config.Config
	log      *zap.Logger
	session  *session.Session
	registry *shell.Registry
	closers  []func() error
}

func (c *console) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	_ = c.log.Sync()
	return errors.Join(errs...)
}

// start builds logging, metrics, the backend, the session and the command
// registry. Log output goes to logOut; command help and parse errors go to
// out and errOut.
func (c *CLI) start(ctx context.Context, cfg *config.Config, logOut, out, errOut io.Writer) (*console, error) {
	log, err := logging.New(cfg.Logging, logOut, c.Verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	con := &console{cfg: cfg, log: log}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
			if err := metrics.Serve(cfg.Metrics.Addr, cfg.Metrics.Path, reg); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	stack, engine, err := c.backend(ctx, con, m)
	if err != nil {
		_ = con.Close()
		return nil, err
	}

	sess := session.New(stack, engine, log, m)
	con.closers = append(con.closers, func() error { sess.Close(); return nil })
	if err := sess.Init(ctx); err != nil {
		_ = con.Close()
		return nil, err
	}
	con.session = sess

	env := &shell.Env{
		Session: sess,
		Log:     log,
		Station: cfg.Station,
		Iperf: iperf.Defaults{
			Port:     cfg.Iperf.Port,
			Interval: cfg.Iperf.Interval,
			Time:     cfg.Iperf.Time,
		},
	}
	con.registry = shell.NewRegistry(env, out, errOut)
	if err := shell.Register(con.registry); err != nil {
		_ = con.Close()
		return nil, err
	}
	return con, nil
}

func (c *CLI) backend(ctx context.Context, con *console, m *metrics.Metrics) (wifi.Stack, iperf.Engine, error) {
	switch con.cfg.Backend {
	case config.BackendSim:
		dev := sim.New(con.cfg.Sim, con.log)
		con.closers = append(con.closers, dev.Close)
		con.log.Info("using simulated device", zap.Int("networks", len(con.cfg.Sim.Networks)))
		return dev, sim.NewEngine(dev), nil

	case config.BackendBLE:
		link, err := ble.Connect(ctx, con.cfg.BLE, con.log.Named("ble"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect device: %w", err)
		}
		client := api.New(link, con.log.Named("api"), m)
		con.closers = append(con.closers, client.Close)
		info, err := client.Info(ctx)
		if err != nil {
			con.log.Warn("device info unavailable", zap.Error(err))
		} else {
			con.log.Info("device",
				zap.String("id", info.ID),
				zap.String("fw", info.FWVersion),
				zap.String("api", info.APIVersion),
				zap.String("chip", info.Chip))
		}
		return client, client.Iperf(), nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", con.cfg.Backend)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- Shell Command ---

type ShellCmd struct {
	Plain bool `help:"Read lines from stdin instead of the interactive console"`
}

func (s *ShellCmd) Run(globals *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}

	plain := s.Plain || cfg.Shell.Plain || !isatty.IsTerminal(os.Stdin.Fd())
	if plain {
		con, err := globals.start(ctx, cfg, os.Stderr, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		defer con.Close()
		return repl(ctx, con.registry, os.Stdin, os.Stdout, cfg.Shell.Prompt, isatty.IsTerminal(os.Stdin.Fd()))
	}

	sink := tui.NewSink()
	con, err := globals.start(ctx, cfg,
		logging.NewLineWriter(sink.Line),
		logging.NewLineWriter(sink.Line),
		logging.NewLineWriter(sink.Line))
	if err != nil {
		return err
	}
	defer con.Close()

	sig := con.session.Signal
	return tui.Run(ctx, con.registry, sink, tui.Options{
		Title:  "wifictl " + cfg.Backend,
		Prompt: cfg.Shell.Prompt,
		Status: func() (string, bool) {
			return "sta " + sig.Bits().String(), sig.Has(session.Connected)
		},
	})
}

// --- Exec Command ---

type ExecCmd struct {
	Lines []string `arg:"" help:"Command lines, one per argument"`
}

func (e *ExecCmd) Run(globals *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	con, err := globals.start(ctx, cfg, os.Stderr, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer con.Close()

	if code := execLines(ctx, con.registry, e.Lines); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// --- Commands Command ---

type CommandsCmd struct{}

func (c *CommandsCmd) Run(globals *CLI) error {
	// Listing never touches the device.
	sess := session.New(nil, nil, nil, nil)
	r := shell.NewRegistry(&shell.Env{Session: sess, Log: zap.NewNop()}, os.Stdout, os.Stderr)
	if err := shell.Register(r); err != nil {
		return err
	}
	r.PrintHelp(os.Stdout)
	return nil
}
