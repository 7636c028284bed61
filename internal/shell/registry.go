// Package shell implements the Wi-Fi console commands and the registry that
// dispatches typed command lines to them.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/metrics"
	"github.com/vitaminmoo/wifictl/internal/session"
)

// Exit statuses returned by Dispatch.
const (
	StatusOK    = 0
	StatusUsage = 1
)

var ErrDuplicateCommand = errors.New("command already registered")

// Env is what every handler runs against.
type Env struct {
	Session *session.Session
	Log     *zap.Logger
	Station config.StationConfig
	Iperf   iperf.Defaults
}

// Runner is a parsed command. Run performs the action; a returned error is
// logged and never changes the exit status.
type Runner interface {
	Run(ctx context.Context, env *Env) error
}

// Command describes one console command. New returns a fresh grammar for
// each invocation.
type Command struct {
	Name string
	Help string
	New  func() Runner
}

// Registry maps command names to commands.
type Registry struct {
	env     *Env
	out     io.Writer
	errOut  io.Writer
	metrics *metrics.Metrics

	mu   sync.RWMutex
	cmds map[string]Command
}

// NewRegistry returns an empty registry. Help and usage text is written to
// out, parse errors to errOut.
func NewRegistry(env *Env, out, errOut io.Writer) *Registry {
	m := env.Session.Metrics()
	return &Registry{
		env:     env,
		out:     out,
		errOut:  errOut,
		metrics: m,
		cmds:    make(map[string]Command),
	}
}

func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cmds[c.Name]; ok || c.Name == "help" {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, c.Name)
	}
	r.cmds[c.Name] = c
	return nil
}

// Lookup finds a command by exact, case-sensitive name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cmds[name]
	return c, ok
}

// Commands returns every registered command sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Command) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the sorted command names, including help.
func (r *Registry) Names() []string {
	names := []string{"help"}
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return names
}

// PrintHelp lists the commands with their one-line help.
func (r *Registry) PrintHelp(w io.Writer) {
	cmds := r.Commands()
	width := len("help")
	for _, c := range cmds {
		width = max(width, len(c.Name))
	}
	fmt.Fprintf(w, "  %-*s  %s\n", width, "help", "Print the list of registered commands")
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-*s  %s\n", width, c.Name, c.Help)
	}
}

// Dispatch runs one command line and returns its exit status.
func (r *Registry) Dispatch(ctx context.Context, line string) int {
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(r.errOut, "%v\n", err)
		r.count("-", "usage")
		return StatusUsage
	}
	if len(args) == 0 {
		return StatusOK
	}

	name := args[0]
	if name == "help" {
		r.PrintHelp(r.out)
		r.count(name, "ok")
		return StatusOK
	}

	cmd, ok := r.Lookup(name)
	if !ok {
		fmt.Fprintf(r.errOut, "unknown command: %s\n", name)
		r.count("unknown", "usage")
		return StatusUsage
	}

	grammar := cmd.New()
	help, err := r.parse(cmd, grammar, args[1:])
	if err != nil {
		r.count(name, "usage")
		return StatusUsage
	}
	if help {
		r.count(name, "help")
		return StatusOK
	}

	if err := grammar.Run(ctx, r.env); err != nil {
		r.env.Log.Error(name+" failed", zap.Error(err))
		r.count(name, "failed")
		return StatusOK
	}
	r.count(name, "ok")
	return StatusOK
}

type exitRequest struct{ code int }

// parse fills grammar from args. A help request reports help=true. Parse
// errors are printed with a usage line before being returned.
func (r *Registry) parse(cmd Command, grammar Runner, args []string) (help bool, err error) {
	parser, err := kong.New(grammar,
		kong.Name(cmd.Name),
		kong.Description(cmd.Help),
		kong.Writers(r.out, r.errOut),
		kong.Exit(func(code int) { panic(exitRequest{code}) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		return false, fmt.Errorf("build %s grammar: %w", cmd.Name, err)
	}

	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(exitRequest); !ok {
				panic(v)
			}
			help, err = true, nil
		}
	}()

	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintf(r.errOut, "%s: %v\n", cmd.Name, err)
		fmt.Fprintf(r.errOut, "usage: %s\n", strings.TrimSpace(cmd.Name+" "+parser.Model.Summary()))
		return false, err
	}
	return false, nil
}

func (r *Registry) count(command, status string) {
	r.metrics.Commands.WithLabelValues(command, status).Inc()
}
