// Package tui is the interactive terminal console: a scrollback of log
// output above a command line with history and completion.
package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

const maxPending = 1000

// Sink collects output lines for the console. Lines written before the
// console starts are held back and replayed in order once it runs.
type Sink struct {
	mu      sync.Mutex
	p       *tea.Program
	pending []string
}

// NewSink returns an unattached sink.
func NewSink() *Sink { return &Sink{} }

// Line delivers one line; it is the callback for logging.NewLineWriter.
func (s *Sink) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		if len(s.pending) == maxPending {
			s.pending = s.pending[1:]
		}
		s.pending = append(s.pending, line)
		return
	}
	s.p.Send(LineMsg(line))
}

// attach routes lines to p. The backlog is sent while the lock is held so
// later lines cannot overtake it.
func (s *Sink) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	backlog := s.pending
	s.pending = nil
	go func() {
		defer s.mu.Unlock()
		for _, l := range backlog {
			p.Send(LineMsg(l))
		}
	}()
}

func (s *Sink) detach() {
	s.mu.Lock()
	s.p = nil
	s.mu.Unlock()
}

// Run starts the console and blocks until the user quits or ctx is done.
func Run(ctx context.Context, d Dispatcher, sink *Sink, opts Options) error {
	m := NewModel(ctx, d, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.attach(p)
	defer sink.detach()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}
