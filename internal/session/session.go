// Package session holds the process-wide Wi-Fi session: the stack and
// measurement engine collaborators, the connection signal, and the
// reconnect policy applied to asynchronous stack events.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/metrics"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

// ErrSTANoIP is returned by LocalIP in station mode before an address is
// acquired.
var ErrSTANoIP = errors.New("sta has no IP")

// Session is shared by every command handler.
type Session struct {
	Stack  wifi.Stack
	Engine iperf.Engine
	Signal *Signal

	log       *zap.Logger
	metrics   *metrics.Metrics
	reconnect atomic.Bool

	initOnce sync.Once
	initErr  error
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a session. Init must be called before commands run.
func New(stack wifi.Stack, engine iperf.Engine, log *zap.Logger, m *metrics.Metrics) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	s := &Session{
		Stack:   stack,
		Engine:  engine,
		Signal:  NewSignal(),
		log:     log,
		metrics: m,
	}
	s.reconnect.Store(true)
	return s
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger { return s.log }

// Metrics returns the session metrics.
func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

// Reconnect reports whether a station disconnect triggers a reconnect.
func (s *Session) Reconnect() bool { return s.reconnect.Load() }

// SetReconnect sets the station auto-reconnect policy.
func (s *Session) SetReconnect(v bool) { s.reconnect.Store(v) }

// Leave marks the station as no longer connected ahead of a disconnect
// request. The disconnect event later sets Disconnected.
func (s *Session) Leave() {
	s.Signal.Clear(Connected)
	s.metrics.Connected.Set(0)
}

// Init starts the stack in null mode and begins handling its events. Only
// the first call has any effect.
func (s *Session) Init(ctx context.Context) error {
	s.initOnce.Do(func() {
		if err := s.Stack.Start(ctx); err != nil {
			s.initErr = fmt.Errorf("start wifi: %w", err)
			return
		}
		if err := s.Stack.SetMode(ctx, wifi.ModeNull); err != nil {
			s.initErr = fmt.Errorf("set null mode: %w", err)
			return
		}

		runCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.run(runCtx)
	})
	return s.initErr
}

// Close stops event handling and waits for the event goroutine to exit.
func (s *Session) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	events := s.Stack.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.log.Debug("event channel closed")
				return
			}
			s.Handle(ctx, ev)
		}
	}
}

// Handle applies one stack event. It is called from the event goroutine and
// is exported for backends that deliver events synchronously.
func (s *Session) Handle(ctx context.Context, ev wifi.Event) {
	s.metrics.Events.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case wifi.EventScanDone:
		s.onScanDone(ctx)
	case wifi.EventSTAGotIP:
		s.onGotIP()
	case wifi.EventSTADisconnected:
		s.onDisconnected(ctx)
	default:
		s.log.Debug("ignoring event", zap.Stringer("event", ev))
	}
}

func (s *Session) onScanDone(ctx context.Context) {
	n, err := s.Stack.ScanCount(ctx)
	if err != nil {
		s.log.Error("Failed to get scan result count", zap.Error(err))
		return
	}
	records, err := s.Stack.ScanRecords(ctx, n)
	if err != nil {
		s.log.Error("Failed to get scan results", zap.Error(err))
		return
	}
	for _, r := range records {
		s.log.Info(fmt.Sprintf("[%s][rssi=%d]", r.SSID, r.RSSI))
	}
	s.log.Info("sta scan done")
}

func (s *Session) onGotIP() {
	s.Signal.Update(Connected, Disconnected)
	s.metrics.Connected.Set(1)
}

func (s *Session) onDisconnected(ctx context.Context) {
	if s.Reconnect() {
		s.log.Info("sta disconnect, reconnect...")
		if err := s.Stack.Connect(ctx); err != nil {
			s.log.Error("reconnect failed", zap.Error(err))
		}
	} else {
		s.log.Info("sta disconnect")
	}
	s.Signal.Update(Disconnected, Connected)
	s.metrics.Connected.Set(0)
}

// LocalIP returns the address of the active interface: the station
// interface in station mode (only once connected), the AP interface
// otherwise.
func (s *Session) LocalIP(ctx context.Context) (netip.Addr, error) {
	mode, err := s.Stack.Mode(ctx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("get mode: %w", err)
	}
	ifx := wifi.InterfaceAP
	if mode == wifi.ModeSTA {
		if !s.Signal.Has(Connected) {
			return netip.Addr{}, ErrSTANoIP
		}
		ifx = wifi.InterfaceSTA
	}
	info, err := s.Stack.IPInfo(ctx, ifx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("get %s ip: %w", ifx, err)
	}
	if !info.HasIP() {
		return netip.Addr{}, iperf.ErrNoLocalIP
	}
	return info.IP, nil
}
