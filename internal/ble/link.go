package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vitaminmoo/wifictl/internal/protocol"
	"github.com/vitaminmoo/wifictl/internal/util"
)

var (
	ErrClosed  = errors.New("ble link closed")
	ErrTimeout = errors.New("timeout waiting for response")
)

const eventBuffer = 32

// writer is the request characteristic.
type writer interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// notifier is the response characteristic.
type notifier interface {
	EnableNotifications(callback func(buf []byte)) error
}

// Options tune a Link.
type Options struct {
	MTU            int
	WriteInterval  time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Link exchanges API frames with the agent. Requests may be issued from
// several goroutines; responses are matched to them by request ID and
// event frames are delivered on Events.
type Link struct {
	MAC string // lowercase, no separators

	write      writer
	log        *zap.Logger
	limiter    *rate.Limiter
	timeout    time.Duration
	mtu        int
	disconnect func() error

	writeMu sync.Mutex

	mu      sync.Mutex
	asm     protocol.Assembler
	pending map[string]chan protocol.Message
	events  chan protocol.Message
	closed  bool
}

func newLink(w writer, n notifier, mac string, opts Options) (*Link, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MTU <= 0 {
		opts.MTU = DefaultMTU
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	limit := rate.Inf
	if opts.WriteInterval > 0 {
		limit = rate.Every(opts.WriteInterval)
	}

	l := &Link{
		MAC:     mac,
		write:   w,
		log:     opts.Logger,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.RequestTimeout,
		mtu:     opts.MTU,
		pending: make(map[string]chan protocol.Message),
		events:  make(chan protocol.Message, eventBuffer),
	}
	if err := n.EnableNotifications(l.onNotify); err != nil {
		return nil, fmt.Errorf("enable notifications: %w", err)
	}
	return l, nil
}

// Events delivers event frames. The channel is closed by Close.
func (l *Link) Events() <-chan protocol.Message { return l.events }

// APIPath builds an API path for this device.
func (l *Link) APIPath(endpoint string) string {
	return fmt.Sprintf("/api/1.0/%s%s", l.MAC, endpoint)
}

func (l *Link) onNotify(buf []byte) {
	if ce := l.log.Check(zap.DebugLevel, "notification"); ce != nil {
		ce.Write(zap.Int("bytes", len(buf)), zap.String("dump", util.HexDump(buf)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	for _, frame := range l.asm.Feed(buf) {
		m, err := protocol.Unmarshal(frame)
		if err != nil {
			l.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		l.log.Debug("frame received",
			zap.String("type", m.Header.Type),
			zap.String("id", m.Header.ID),
			zap.String("body", util.Printable(m.Body)))

		switch m.Header.Type {
		case protocol.TypeEvent:
			select {
			case l.events <- m:
			default:
				l.log.Warn("event queue full, dropping", zap.String("event", m.Header.Name))
			}
		case protocol.TypeResponse:
			ch, ok := l.pending[m.Header.ID]
			if !ok {
				l.log.Debug("response for unknown request", zap.String("id", m.Header.ID))
				continue
			}
			delete(l.pending, m.Header.ID)
			ch <- m
		default:
			l.log.Debug("ignoring frame", zap.String("type", m.Header.Type))
		}
	}
}

// Do sends one API request and waits for its response.
func (l *Link) Do(ctx context.Context, method, path string, body []byte) (protocol.Message, error) {
	hdr, seq := protocol.NewRequest(method, path)
	frame, err := protocol.Marshal(protocol.Message{Header: hdr, Body: body, Seq: seq})
	if err != nil {
		return protocol.Message{}, err
	}

	ch := make(chan protocol.Message, 1)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return protocol.Message{}, ErrClosed
	}
	l.pending[hdr.ID] = ch
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.pending, hdr.ID)
		l.mu.Unlock()
	}()

	l.log.Debug("request", zap.String("method", method), zap.String("path", path), zap.String("id", hdr.ID))
	if err := l.send(ctx, frame); err != nil {
		return protocol.Message{}, err
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case m := <-ch:
		return m, nil
	case <-timer.C:
		return protocol.Message{}, fmt.Errorf("%w (%s %s)", ErrTimeout, method, path)
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// send writes frame in MTU sized chunks, paced by the limiter.
func (l *Link) send(ctx context.Context, frame []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	for off := 0; off < len(frame); off += l.mtu {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		end := min(off+l.mtu, len(frame))
		if _, err := l.write.WriteWithoutResponse(frame[off:end]); err != nil {
			return fmt.Errorf("write chunk at offset %d: %w", off, err)
		}
	}
	return nil
}

// Close closes the event channel and disconnects the device.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	if l.disconnect != nil {
		return l.disconnect()
	}
	return nil
}
