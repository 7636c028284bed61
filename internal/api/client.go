// Package api is the typed client of the Wi-Fi agent running on the
// evaluation board. It implements wifi.Stack and iperf.Engine by mapping
// every call onto a JSON request over the device link.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/metrics"
	"github.com/vitaminmoo/wifictl/internal/protocol"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

// Transport carries requests to the agent. *ble.Link implements it.
type Transport interface {
	Do(ctx context.Context, method, path string, body []byte) (protocol.Message, error)
	APIPath(endpoint string) string
	Events() <-chan protocol.Message
	Close() error
}

// StatusError is returned for responses with a status code of 400 or more.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to one agent.
type Client struct {
	t       Transport
	log     *zap.Logger
	metrics *metrics.Metrics

	events    chan wifi.Event
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New wraps t and starts translating its event frames. Close stops it.
func New(t Transport, log *zap.Logger, m *metrics.Metrics) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	c := &Client{
		t:       t,
		log:     log,
		metrics: m,
		events:  make(chan wifi.Event, cap(t.Events())+1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.pump()
	return c
}

// Close closes the transport and waits for the event pump to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.t.Close()
		<-c.done
	})
	return err
}

// Events implements wifi.Stack.
func (c *Client) Events() <-chan wifi.Event { return c.events }

func (c *Client) pump() {
	defer close(c.done)
	defer close(c.events)
	for m := range c.t.Events() {
		ev, err := decodeEvent(m)
		if err != nil {
			c.log.Warn("bad event", zap.String("name", m.Header.Name), zap.Error(err))
			continue
		}
		select {
		case c.events <- ev:
		case <-c.stop:
			return
		}
	}
}

func decodeEvent(m protocol.Message) (wifi.Event, error) {
	var ev wifi.Event
	if len(m.Body) > 0 {
		if err := json.Unmarshal(m.Body, &ev); err != nil {
			return ev, err
		}
	}
	switch kind := wifi.EventKind(m.Header.Name); kind {
	case wifi.EventScanDone, wifi.EventSTAGotIP, wifi.EventSTADisconnected:
		ev.Kind = kind
	default:
		return ev, fmt.Errorf("unknown event %q", m.Header.Name)
	}
	return ev, nil
}

// Send issues one request. Non-nil payloads are JSON encoded.
func (c *Client) Send(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	path := c.t.APIPath(endpoint)
	resp, err := c.t.Do(ctx, method, path, body)
	if err != nil {
		c.metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if resp.Header.StatusCode >= 400 {
		c.metrics.Requests.WithLabelValues(method, "status").Inc()
		return nil, &StatusError{Method: method, Path: endpoint, Code: resp.Header.StatusCode, Body: string(resp.Body)}
	}
	c.metrics.Requests.WithLabelValues(method, "ok").Inc()
	return resp.Body, nil
}

// GetJSON fetches endpoint into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, req, out any) error {
	body, err := c.Send(ctx, "GET", endpoint, req)
	if err != nil {
		return err
	}
	return decode(endpoint, body, out)
}

// PostJSON posts payload and ignores any response body.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any) error {
	_, err := c.Send(ctx, "POST", endpoint, payload)
	return err
}

func decode(endpoint string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(body) == 0 {
		return errors.New(endpoint + ": empty response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s: %w", endpoint, err)
	}
	return nil
}
