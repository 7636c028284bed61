package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/wifictl/internal/protocol"
)

// loopback plays the agent side of both characteristics.
type loopback struct {
	mu       sync.Mutex
	notify   func([]byte)
	asm      protocol.Assembler
	chunks   [][]byte
	requests []protocol.Message
	silent   bool
	writeErr error
}

func (lb *loopback) EnableNotifications(cb func([]byte)) error {
	lb.notify = cb
	return nil
}

func (lb *loopback) WriteWithoutResponse(p []byte) (int, error) {
	lb.mu.Lock()
	if lb.writeErr != nil {
		lb.mu.Unlock()
		return 0, lb.writeErr
	}
	lb.chunks = append(lb.chunks, append([]byte(nil), p...))
	frames := lb.asm.Feed(p)
	var replies [][]byte
	for _, f := range frames {
		req, err := protocol.Unmarshal(f)
		if err != nil {
			continue
		}
		lb.requests = append(lb.requests, req)
		if lb.silent {
			continue
		}
		resp, _ := protocol.Marshal(protocol.Message{
			Header: protocol.Header{Type: protocol.TypeResponse, ID: req.Header.ID, StatusCode: 200},
			Body:   []byte(`{"path":"` + req.Header.Path + `"}`),
			Seq:    req.Seq,
		})
		replies = append(replies, resp)
	}
	lb.mu.Unlock()

	for _, r := range replies {
		lb.notify(r)
	}
	return len(p), nil
}

func (lb *loopback) emit(t *testing.T, m protocol.Message) {
	t.Helper()
	frame, err := protocol.Marshal(m)
	require.NoError(t, err)
	lb.notify(frame)
}

func newTestLink(t *testing.T, lb *loopback, opts Options) *Link {
	t.Helper()
	l, err := newLink(lb, lb, "aabbccddeeff", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLinkRequestResponse(t *testing.T) {
	lb := &loopback{}
	l := newTestLink(t, lb, Options{MTU: 16})

	path := l.APIPath("/wifi/mode")
	assert.Equal(t, "/api/1.0/aabbccddeeff/wifi/mode", path)

	resp, err := l.Do(context.Background(), "GET", path, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeResponse, resp.Header.Type)
	assert.Equal(t, 200, resp.Header.StatusCode)
	assert.JSONEq(t, `{"path":"/api/1.0/aabbccddeeff/wifi/mode"}`, string(resp.Body))

	require.Len(t, lb.requests, 1)
	assert.Equal(t, "GET", lb.requests[0].Header.Method)
	assert.Greater(t, len(lb.chunks), 1)
	for _, c := range lb.chunks {
		assert.LessOrEqual(t, len(c), 16)
	}
}

func TestLinkConcurrentRequests(t *testing.T) {
	lb := &loopback{}
	l := newTestLink(t, lb, Options{})

	var wg sync.WaitGroup
	for _, ep := range []string{"/a", "/b", "/c", "/d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := l.Do(context.Background(), "GET", l.APIPath(ep), nil)
			if assert.NoError(t, err) {
				assert.Contains(t, string(resp.Body), ep)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, lb.requests, 4)
}

func TestLinkTimeout(t *testing.T) {
	lb := &loopback{silent: true}
	l := newTestLink(t, lb, Options{RequestTimeout: 20 * time.Millisecond})

	_, err := l.Do(context.Background(), "GET", "/x", nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, l.pending)
}

func TestLinkContextCancel(t *testing.T) {
	lb := &loopback{silent: true}
	l := newTestLink(t, lb, Options{RequestTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Do(ctx, "GET", "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLinkWriteError(t *testing.T) {
	boom := errors.New("boom")
	lb := &loopback{writeErr: boom}
	l := newTestLink(t, lb, Options{})

	_, err := l.Do(context.Background(), "POST", "/x", []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestLinkEvents(t *testing.T) {
	lb := &loopback{}
	l := newTestLink(t, lb, Options{})

	lb.emit(t, protocol.Message{
		Header: protocol.Header{Type: protocol.TypeEvent, Name: "sta_got_ip"},
		Body:   []byte(`{"ip":"192.168.4.100"}`),
	})
	// Stray responses are ignored.
	lb.emit(t, protocol.Message{Header: protocol.Header{Type: protocol.TypeResponse, ID: "nobody"}})

	select {
	case m := <-l.Events():
		assert.Equal(t, "sta_got_ip", m.Header.Name)
		assert.JSONEq(t, `{"ip":"192.168.4.100"}`, string(m.Body))
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestLinkClose(t *testing.T) {
	lb := &loopback{}
	l, err := newLink(lb, lb, "aabbccddeeff", Options{})
	require.NoError(t, err)

	disconnects := 0
	l.disconnect = func() error { disconnects++; return nil }

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Equal(t, 1, disconnects)

	_, open := <-l.Events()
	assert.False(t, open)

	_, err = l.Do(context.Background(), "GET", "/x", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMatchName(t *testing.T) {
	assert.True(t, matchName("WiFi-Agent", "wifi-agent"))
	assert.True(t, matchName("esp32 wifi-agent 01", "WIFI-AGENT"))
	assert.False(t, matchName("other", "wifi-agent"))
}

func TestParseInfo(t *testing.T) {
	mac, err := parseInfo([]byte(`{"id":"AA:BB:CC:DD:EE:FF","fwv":"1.0.0","apiVersion":"1.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "aabbccddeeff", mac)

	_, err = parseInfo([]byte(`{"fwv":"1.0.0"}`))
	assert.Error(t, err)
	_, err = parseInfo([]byte(`nope`))
	assert.Error(t, err)
}
