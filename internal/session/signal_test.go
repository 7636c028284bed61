package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalZeroTimeoutPolls(t *testing.T) {
	s := NewSignal()
	ctx := context.Background()
	assert.False(t, s.Wait(ctx, Connected, 0))
	assert.Equal(t, Bits(0), s.Bits())

	s.Set(Connected)
	assert.True(t, s.Wait(ctx, Connected, 0))
	assert.False(t, s.Has(Connected|Disconnected))
}

func TestSignalUpdateIsAtomicSwap(t *testing.T) {
	s := NewSignal()
	s.Set(Disconnected)
	s.Update(Connected, Disconnected)
	assert.Equal(t, Connected, s.Bits())
	s.Update(Disconnected, Connected)
	assert.Equal(t, Disconnected, s.Bits())
}

func TestSignalWaitWakes(t *testing.T) {
	s := NewSignal()
	done := make(chan bool)
	go func() {
		done <- s.Wait(context.Background(), Connected, 5*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	s.Set(Connected)
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestSignalWaitTimeout(t *testing.T) {
	s := NewSignal()
	start := time.Now()
	assert.False(t, s.Wait(context.Background(), Disconnected, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSignalWaitCancelled(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.Wait(ctx, Connected, time.Minute))
}

func TestBitsString(t *testing.T) {
	assert.Equal(t, "none", Bits(0).String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "connected|disconnected", (Connected | Disconnected).String())
}
