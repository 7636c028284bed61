package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/metrics"
	"github.com/vitaminmoo/wifictl/internal/sim"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	dev  *sim.Device
	sess *Session
	logs *observer.ObservedLogs
	m    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	dev := sim.New(config.SimConfig{
		Networks: []config.SimNetwork{
			{SSID: "lab", Password: "password123", RSSI: -40, Channel: 6},
			{SSID: "guest", RSSI: -70, Channel: 11},
		},
		StationIP: "192.168.4.2",
		APIP:      "192.168.4.1",
	}, nil)
	m := metrics.New(prometheus.NewRegistry())
	sess := New(dev, sim.NewEngine(dev), zap.New(core), m)
	t.Cleanup(func() {
		sess.Close()
		_ = dev.Close()
	})
	return &fixture{dev: dev, sess: sess, logs: logs, m: m}
}

func (f *fixture) messages() []string {
	var out []string
	for _, e := range f.logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func TestInitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Init(ctx))
	require.NoError(t, f.sess.Init(ctx))
	assert.Equal(t, []string{"Start()", "SetMode(null)"}, f.dev.Calls())
	assert.True(t, f.sess.Reconnect())
}

func TestInitStartFailure(t *testing.T) {
	f := newFixture(t)
	f.dev.Fail("Start", errors.New("no radio"))
	err := f.sess.Init(context.Background())
	require.ErrorContains(t, err, "start wifi: no radio")
}

func TestGotIPSetsConnected(t *testing.T) {
	f := newFixture(t)
	f.sess.Signal.Set(Disconnected)
	f.sess.Handle(context.Background(), wifi.Event{Kind: wifi.EventSTAGotIP})

	assert.Equal(t, Connected, f.sess.Signal.Bits())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Events.WithLabelValues("sta_got_ip")))
}

func TestLeaveClearsConnected(t *testing.T) {
	f := newFixture(t)
	f.sess.Signal.Set(Disconnected)
	f.sess.Handle(context.Background(), wifi.Event{Kind: wifi.EventSTAGotIP})
	require.Equal(t, 1.0, testutil.ToFloat64(f.m.Connected))

	f.sess.Leave()
	assert.False(t, f.sess.Signal.Has(Connected))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.Connected))
}

func TestDisconnectReconnects(t *testing.T) {
	f := newFixture(t)
	f.sess.Signal.Set(Connected)
	f.sess.Handle(context.Background(), wifi.Event{Kind: wifi.EventSTADisconnected})

	assert.Equal(t, Disconnected, f.sess.Signal.Bits())
	assert.Contains(t, f.dev.Calls(), "Connect()")
	assert.Contains(t, f.messages(), "sta disconnect, reconnect...")
}

func TestDisconnectWithoutReconnect(t *testing.T) {
	f := newFixture(t)
	f.sess.SetReconnect(false)
	f.sess.Signal.Set(Connected)
	f.sess.Handle(context.Background(), wifi.Event{Kind: wifi.EventSTADisconnected})

	assert.Equal(t, Disconnected, f.sess.Signal.Bits())
	assert.NotContains(t, f.dev.Calls(), "Connect()")
	assert.Equal(t, []string{"sta disconnect"}, f.messages())
}

func TestScanDoneLogsRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Init(ctx))
	require.NoError(t, f.dev.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, f.dev.StartScan(ctx, wifi.ScanConfig{}))

	require.Eventually(t, func() bool {
		return f.logs.FilterMessage("sta scan done").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.logs.FilterMessage("[lab][rssi=-40]").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("[guest][rssi=-70]").Len())
}

func TestScanDoneFailureAbortsNotification(t *testing.T) {
	f := newFixture(t)
	f.dev.Fail("ScanRecords", errors.New("no memory"))
	f.sess.Handle(context.Background(), wifi.Event{Kind: wifi.EventScanDone})

	assert.Equal(t, 0, f.logs.FilterMessage("sta scan done").Len())
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestEventLoopJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Init(ctx))
	require.NoError(t, f.dev.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, f.dev.SetConfig(ctx, wifi.InterfaceSTA, wifi.NewSTAConfig("lab", "password123")))
	require.NoError(t, f.dev.Connect(ctx))

	assert.True(t, f.sess.Signal.Wait(ctx, Connected, time.Second))

	ip, err := f.sess.LocalIP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "192.168.4.2", ip.String())
}

func TestLocalIPStationWithoutAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Init(ctx))
	require.NoError(t, f.dev.SetMode(ctx, wifi.ModeSTA))

	_, err := f.sess.LocalIP(ctx)
	require.ErrorIs(t, err, ErrSTANoIP)
}

func TestLocalIPAccessPoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sess.Init(ctx))

	_, err := f.sess.LocalIP(ctx)
	require.Error(t, err, "null mode has no address")

	require.NoError(t, f.dev.SetMode(ctx, wifi.ModeAP))
	ip, err := f.sess.LocalIP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "192.168.4.1", ip.String())
}

func TestCloseStopsEventLoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Init(context.Background()))
	f.sess.Close()
	f.dev.Emit(wifi.Event{Kind: wifi.EventSTAGotIP})
	assert.Equal(t, Bits(0), f.sess.Signal.Bits())
}
