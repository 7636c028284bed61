package sim

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.SimConfig {
	return config.SimConfig{
		Networks: []config.SimNetwork{
			{SSID: "lab", Password: "password123", RSSI: -40, Channel: 6},
			{SSID: "guest", RSSI: -70, Channel: 11},
		},
		StationIP: "192.168.4.2",
		APIP:      "192.168.4.1",
	}
}

func newStarted(t *testing.T) *Device {
	t.Helper()
	d := New(testConfig(), nil)
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	return d
}

func nextEvent(t *testing.T, d *Device) wifi.Event {
	t.Helper()
	select {
	case ev := <-d.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return wifi.Event{}
}

func TestConnectGotIP(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, d.SetConfig(ctx, wifi.InterfaceSTA, wifi.NewSTAConfig("lab", "password123")))
	require.NoError(t, d.Connect(ctx))

	ev := nextEvent(t, d)
	require.Equal(t, wifi.EventSTAGotIP, ev.Kind)
	require.NotNil(t, ev.IP)
	assert.Equal(t, netip.MustParseAddr("192.168.4.2"), ev.IP.IP)

	info, err := d.IPInfo(ctx, wifi.InterfaceSTA)
	require.NoError(t, err)
	assert.True(t, info.HasIP())
}

func TestConnectWrongPassword(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, d.SetConfig(ctx, wifi.InterfaceSTA, wifi.NewSTAConfig("lab", "nope")))
	require.NoError(t, d.Connect(ctx))

	ev := nextEvent(t, d)
	assert.Equal(t, wifi.EventSTADisconnected, ev.Kind)
	assert.Equal(t, ReasonAuthFail, ev.Reason)
}

func TestConnectRequiresStationMode(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.SetMode(ctx, wifi.ModeAP))
	require.ErrorIs(t, d.Connect(ctx), ErrWrongMode)
}

func TestDisconnectEmitsEvent(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, d.SetConfig(ctx, wifi.InterfaceSTA, wifi.NewSTAConfig("guest", "")))
	require.NoError(t, d.Connect(ctx))
	require.Equal(t, wifi.EventSTAGotIP, nextEvent(t, d).Kind)

	require.NoError(t, d.Disconnect(ctx))
	ev := nextEvent(t, d)
	assert.Equal(t, wifi.EventSTADisconnected, ev.Kind)
	assert.Equal(t, ReasonAssocLeave, ev.Reason)
}

func TestScanFilter(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.SetMode(ctx, wifi.ModeSTA))
	require.NoError(t, d.StartScan(ctx, wifi.ScanConfig{SSID: "guest"}))
	require.Equal(t, wifi.EventScanDone, nextEvent(t, d).Kind)

	n, err := d.ScanCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	recs, err := d.ScanRecords(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "guest", recs[0].SSID)
	assert.Equal(t, wifi.AuthOpen, recs[0].AuthMode)
	assert.Equal(t, 11, recs[0].Channel)
}

func TestAPAddress(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)

	info, err := d.IPInfo(ctx, wifi.InterfaceAP)
	require.NoError(t, err)
	assert.False(t, info.HasIP())

	require.NoError(t, d.SetMode(ctx, wifi.ModeAP))
	info, err = d.IPInfo(ctx, wifi.InterfaceAP)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.4.1"), info.IP)
}

func TestFaultInjectionAndCalls(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	boom := errors.New("boom")
	d.Fail("MaxTxPower", boom)

	_, err := d.MaxTxPower(ctx)
	require.ErrorIs(t, err, boom)

	d.Fail("MaxTxPower", nil)
	p, err := d.MaxTxPower(ctx)
	require.NoError(t, err)
	assert.Equal(t, int8(80), p)

	assert.Equal(t, []string{"Start()", "MaxTxPower()", "MaxTxPower()"}, d.Calls())
}

func TestRegistersAndRates(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	require.NoError(t, d.WriteRegister(ctx, 0x3ff00000, 0xdeadbeef))
	v, err := d.ReadRegister(ctx, 0x3ff00000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	rate, err := wifi.LookupRate("MCS7S")
	require.NoError(t, err)
	require.NoError(t, d.SetFixedRate(ctx, wifi.InterfaceSTA, true, rate))
	got, ok := d.FixedRate(wifi.InterfaceSTA)
	assert.True(t, ok)
	assert.Equal(t, rate, got)
}

func TestCloseClosesEvents(t *testing.T) {
	d := New(testConfig(), nil)
	require.NoError(t, d.Close())
	_, ok := <-d.Events()
	assert.False(t, ok)
	require.ErrorIs(t, d.Start(context.Background()), ErrClosed)
}

func TestEngineStartStop(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	e := NewEngine(d)
	e.Scale = time.Millisecond

	cfg := iperf.Config{Flag: iperf.FlagClient | iperf.FlagTCP, Interval: 1, Time: 1000}
	require.NoError(t, e.Start(ctx, cfg))
	require.ErrorIs(t, e.Start(ctx, cfg), ErrIperfRunning)

	_, running := e.Running()
	assert.True(t, running)

	require.NoError(t, e.Stop(ctx))
	_, running = e.Running()
	assert.False(t, running)
	assert.Equal(t, 1, e.Stops())
	assert.Len(t, e.Runs(), 1)
}

func TestEngineRunFinishes(t *testing.T) {
	ctx := context.Background()
	d := newStarted(t)
	e := NewEngine(d)
	e.Scale = time.Millisecond

	require.NoError(t, e.Start(ctx, iperf.Config{Flag: iperf.FlagClient | iperf.FlagTCP, Interval: 1, Time: 1}))
	assert.Eventually(t, func() bool {
		_, running := e.Running()
		return !running
	}, time.Second, 5*time.Millisecond)

	counters, err := d.Counters(ctx, wifi.CategoryHW)
	require.NoError(t, err)
	assert.Contains(t, counters, wifi.Counter{Name: "tx_frames", Value: 1})
}
