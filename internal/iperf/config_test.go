package iperf

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var local = netip.MustParseAddr("192.168.4.1")

func intp(n int) *int { return &n }

func TestBuildRequiresExactlyOneMode(t *testing.T) {
	dst := netip.MustParseAddr("192.168.4.2")

	_, err := Build(Request{}, local, DefaultDefaults())
	require.ErrorIs(t, err, ErrModeSelection)

	_, err = Build(Request{Client: &dst, Server: true}, local, DefaultDefaults())
	require.ErrorIs(t, err, ErrModeSelection)

	_, err = Build(Request{Server: true}, local, DefaultDefaults())
	require.NoError(t, err)
}

func TestBuildClientScenario(t *testing.T) {
	dst := netip.MustParseAddr("192.168.4.2")
	cfg, err := Build(Request{
		Client:   &dst,
		Port:     intp(5001),
		Time:     intp(5),
		Interval: intp(1),
	}, local, DefaultDefaults())
	require.NoError(t, err)

	assert.True(t, cfg.Flag.Has(FlagClient))
	assert.True(t, cfg.Flag.Has(FlagTCP))
	assert.False(t, cfg.Flag.Has(FlagServer|FlagUDP))
	assert.Equal(t, dst, cfg.DestIP)
	assert.Equal(t, uint16(5001), cfg.DestPort)
	assert.Equal(t, uint16(DefaultPort), cfg.SourcePort)
	assert.Equal(t, local, cfg.SourceIP)
	assert.Equal(t, 1, cfg.Interval)
	assert.Equal(t, 5, cfg.Time)
	assert.Equal(t, "mode=tcp-client sip=192.168.4.1:5001, dip=192.168.4.2:5001, interval=1, time=5", cfg.String())
}

func TestBuildServerPort(t *testing.T) {
	cfg, err := Build(Request{Server: true, UDP: true, Port: intp(6000)}, local, DefaultDefaults())
	require.NoError(t, err)
	assert.Equal(t, uint16(6000), cfg.SourcePort)
	assert.Equal(t, uint16(DefaultPort), cfg.DestPort)
	assert.Equal(t, "udp", cfg.Protocol())
	assert.Equal(t, "server", cfg.Role())
}

func TestBuildTimeNeverBelowInterval(t *testing.T) {
	for _, tc := range []struct {
		interval, time *int
	}{
		{nil, nil},
		{intp(10), intp(2)},
		{intp(60), nil},
		{intp(0), intp(-4)},
		{intp(-1), intp(1)},
		{intp(5), intp(5)},
		{nil, intp(100)},
	} {
		cfg, err := Build(Request{Server: true, Interval: tc.interval, Time: tc.time}, local, DefaultDefaults())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cfg.Time, cfg.Interval)
		assert.Positive(t, cfg.Interval)
	}
}

func TestBuildWindowClamped(t *testing.T) {
	for in, want := range map[int]int{
		0:       MinTCPWindow,
		100:     MinTCPWindow,
		8192:    8192,
		1 << 20: MaxTCPWindow,
	} {
		cfg, err := Build(Request{Server: true, TCPWindow: intp(in)}, local, DefaultDefaults())
		require.NoError(t, err)
		assert.Equal(t, want, cfg.TCPWindow)
		assert.True(t, cfg.Flag.Has(FlagTCPWindow))
	}
}

func TestBuildNoLocalIP(t *testing.T) {
	_, err := Build(Request{Server: true}, netip.Addr{}, DefaultDefaults())
	require.ErrorIs(t, err, ErrNoLocalIP)

	_, err = Build(Request{Server: true}, netip.IPv4Unspecified(), DefaultDefaults())
	require.ErrorIs(t, err, ErrNoLocalIP)
}

func TestParseTOS(t *testing.T) {
	v, err := ParseTOS("TID5")
	require.NoError(t, err)
	assert.Equal(t, uint8(5<<5), v)

	v, err = ParseTOS("0xb8")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xb8), v)

	_, err = ParseTOS("TID8")
	require.ErrorIs(t, err, ErrInvalidTOS)

	_, err = ParseTOS("300")
	require.ErrorIs(t, err, ErrInvalidTOS)
}
