// Package iperf builds bandwidth-measurement configurations and describes
// the engine that runs them. The engine itself lives on the device.
package iperf

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const (
	DefaultPort     = 5001
	DefaultInterval = 3
	DefaultTime     = 30

	MinTCPWindow = 1460
	MaxTCPWindow = 65535
)

var (
	ErrModeSelection = errors.New("should specific client/server mode")
	ErrNoLocalIP     = errors.New("no local ip")
	ErrInvalidTOS    = errors.New("invalid tos")
)

// Flag is a bit set describing a measurement.
type Flag uint8

const (
	FlagClient Flag = 1 << iota
	FlagServer
	FlagTCP
	FlagUDP
	FlagIPTOS
	FlagTCPWindow
)

func (f Flag) Has(b Flag) bool { return f&b != 0 }

// Config is the measurement configuration handed to the engine.
type Config struct {
	Flag       Flag       `json:"flag"`
	SourceIP   netip.Addr `json:"sip"`
	SourcePort uint16     `json:"sport"`
	DestIP     netip.Addr `json:"dip"`
	DestPort   uint16     `json:"dport"`
	Interval   int        `json:"interval"`
	Time       int        `json:"time"`
	TOS        uint8      `json:"tos,omitempty"`
	TCPWindow  int        `json:"tcp_win_size,omitempty"`
}

// Protocol returns "tcp" or "udp".
func (c Config) Protocol() string {
	if c.Flag.Has(FlagUDP) {
		return "udp"
	}
	return "tcp"
}

// Role returns "server" or "client".
func (c Config) Role() string {
	if c.Flag.Has(FlagServer) {
		return "server"
	}
	return "client"
}

func (c Config) String() string {
	return fmt.Sprintf("mode=%s-%s sip=%s:%d, dip=%s:%d, interval=%d, time=%d",
		c.Protocol(), c.Role(),
		addrString(c.SourceIP), c.SourcePort,
		addrString(c.DestIP), c.DestPort,
		c.Interval, c.Time)
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return "0.0.0.0"
	}
	return a.String()
}

// Request holds the user supplied options for one measurement. Nil pointers
// mean the option was not given.
type Request struct {
	Client    *netip.Addr
	Server    bool
	UDP       bool
	Port      *int
	Interval  *int
	Time      *int
	TOS       *uint8
	TCPWindow *int
}

// Defaults are the values used for options the request leaves out.
type Defaults struct {
	Port     int
	Interval int
	Time     int
}

// DefaultDefaults returns the engine's built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{Port: DefaultPort, Interval: DefaultInterval, Time: DefaultTime}
}

// Validate checks that exactly one of client or server mode is selected.
func (r Request) Validate() error {
	if (r.Client != nil) == r.Server {
		return ErrModeSelection
	}
	return nil
}

// Build turns a request into a Config using local as the source address.
// The result always satisfies Time >= Interval, and TCPWindow, when set,
// lies within [MinTCPWindow, MaxTCPWindow].
func Build(r Request, local netip.Addr, d Defaults) (Config, error) {
	if err := r.Validate(); err != nil {
		return Config{}, err
	}
	if !local.IsValid() || local.IsUnspecified() {
		return Config{}, ErrNoLocalIP
	}
	if d.Port <= 0 {
		d.Port = DefaultPort
	}
	if d.Interval <= 0 {
		d.Interval = DefaultInterval
	}
	if d.Time <= 0 {
		d.Time = DefaultTime
	}

	cfg := Config{SourceIP: local}
	if r.Client == nil {
		cfg.Flag |= FlagServer
	} else {
		cfg.Flag |= FlagClient
		cfg.DestIP = *r.Client
	}

	if r.UDP {
		cfg.Flag |= FlagUDP
	} else {
		cfg.Flag |= FlagTCP
	}

	cfg.SourcePort = uint16(d.Port)
	cfg.DestPort = uint16(d.Port)
	if r.Port != nil {
		if cfg.Flag.Has(FlagServer) {
			cfg.SourcePort = uint16(*r.Port)
		} else {
			cfg.DestPort = uint16(*r.Port)
		}
	}

	cfg.Interval = d.Interval
	if r.Interval != nil && *r.Interval > 0 {
		cfg.Interval = *r.Interval
	}

	cfg.Time = d.Time
	if r.Time != nil {
		cfg.Time = *r.Time
	}
	if cfg.Time < cfg.Interval {
		cfg.Time = cfg.Interval
	}

	if r.TOS != nil {
		cfg.TOS = *r.TOS
		cfg.Flag |= FlagIPTOS
	}

	if r.TCPWindow != nil {
		cfg.TCPWindow = ClampWindow(*r.TCPWindow)
		cfg.Flag |= FlagTCPWindow
	}

	return cfg, nil
}

// ClampWindow limits a TCP window size to [MinTCPWindow, MaxTCPWindow].
func ClampWindow(n int) int {
	switch {
	case n > MaxTCPWindow:
		return MaxTCPWindow
	case n < MinTCPWindow:
		return MinTCPWindow
	}
	return n
}

// ParseTOS accepts a number (decimal or 0x hex, 0-255) or a precedence
// label TID0..TID7, which maps to precedence<<5.
func ParseTOS(s string) (uint8, error) {
	if rest, ok := strings.CutPrefix(strings.ToUpper(s), "TID"); ok {
		n, err := strconv.ParseUint(rest, 10, 8)
		if err != nil || n > 7 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTOS, s)
		}
		return uint8(n << 5), nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTOS, s)
	}
	return uint8(n), nil
}
