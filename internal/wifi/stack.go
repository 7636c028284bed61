// Package wifi describes the Wi-Fi and network stack of the evaluation
// device: the configuration types it accepts and the operations and
// asynchronous events it exposes.
package wifi

import (
	"context"
	"fmt"
)

// EventKind identifies an asynchronous stack notification.
type EventKind string

const (
	EventScanDone        EventKind = "scan_done"
	EventSTAGotIP        EventKind = "sta_got_ip"
	EventSTADisconnected EventKind = "sta_disconnected"
)

// Event is one notification delivered by the stack on its own goroutine.
type Event struct {
	Kind EventKind `json:"name"`
	// Reason is the disconnect reason code, if any.
	Reason int `json:"reason,omitempty"`
	// IP is set for EventSTAGotIP.
	IP *IPInfo `json:"ip,omitempty"`
}

func (e Event) String() string {
	if e.Reason != 0 {
		return fmt.Sprintf("%s(reason=%d)", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

// Radio is the station/AP control surface.
type Radio interface {
	Start(ctx context.Context) error
	Mode(ctx context.Context) (Mode, error)
	SetMode(ctx context.Context, mode Mode) error
	Config(ctx context.Context, ifx Interface) (Config, error)
	SetConfig(ctx context.Context, ifx Interface, cfg Config) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Scanner runs non-blocking scans; results are fetched after EventScanDone.
type Scanner interface {
	StartScan(ctx context.Context, cfg ScanConfig) error
	ScanCount(ctx context.Context) (int, error)
	ScanRecords(ctx context.Context, max int) ([]APRecord, error)
}

// PHY exposes transmit power, protocol, bandwidth and rate control.
type PHY interface {
	MaxTxPower(ctx context.Context) (int8, error)
	SetMaxTxPower(ctx context.Context, quarterDBm int8) error
	Protocol(ctx context.Context, ifx Interface) (Protocol, error)
	SetProtocol(ctx context.Context, ifx Interface, p Protocol) error
	Bandwidth(ctx context.Context, ifx Interface) (Bandwidth, error)
	SetBandwidth(ctx context.Context, ifx Interface, bw Bandwidth) error
	SetFixedRate(ctx context.Context, ifx Interface, enable bool, rate PhyRate) error
}

// Netif reports interface addressing.
type Netif interface {
	IPInfo(ctx context.Context, ifx Interface) (IPInfo, error)
}

// Registers gives raw access to memory-mapped registers. No bounds checking
// is done on the address.
type Registers interface {
	ReadRegister(ctx context.Context, addr uint32) (uint32, error)
	WriteRegister(ctx context.Context, addr, value uint32) error
}

// Diagnostics dumps internal debug counters.
type Diagnostics interface {
	Counters(ctx context.Context, c Category) ([]Counter, error)
}

// Stack is the full collaborator the console drives.
type Stack interface {
	Radio
	Scanner
	PHY
	Netif
	Registers
	Diagnostics

	// Events delivers asynchronous notifications. The channel is closed when
	// the stack shuts down.
	Events() <-chan Event
}
