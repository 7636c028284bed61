// Package sim is an in-memory Wi-Fi device used when no board is attached
// and by tests. It answers every wifi.Stack call from local state and emits
// events from timers the way the real stack does from its own task.
package sim

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

var (
	ErrNotStarted = errors.New("wifi not started")
	ErrWrongMode  = errors.New("wifi mode does not allow this operation")
	ErrClosed     = errors.New("device closed")
)

// Disconnect reasons reported with EventSTADisconnected.
const (
	ReasonAssocLeave = 8
	ReasonNoAPFound  = 201
	ReasonAuthFail   = 202
)

const eventBuffer = 32

// Device is a simulated Wi-Fi stack. The zero value is not usable; call New.
type Device struct {
	cfg config.SimConfig
	log *zap.Logger

	mu         sync.Mutex
	closed     bool
	started    bool
	mode       wifi.Mode
	configs    map[wifi.Interface]wifi.Config
	connected  bool
	scan       []wifi.APRecord
	txPower    int8
	protocols  map[wifi.Interface]wifi.Protocol
	bandwidths map[wifi.Interface]wifi.Bandwidth
	fixed      map[wifi.Interface]wifi.PhyRate
	regs       map[uint32]uint32
	counters   map[wifi.Category]map[string]uint64
	calls      []string
	faults     map[string]error
	timers     map[*time.Timer]struct{}

	events chan wifi.Event
}

// New builds a simulated device from cfg.
func New(cfg config.SimConfig, log *zap.Logger) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Device{
		cfg:        cfg,
		log:        log.Named("sim"),
		configs:    make(map[wifi.Interface]wifi.Config),
		txPower:    80,
		protocols:  make(map[wifi.Interface]wifi.Protocol),
		bandwidths: make(map[wifi.Interface]wifi.Bandwidth),
		fixed:      make(map[wifi.Interface]wifi.PhyRate),
		regs:       make(map[uint32]uint32),
		counters:   make(map[wifi.Category]map[string]uint64),
		faults:     make(map[string]error),
		timers:     make(map[*time.Timer]struct{}),
		events:     make(chan wifi.Event, eventBuffer),
	}
	for _, ifx := range []wifi.Interface{wifi.InterfaceSTA, wifi.InterfaceAP, wifi.InterfaceETH} {
		d.protocols[ifx] = wifi.ProtocolBGN
		d.bandwidths[ifx] = wifi.BandwidthHT40
	}
	for _, c := range wifi.Categories {
		d.counters[c] = make(map[string]uint64)
	}
	d.counters[wifi.CategoryHW]["tx_frames"] = 0
	d.counters[wifi.CategoryHW]["rx_frames"] = 0
	d.counters[wifi.CategoryEB]["alloc"] = 0
	d.counters[wifi.CategoryEB]["free"] = 0
	return d
}

// Calls returns the stack methods invoked so far, oldest first, formatted
// as "Method(arg, ...)".
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls forgets the recorded calls.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// Fail makes every later call of method return err. A nil err clears it.
func (d *Device) Fail(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, method)
		return
	}
	d.faults[method] = err
}

// Emit queues an event as if the stack had raised it.
func (d *Device) Emit(ev wifi.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitLocked(ev)
}

// Close stops pending timers and closes the event channel.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	close(d.events)
	return nil
}

func (d *Device) Events() <-chan wifi.Event { return d.events }

// enter records the call and returns the injected fault, if any. Callers
// hold d.mu.
func (d *Device) enter(method string, args ...any) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	d.calls = append(d.calls, method+"("+strings.Join(parts, ", ")+")")
	if d.closed {
		return ErrClosed
	}
	return d.faults[method]
}

func (d *Device) emitLocked(ev wifi.Event) {
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
		d.bumpLocked(wifi.CategoryInt, "event_"+string(ev.Kind))
	default:
		d.log.Warn("event queue full, dropping", zap.Stringer("event", ev))
	}
}

// after runs fn with d.mu held once delay has elapsed, unless the device
// is closed first.
func (d *Device) after(delay time.Duration, fn func()) {
	if d.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return
		}
		delete(d.timers, t)
		fn()
	})
	d.timers[t] = struct{}{}
}

func (d *Device) bumpLocked(c wifi.Category, name string) {
	d.counters[c][name]++
}

func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Start"); err != nil {
		return err
	}
	d.started = true
	d.log.Debug("wifi started")
	return nil
}

func (d *Device) Mode(ctx context.Context) (wifi.Mode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Mode"); err != nil {
		return wifi.ModeNull, err
	}
	return d.mode, nil
}

func (d *Device) SetMode(ctx context.Context, mode wifi.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetMode", mode); err != nil {
		return err
	}
	if !d.started {
		return ErrNotStarted
	}
	if d.connected && !hasSTA(mode) {
		d.dropLocked(ReasonAssocLeave)
	}
	d.mode = mode
	return nil
}

func (d *Device) Config(ctx context.Context, ifx wifi.Interface) (wifi.Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Config", ifx); err != nil {
		return wifi.Config{}, err
	}
	if ifx == wifi.InterfaceETH {
		return wifi.Config{}, wifi.ErrInvalidInterface
	}
	return d.configs[ifx], nil
}

func (d *Device) SetConfig(ctx context.Context, ifx wifi.Interface, cfg wifi.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetConfig", ifx, describeConfig(cfg)); err != nil {
		return err
	}
	switch {
	case ifx == wifi.InterfaceSTA && cfg.STA != nil:
	case ifx == wifi.InterfaceAP && cfg.AP != nil:
	default:
		return fmt.Errorf("config does not match interface %s: %w", ifx, wifi.ErrInvalidInterface)
	}
	d.configs[ifx] = cfg
	return nil
}

func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Connect"); err != nil {
		return err
	}
	if !d.started {
		return ErrNotStarted
	}
	if !hasSTA(d.mode) {
		return ErrWrongMode
	}
	sta := d.configs[wifi.InterfaceSTA].STA
	if sta == nil {
		return errors.New("station not configured")
	}

	ap, found := d.lookup(sta.SSID)
	d.after(d.cfg.ConnectDelay, func() {
		switch {
		case !found:
			d.bumpLocked(wifi.CategoryLMAC, "assoc_fail")
			d.emitLocked(wifi.Event{Kind: wifi.EventSTADisconnected, Reason: ReasonNoAPFound})
		case ap.Password != sta.Password:
			d.bumpLocked(wifi.CategoryLMAC, "auth_fail")
			d.emitLocked(wifi.Event{Kind: wifi.EventSTADisconnected, Reason: ReasonAuthFail})
		default:
			d.connected = true
			d.bumpLocked(wifi.CategoryLMAC, "assoc_ok")
			info := d.stationIPLocked()
			d.emitLocked(wifi.Event{Kind: wifi.EventSTAGotIP, IP: &info})
		}
	})
	return nil
}

func (d *Device) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Disconnect"); err != nil {
		return err
	}
	if !d.started {
		return ErrNotStarted
	}
	if d.connected {
		d.dropLocked(ReasonAssocLeave)
	}
	return nil
}

func (d *Device) dropLocked(reason int) {
	d.connected = false
	d.after(0, func() {
		d.emitLocked(wifi.Event{Kind: wifi.EventSTADisconnected, Reason: reason})
	})
}

func (d *Device) lookup(ssid string) (config.SimNetwork, bool) {
	for _, n := range d.cfg.Networks {
		if n.SSID == ssid {
			return n, true
		}
	}
	return config.SimNetwork{}, false
}

func (d *Device) StartScan(ctx context.Context, cfg wifi.ScanConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("StartScan", cfg.SSID); err != nil {
		return err
	}
	if !hasSTA(d.mode) {
		return ErrWrongMode
	}
	d.after(d.cfg.ScanDelay, func() {
		d.scan = d.scan[:0]
		for _, n := range d.cfg.Networks {
			if cfg.SSID != "" && n.SSID != cfg.SSID {
				continue
			}
			auth := wifi.AuthOpen
			if n.Password != "" {
				auth = wifi.AuthWPAWPA2PSK
			}
			d.scan = append(d.scan, wifi.APRecord{
				SSID:     n.SSID,
				BSSID:    bssid(n.SSID),
				Channel:  n.Channel,
				RSSI:     n.RSSI,
				AuthMode: auth,
			})
		}
		d.bumpLocked(wifi.CategoryHMAC, "scan_done")
		d.emitLocked(wifi.Event{Kind: wifi.EventScanDone})
	})
	return nil
}

func (d *Device) ScanCount(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ScanCount"); err != nil {
		return 0, err
	}
	return len(d.scan), nil
}

func (d *Device) ScanRecords(ctx context.Context, max int) ([]wifi.APRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ScanRecords", max); err != nil {
		return nil, err
	}
	n := min(max, len(d.scan))
	if n < 0 {
		n = 0
	}
	return append([]wifi.APRecord(nil), d.scan[:n]...), nil
}

func (d *Device) MaxTxPower(ctx context.Context) (int8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("MaxTxPower"); err != nil {
		return 0, err
	}
	return d.txPower, nil
}

// SetMaxTxPower accepts the SDK range of 8 to 84 quarter-dBm.
func (d *Device) SetMaxTxPower(ctx context.Context, quarterDBm int8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetMaxTxPower", quarterDBm); err != nil {
		return err
	}
	if quarterDBm < 8 || quarterDBm > 84 {
		return fmt.Errorf("tx power %d out of range [8, 84]", quarterDBm)
	}
	d.txPower = quarterDBm
	return nil
}

func (d *Device) Protocol(ctx context.Context, ifx wifi.Interface) (wifi.Protocol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Protocol", ifx); err != nil {
		return 0, err
	}
	return d.protocols[ifx], nil
}

func (d *Device) SetProtocol(ctx context.Context, ifx wifi.Interface, p wifi.Protocol) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetProtocol", ifx, p); err != nil {
		return err
	}
	d.protocols[ifx] = p
	return nil
}

func (d *Device) Bandwidth(ctx context.Context, ifx wifi.Interface) (wifi.Bandwidth, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Bandwidth", ifx); err != nil {
		return 0, err
	}
	return d.bandwidths[ifx], nil
}

func (d *Device) SetBandwidth(ctx context.Context, ifx wifi.Interface, bw wifi.Bandwidth) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetBandwidth", ifx, bw); err != nil {
		return err
	}
	if bw == wifi.BandwidthHT40 && d.protocols[ifx]&wifi.Protocol11N == 0 {
		return errors.New("ht40 requires 802.11n")
	}
	d.bandwidths[ifx] = bw
	return nil
}

func (d *Device) SetFixedRate(ctx context.Context, ifx wifi.Interface, enable bool, rate wifi.PhyRate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetFixedRate", ifx, enable, rate); err != nil {
		return err
	}
	if !enable {
		delete(d.fixed, ifx)
		return nil
	}
	d.fixed[ifx] = rate
	return nil
}

// FixedRate returns the pinned rate of ifx.
func (d *Device) FixedRate(ifx wifi.Interface) (wifi.PhyRate, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.fixed[ifx]
	return r, ok
}

func (d *Device) IPInfo(ctx context.Context, ifx wifi.Interface) (wifi.IPInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("IPInfo", ifx); err != nil {
		return wifi.IPInfo{}, err
	}
	switch ifx {
	case wifi.InterfaceSTA:
		if d.connected {
			return d.stationIPLocked(), nil
		}
	case wifi.InterfaceAP:
		if d.mode == wifi.ModeAP || d.mode == wifi.ModeAPSTA {
			ip := parseAddr(d.cfg.APIP)
			return wifi.IPInfo{IP: ip, Netmask: netmask, Gateway: ip}, nil
		}
	}
	return wifi.IPInfo{}, nil
}

func (d *Device) stationIPLocked() wifi.IPInfo {
	return wifi.IPInfo{
		IP:      parseAddr(d.cfg.StationIP),
		Netmask: netmask,
		Gateway: parseAddr(d.cfg.APIP),
	}
}

func (d *Device) ReadRegister(ctx context.Context, addr uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ReadRegister", fmt.Sprintf("0x%08X", addr)); err != nil {
		return 0, err
	}
	return d.regs[addr], nil
}

// SetRegister preloads a register value without recording a call.
func (d *Device) SetRegister(addr, value uint32) {
	d.mu.Lock()
	d.regs[addr] = value
	d.mu.Unlock()
}

func (d *Device) WriteRegister(ctx context.Context, addr, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("WriteRegister", fmt.Sprintf("0x%08X", addr), fmt.Sprintf("0x%08X", value)); err != nil {
		return err
	}
	d.regs[addr] = value
	return nil
}

func (d *Device) Counters(ctx context.Context, c wifi.Category) ([]wifi.Counter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Counters", c); err != nil {
		return nil, err
	}
	m, ok := d.counters[c]
	if !ok {
		return nil, wifi.ErrInvalidCategory
	}
	out := make([]wifi.Counter, 0, len(m))
	for name, v := range m {
		out = append(out, wifi.Counter{Name: name, Value: v})
	}
	slices.SortFunc(out, func(a, b wifi.Counter) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

var netmask = netip.AddrFrom4([4]byte{255, 255, 255, 0})

func parseAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return a
}

func hasSTA(m wifi.Mode) bool { return m == wifi.ModeSTA || m == wifi.ModeAPSTA }

// bssid derives a stable locally administered MAC from the SSID.
func bssid(ssid string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(ssid); i++ {
		h ^= uint32(ssid[i])
		h *= 16777619
	}
	return fmt.Sprintf("02:00:%02x:%02x:%02x:%02x", byte(h>>24), byte(h>>16), byte(h>>8), byte(h))
}

func describeConfig(cfg wifi.Config) string {
	switch {
	case cfg.STA != nil:
		return fmt.Sprintf("sta ssid=%q", cfg.STA.SSID)
	case cfg.AP != nil:
		return fmt.Sprintf("ap ssid=%q auth=%s max=%d", cfg.AP.SSID, cfg.AP.AuthMode, cfg.AP.MaxConnections)
	}
	return "empty"
}
