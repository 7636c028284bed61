package ble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/wifictl/internal/config"
	"github.com/vitaminmoo/wifictl/internal/protocol"
)

var ErrNotFound = errors.New("device not found")

// Connect scans for the agent advertising cfg.Device, connects to it and
// sets up the API link.
func Connect(ctx context.Context, cfg config.BLEConfig, log *zap.Logger) (*Link, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth: %w", err)
	}

	log.Info("scanning for device", zap.String("name", cfg.Device), zap.Duration("timeout", cfg.ScanTimeout))
	result, err := scan(ctx, adapter, cfg.Device, cfg.ScanTimeout, log)
	if err != nil {
		return nil, err
	}

	address, _ := result.Address.MarshalText()
	log.Info("connecting", zap.String("address", string(address)), zap.Int16("rssi", result.RSSI))
	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	link, err := setup(device, Options{
		WriteInterval:  cfg.WriteInterval,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})
	if err != nil {
		_ = device.Disconnect()
		return nil, err
	}
	log.Info("connected", zap.String("mac", link.MAC))
	return link, nil
}

// scan blocks until a matching device is seen, the timeout elapses or ctx
// is done.
func scan(ctx context.Context, adapter *bluetooth.Adapter, name string, timeout time.Duration, log *zap.Logger) (bluetooth.ScanResult, error) {
	var (
		found  bluetooth.ScanResult
		ok     bool
		expiry = time.AfterFunc(timeout, func() { _ = adapter.StopScan() })
	)
	defer expiry.Stop()
	stop := context.AfterFunc(ctx, func() { _ = adapter.StopScan() })
	defer stop()

	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		local := result.LocalName()
		if local == "" {
			return
		}
		log.Debug("found", zap.String("name", local), zap.Int16("rssi", result.RSSI))
		if matchName(local, name) {
			found, ok = result, true
			_ = adapter.StopScan()
		}
	})
	if err != nil {
		return found, fmt.Errorf("scan: %w", err)
	}
	if err := ctx.Err(); err != nil && !ok {
		return found, err
	}
	if !ok {
		return found, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return found, nil
}

// matchName accepts an exact case-insensitive match or an advertised name
// containing the wanted one.
func matchName(advertised, want string) bool {
	a, w := strings.ToLower(advertised), strings.ToLower(want)
	return a == w || strings.Contains(a, w)
}

// setup discovers the agent characteristics and reads the device MAC.
func setup(device bluetooth.Device, opts Options) (*Link, error) {
	log := opts.Logger
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	var service *bluetooth.DeviceService
	for i := range services {
		if strings.EqualFold(services[i].UUID().String(), AgentServiceUUID) {
			service = &services[i]
			break
		}
	}
	if service == nil {
		return nil, errors.New("agent service not found")
	}

	chars, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}

	var req, resp, info *bluetooth.DeviceCharacteristic
	for i := range chars {
		id := chars[i].UUID().String()
		log.Debug("characteristic", zap.String("uuid", id))
		switch {
		case strings.EqualFold(id, RequestCharUUID):
			req = &chars[i]
		case strings.EqualFold(id, ResponseCharUUID):
			resp = &chars[i]
		case strings.EqualFold(id, InfoCharUUID):
			info = &chars[i]
		}
	}
	if req == nil || resp == nil || info == nil {
		return nil, errors.New("agent characteristics incomplete")
	}

	buf := make([]byte, 256)
	n, err := info.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read device info: %w", err)
	}
	mac, err := parseInfo(buf[:n])
	if err != nil {
		return nil, err
	}

	link, err := newLink(req, resp, mac, opts)
	if err != nil {
		return nil, err
	}
	link.disconnect = device.Disconnect
	return link, nil
}

// parseInfo extracts the normalized MAC from the device info JSON.
func parseInfo(data []byte) (string, error) {
	var info protocol.DeviceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("parse device info: %w", err)
	}
	mac := strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(info.ID))
	if mac == "" {
		return "", errors.New("device info has no id")
	}
	return mac, nil
}
