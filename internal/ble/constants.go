package ble

// GATT layout of the Wi-Fi agent firmware.
const (
	// AgentServiceUUID is the primary agent service.
	AgentServiceUUID = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"

	// RequestCharUUID receives API request frames (write without response).
	RequestCharUUID = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"

	// ResponseCharUUID carries response and event frames (notify).
	ResponseCharUUID = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"

	// InfoCharUUID serves the device info JSON (read).
	InfoCharUUID = "6E400004-B5A3-F393-E0A9-E50E24DCCA9E"
)

// DefaultMTU is the write chunk size; 244 bytes fits BLE 4.2+ links.
const DefaultMTU = 244
