package wifi

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"unicode/utf8"
)

var (
	ErrPassphraseTooShort = errors.New("password less than 8")
	ErrInvalidInterface   = errors.New("invalid interface")
	ErrInvalidProtocol    = errors.New("invalid protocol")
	ErrInvalidBandwidth   = errors.New("invalid bandwidth")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrInvalidCategory    = errors.New("invalid counter category")
)

const (
	// MaxSSIDLen and MaxPassphraseLen are the longest values the SDK keeps:
	// its 32 and 64 byte config fields are NUL terminated.
	MaxSSIDLen       = 31
	MaxPassphraseLen = 63

	// MinPassphraseLen is the shortest WPA/WPA2-PSK passphrase accepted.
	MinPassphraseLen = 8

	// DefaultMaxConnections is the number of stations an AP accepts.
	DefaultMaxConnections = 4
)

// Mode is the operating mode of the radio.
type Mode int

const (
	ModeNull Mode = iota
	ModeSTA
	ModeAP
	ModeAPSTA
)

var modeNames = map[Mode]string{
	ModeNull:  "null",
	ModeSTA:   "sta",
	ModeAP:    "ap",
	ModeAPSTA: "apsta",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses the lowercase mode name used on the wire.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeNull, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Interface selects one of the network interfaces of the device.
type Interface int

const (
	InterfaceSTA Interface = iota
	InterfaceAP
	InterfaceETH
)

func (i Interface) String() string {
	switch i {
	case InterfaceSTA:
		return "sta"
	case InterfaceAP:
		return "ap"
	case InterfaceETH:
		return "eth"
	}
	return fmt.Sprintf("if(%d)", int(i))
}

// ParseInterface maps "sta", "ap" or "eth" to an Interface. Matching is exact.
func ParseInterface(s string) (Interface, error) {
	switch s {
	case "sta":
		return InterfaceSTA, nil
	case "ap":
		return InterfaceAP, nil
	case "eth":
		return InterfaceETH, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidInterface, s)
}

// Protocol is a bitmap of 802.11 PHY protocols.
type Protocol uint8

const (
	Protocol11B Protocol = 1 << iota
	Protocol11G
	Protocol11N

	ProtocolBG  = Protocol11B | Protocol11G
	ProtocolBGN = Protocol11B | Protocol11G | Protocol11N
)

// String renders the protocol set the way the console reports it.
func (p Protocol) String() string {
	switch p {
	case ProtocolBGN:
		return "BGN"
	case ProtocolBG:
		return "BG"
	default:
		return "B"
	}
}

// ParseProtocol accepts "bgn", "bg" or "b".
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "bgn":
		return ProtocolBGN, nil
	case "bg":
		return ProtocolBG, nil
	case "b":
		return Protocol11B, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
}

// Bandwidth is the channel width.
type Bandwidth int

const (
	BandwidthHT20 Bandwidth = iota + 1
	BandwidthHT40
)

func (b Bandwidth) String() string {
	if b == BandwidthHT20 {
		return "HT20"
	}
	return "HT40"
}

// ParseBandwidth accepts "ht20" or "ht40".
func ParseBandwidth(s string) (Bandwidth, error) {
	switch s {
	case "ht20":
		return BandwidthHT20, nil
	case "ht40":
		return BandwidthHT40, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBandwidth, s)
}

func (b Bandwidth) MarshalText() ([]byte, error) { return []byte(strings.ToLower(b.String())), nil }

func (b *Bandwidth) UnmarshalText(text []byte) error {
	v, err := ParseBandwidth(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// AuthMode is the authentication scheme an AP advertises.
type AuthMode string

const (
	AuthOpen       AuthMode = "open"
	AuthWPAWPA2PSK AuthMode = "wpa_wpa2_psk"
)

// STAConfig is the station side configuration.
type STAConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
}

// APConfig is the soft-AP configuration.
type APConfig struct {
	SSID           string   `json:"ssid"`
	Password       string   `json:"password,omitempty"`
	AuthMode       AuthMode `json:"authmode"`
	MaxConnections int      `json:"max_connection"`
}

// Config carries the configuration of one interface. Only the member matching
// the interface it is applied to is meaningful.
type Config struct {
	STA *STAConfig `json:"sta,omitempty"`
	AP  *APConfig  `json:"ap,omitempty"`
}

// NewSTAConfig builds a station config, truncating fields to SDK limits.
func NewSTAConfig(ssid, password string) Config {
	return Config{STA: &STAConfig{
		SSID:     truncate(ssid, MaxSSIDLen),
		Password: truncate(password, MaxPassphraseLen),
	}}
}

// NewAPConfig builds a soft-AP config. An empty password selects open
// authentication; a non-empty one shorter than MinPassphraseLen is rejected.
func NewAPConfig(ssid, password string) (Config, error) {
	if password != "" && len(password) < MinPassphraseLen {
		return Config{}, ErrPassphraseTooShort
	}
	auth := AuthWPAWPA2PSK
	if password == "" {
		auth = AuthOpen
	}
	return Config{AP: &APConfig{
		SSID:           truncate(ssid, MaxSSIDLen),
		Password:       truncate(password, MaxPassphraseLen),
		AuthMode:       auth,
		MaxConnections: DefaultMaxConnections,
	}}, nil
}

// ScanConfig restricts a scan. An empty SSID scans for all networks.
type ScanConfig struct {
	SSID string `json:"ssid,omitempty"`
}

// APRecord is one scan result.
type APRecord struct {
	SSID     string   `json:"ssid"`
	BSSID    string   `json:"bssid,omitempty"`
	Channel  int      `json:"primary"`
	RSSI     int      `json:"rssi"`
	AuthMode AuthMode `json:"authmode,omitempty"`
}

// IPInfo is the IPv4 configuration of a network interface.
type IPInfo struct {
	IP      netip.Addr `json:"ip"`
	Netmask netip.Addr `json:"netmask"`
	Gateway netip.Addr `json:"gw"`
}

// HasIP reports whether an address has been assigned.
func (i IPInfo) HasIP() bool {
	return i.IP.IsValid() && !i.IP.IsUnspecified()
}

// Category selects a group of internal debug counters.
type Category string

const (
	CategoryHW   Category = "hw"
	CategoryInt  Category = "int"
	CategoryLMAC Category = "lmac"
	CategoryEB   Category = "eb"
	CategoryHMAC Category = "hmac"
)

// Categories lists every counter category in display order.
var Categories = []Category{CategoryHW, CategoryInt, CategoryLMAC, CategoryEB, CategoryHMAC}

// ParseCategory validates a counter category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Counter is a named debug counter value.
type Counter struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
