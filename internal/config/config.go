// Package config loads wifictl settings from a YAML file, WIFICTL_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BLEConfig selects and talks to the Wi-Fi agent over Bluetooth LE.
type BLEConfig struct {
	// Device is matched case-insensitively against advertised local names.
	Device         string        `mapstructure:"device"`
	ScanTimeout    time.Duration `mapstructure:"scanTimeout"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	// WriteInterval paces fragmented writes.
	WriteInterval time.Duration `mapstructure:"writeInterval"`
}

// FileConfig is the rolling log file (lumberjack). An empty filename
// disables file output.
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig controls the structured log sink.
type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Tag    string     `mapstructure:"tag"`
	File   FileConfig `mapstructure:"file"`
}

// ShellConfig controls the console.
type ShellConfig struct {
	Prompt string `mapstructure:"prompt"`
	Plain  bool   `mapstructure:"plain"`
}

// StationConfig holds the join/leave confirmation waits of the sta command.
type StationConfig struct {
	JoinTimeout  time.Duration `mapstructure:"joinTimeout"`
	LeaveTimeout time.Duration `mapstructure:"leaveTimeout"`
}

// IperfConfig holds measurement defaults.
type IperfConfig struct {
	Port     int `mapstructure:"port"`
	Interval int `mapstructure:"interval"`
	Time     int `mapstructure:"time"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// SimNetwork is an access point the simulated backend can see.
type SimNetwork struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
	RSSI     int    `mapstructure:"rssi"`
	Channel  int    `mapstructure:"channel"`
}

// SimConfig configures the simulated backend.
type SimConfig struct {
	Networks     []SimNetwork  `mapstructure:"networks"`
	ConnectDelay time.Duration `mapstructure:"connectDelay"`
	ScanDelay    time.Duration `mapstructure:"scanDelay"`
	StationIP    string        `mapstructure:"stationIP"`
	APIP         string        `mapstructure:"apIP"`
}

// Config is the top level configuration.
type Config struct {
	Backend string        `mapstructure:"backend"`
	BLE     BLEConfig     `mapstructure:"ble"`
	Logging LoggingConfig `mapstructure:"logging"`
	Shell   ShellConfig   `mapstructure:"shell"`
	Station StationConfig `mapstructure:"station"`
	Iperf   IperfConfig   `mapstructure:"iperf"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Sim     SimConfig     `mapstructure:"sim"`
}

const (
	BackendBLE = "ble"
	BackendSim = "sim"
)

// Load reads configuration. If path is empty, WIFICTL_CONFIG is consulted,
// then wifictl.yaml in the working directory and the user config directory.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("WIFICTL_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wifictl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "wifictl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("WIFICTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBLE, BackendSim:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Logging.Tag == "" {
		return errors.New("config: logging.tag must not be empty")
	}
	if c.Iperf.Port <= 0 || c.Iperf.Port > 65535 {
		return fmt.Errorf("config: iperf.port %d out of range", c.Iperf.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendBLE)

	v.SetDefault("ble.device", "wifi-agent")
	v.SetDefault("ble.scanTimeout", "15s")
	v.SetDefault("ble.requestTimeout", "5s")
	v.SetDefault("ble.writeInterval", "10ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.tag", "cmd_wifi")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("shell.prompt", "wifi> ")
	v.SetDefault("shell.plain", false)

	v.SetDefault("station.joinTimeout", "5s")
	v.SetDefault("station.leaveTimeout", "10ms")

	v.SetDefault("iperf.port", 5001)
	v.SetDefault("iperf.interval", 3)
	v.SetDefault("iperf.time", 30)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("sim.networks", []map[string]any{
		{"ssid": "lab", "password": "password123", "rssi": -42, "channel": 6},
		{"ssid": "guest", "rssi": -71, "channel": 11},
	})
	v.SetDefault("sim.connectDelay", "200ms")
	v.SetDefault("sim.scanDelay", "300ms")
	v.SetDefault("sim.stationIP", "192.168.4.2")
	v.SetDefault("sim.apIP", "192.168.4.1")
}
