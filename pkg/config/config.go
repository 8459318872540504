// Package config loads probe configuration from YAML files and
// IOTEDGE_* environment variables via viper. Defaults make the binary
// runnable with no file at all; validation runs on every load so a bad
// value fails startup instead of the first invocation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ziyasal/iotedge/pkg/identity"
	"github.com/ziyasal/iotedge/pkg/protocol/codec"
	"github.com/ziyasal/iotedge/pkg/transport"
)

// EnvPrefix namespaces environment overrides, e.g.
// IOTEDGE_PROBE_INTERVAL=2s or IOTEDGE_HUB_ADDRESS=edgehub:15580.
const EnvPrefix = "IOTEDGE"

// Config is the root of the probe configuration.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	DeviceID string `mapstructure:"device_id"`
	ModuleID string `mapstructure:"module_id"`

	Log   Log   `mapstructure:"log"`
	Hub   Hub   `mapstructure:"hub"`
	Probe Probe `mapstructure:"probe"`
}

// Log mirrors the observability setup.
type Log struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"` // console | json
	Outputs     []string `mapstructure:"outputs"`
	Development bool     `mapstructure:"development"`
	Rotation    Rotation `mapstructure:"rotation"`
}

// Rotation configures the lumberjack file sink.
type Rotation struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Hub describes how to reach the fabric gateway.
type Hub struct {
	Kind             string        `mapstructure:"kind"`
	Address          string        `mapstructure:"address"`
	Token            string        `mapstructure:"token"`
	Format           string        `mapstructure:"format"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	KeepAlive        time.Duration `mapstructure:"keepalive"`
}

// Probe tunes the invocation loop.
type Probe struct {
	Interval       time.Duration `mapstructure:"interval"`
	TargetDeviceID string        `mapstructure:"target_device_id"`
	TargetModuleID string        `mapstructure:"target_module_id"`
	MethodTimeout  time.Duration `mapstructure:"method_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config: defaults do not unmarshal: " + err.Error())
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "iotedge-probe")
	v.SetDefault("device_id", "probe-device")
	v.SetDefault("module_id", "methodProbe")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.outputs", []string{"stdout"})
	v.SetDefault("log.development", true)
	v.SetDefault("log.rotation.enable", false)
	v.SetDefault("log.rotation.filename", "logs/iotedge-probe.log")
	v.SetDefault("log.rotation.max_size_mb", 100)
	v.SetDefault("log.rotation.max_backups", 3)
	v.SetDefault("log.rotation.max_age_days", 28)
	v.SetDefault("log.rotation.compress", true)

	v.SetDefault("hub.kind", "tcp")
	v.SetDefault("hub.address", "edgehub:15580")
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.format", "json")
	v.SetDefault("hub.dial_timeout", "10s")
	v.SetDefault("hub.handshake_timeout", "10s")
	v.SetDefault("hub.keepalive", "0s")

	v.SetDefault("probe.interval", "5s")
	v.SetDefault("probe.target_device_id", "")
	v.SetDefault("probe.target_module_id", "directMethodReceiver")
	v.SetDefault("probe.method_timeout", "30s")
	v.SetDefault("probe.shutdown_grace", "10s")
}

// Load reads the configuration. An empty path searches iotedge.yaml in
// ., ./configs and ~/.iotedge; a missing file is fine, environment and
// defaults still apply. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("iotedge")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.iotedge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for main(); it panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects values the probe cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return errors.New("config: device_id must not be empty")
	}
	if strings.TrimSpace(c.ModuleID) == "" {
		return errors.New("config: module_id must not be empty")
	}
	if _, err := transport.ParseKind(c.Hub.Kind); err != nil {
		return fmt.Errorf("config: hub.kind: %w", err)
	}
	if strings.TrimSpace(c.Hub.Address) == "" {
		return errors.New("config: hub.address must not be empty")
	}
	f, err := codec.ParseFormat(c.Hub.Format)
	if err != nil {
		return fmt.Errorf("config: hub.format: %w", err)
	}
	if f == codec.FormatProto {
		return errors.New("config: hub.format proto is not usable for probe bodies; use json or cbor")
	}
	if c.Probe.Interval <= 0 {
		return errors.New("config: probe.interval must be positive")
	}
	if c.Probe.MethodTimeout <= 0 {
		return errors.New("config: probe.method_timeout must be positive")
	}
	if c.Probe.ShutdownGrace <= 0 {
		return errors.New("config: probe.shutdown_grace must be positive")
	}
	return c.Target().Validate()
}

// Local is the identity this probe presents in the handshake.
func (c *Config) Local() identity.ModuleIdentity {
	return identity.New(c.DeviceID, c.ModuleID)
}

// Target is the module the probe invokes. An empty target_device_id
// falls back to the probe's own device, the common same-device setup.
func (c *Config) Target() identity.ModuleIdentity {
	device := c.Probe.TargetDeviceID
	if device == "" {
		device = c.DeviceID
	}
	return identity.New(device, c.Probe.TargetModuleID)
}
