// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package config loads the noolite configuration from a YAML file, NOOLITE_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

// EnvPrefix is the prefix of environment overrides, e.g. NOOLITE_SERIAL_PORT
const EnvPrefix = "NOOLITE"

// SerialConfig selects the transceiver link
type SerialConfig struct {
	Port        string `mapstructure:"port" yaml:"port"`
	Baud        int    `mapstructure:"baud" yaml:"baud"`
	URL         string `mapstructure:"url" yaml:"url,omitempty"`
	Username    string `mapstructure:"username" yaml:"username,omitempty"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify" yaml:"noSSLVerify"`
}

// AdapterConfig tunes command exchanges
type AdapterConfig struct {
	ResponseTimeout time.Duration `mapstructure:"responseTimeout" yaml:"responseTimeout"`
	SettleDelay     time.Duration `mapstructure:"settleDelay" yaml:"settleDelay"`
	QueueSize       int           `mapstructure:"queueSize" yaml:"queueSize"`
}

// LumberjackConfig configures the rotating log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge" yaml:"maxAge"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LoggingConfig selects level, encoding and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level" yaml:"level"`
	Format string           `mapstructure:"format" yaml:"format"`
	File   LumberjackConfig `mapstructure:"file" yaml:"file"`
}

// MQTTConfig configures the MQTT bridge
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker" yaml:"broker"`
	ClientIDPrefix string        `mapstructure:"clientIdPrefix" yaml:"clientIdPrefix"`
	Username       string        `mapstructure:"username" yaml:"username,omitempty"`
	Password       string        `mapstructure:"password" yaml:"password,omitempty"`
	TopicPrefix    string        `mapstructure:"topicPrefix" yaml:"topicPrefix"`
	QoS            byte          `mapstructure:"qos" yaml:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`
	CommandRate    float64       `mapstructure:"commandRate" yaml:"commandRate"`
	CommandBurst   int           `mapstructure:"commandBurst" yaml:"commandBurst"`
}

// InfluxDBConfig configures sensor telemetry export
type InfluxDBConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	URL           string        `mapstructure:"url" yaml:"url"`
	Token         string        `mapstructure:"token" yaml:"token,omitempty"`
	Org           string        `mapstructure:"org" yaml:"org"`
	Bucket        string        `mapstructure:"bucket" yaml:"bucket"`
	BatchSize     uint          `mapstructure:"batchSize" yaml:"batchSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval" yaml:"flushInterval"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DeviceConfig describes a power block exposed by the bridge
type DeviceConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Kind      string `mapstructure:"kind" yaml:"kind"`
	Channel   *uint8 `mapstructure:"channel" yaml:"channel,omitempty"`
	ID        uint32 `mapstructure:"id" yaml:"id,omitempty"`
	Broadcast bool   `mapstructure:"broadcast" yaml:"broadcast,omitempty"`
	Legacy    bool   `mapstructure:"legacy" yaml:"legacy,omitempty"`
}

// Address converts the device addressing fields
func (d DeviceConfig) Address() mtrf.Address {
	addr := mtrf.Address{ID: d.ID, Broadcast: d.Broadcast}
	if d.Channel != nil {
		addr = addr.InChannel(*d.Channel)
	}
	if d.Legacy {
		addr = addr.WithKind(mtrf.NooLite)
	}
	return addr
}

// SensorConfig describes a transmitter bound to a transceiver channel
type SensorConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Type    string `mapstructure:"type" yaml:"type"`
	Channel uint8  `mapstructure:"channel" yaml:"channel"`
}

// Sensor types
const (
	SensorTempHumi = "temphumi"
	SensorMotion   = "motion"
	SensorBinary   = "binary"
	SensorRemote   = "remote"
)

// Config is the top-level configuration
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial" yaml:"serial"`
	Adapter  AdapterConfig  `mapstructure:"adapter" yaml:"adapter"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	MQTT     MQTTConfig     `mapstructure:"mqtt" yaml:"mqtt"`
	InfluxDB InfluxDBConfig `mapstructure:"influxdb" yaml:"influxdb"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Devices  []DeviceConfig `mapstructure:"devices" yaml:"devices"`
	Sensors  []SensorConfig `mapstructure:"sensors" yaml:"sensors"`
}

// Load reads configuration from path, or from noolite.yaml in the working
// directory, ~/.config/noolite or /etc/noolite when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("noolite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/noolite")
		v.AddConfigPath("/etc/noolite")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", mtrf.BaudRate)
	v.SetDefault("serial.url", "")
	v.SetDefault("serial.username", "")
	v.SetDefault("serial.noSSLVerify", false)

	v.SetDefault("adapter.responseTimeout", mtrf.DefaultResponseTimeout)
	v.SetDefault("adapter.settleDelay", mtrf.DefaultSettleDelay)
	v.SetDefault("adapter.queueSize", mtrf.DefaultQueueSize)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientIdPrefix", "noolite")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topicPrefix", "noolite")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connectTimeout", "10s")
	v.SetDefault("mqtt.commandRate", 2.0)
	v.SetDefault("mqtt.commandBurst", 4)

	v.SetDefault("influxdb.enabled", false)
	v.SetDefault("influxdb.url", "http://localhost:8086")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "home")
	v.SetDefault("influxdb.bucket", "noolite")
	v.SetDefault("influxdb.batchSize", 50)
	v.SetDefault("influxdb.flushInterval", "10s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9108")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Serial.Baud != mtrf.BaudRate {
		return fmt.Errorf("serial.baud: the MTRF-64 only supports %d baud, got %d", mtrf.BaudRate, c.Serial.Baud)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos: must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.CommandRate <= 0 {
		return fmt.Errorf("mqtt.commandRate: must be positive")
	}
	if c.MQTT.CommandBurst < 1 {
		return fmt.Errorf("mqtt.commandBurst: must be at least 1")
	}

	names := make(map[string]bool)
	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name required", i)
		}
		if names[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name)
		}
		names[d.Name] = true
		if _, err := mtrf.ParseKind(d.Kind); err != nil {
			return fmt.Errorf("devices[%d] %s: %w", i, d.Name, err)
		}
		if d.Channel == nil && d.ID == 0 {
			return fmt.Errorf("devices[%d] %s: channel or id required", i, d.Name)
		}
		if d.Legacy && d.ID != 0 {
			return fmt.Errorf("devices[%d] %s: legacy devices have no id", i, d.Name)
		}
	}

	for i, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensors[%d]: name required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("sensors[%d]: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
		switch s.Type {
		case SensorTempHumi, SensorMotion, SensorBinary, SensorRemote:
		default:
			return fmt.Errorf("sensors[%d] %s: unknown type %q", i, s.Name, s.Type)
		}
	}
	return nil
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
