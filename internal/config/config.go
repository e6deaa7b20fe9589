// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Protocol variants.
const (
	ProtocolFrame  = "frame"
	ProtocolModbus = "modbus"
)

// Transport types.
const (
	TransportSerial   = "serial"
	TransportEmulator = "emulator"
	// TransportTCP reaches the line through a serial device server that
	// forwards raw bytes over TCP.
	TransportTCP = "tcp"
)

// Modbus drivers for the serial transport.
const (
	DriverNative   = "native"
	DriverGoburrow = "goburrow"
)

// Config defines the global configuration structure
type Config struct {
	Device DeviceConfig `mapstructure:"device"`
	Log    LogConfig    `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DeviceConfig defines the controller being driven
type DeviceConfig struct {
	Protocol  string          `mapstructure:"protocol"` // "frame", "modbus"
	MaxFlow   float64         `mapstructure:"max_flow"`
	Address   uint8           `mapstructure:"address"` // 0 means discover (frame only)
	Transport TransportConfig `mapstructure:"transport"`
}

// TransportConfig defines how the device is reached
type TransportConfig struct {
	Type     string         `mapstructure:"type"`   // "serial", "emulator", "tcp"
	Driver   string         `mapstructure:"driver"` // "native", "goburrow"; modbus over serial only
	Serial   SerialConfig   `mapstructure:"serial"`
	TCP      TCPConfig      `mapstructure:"tcp"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
}

// Framings on the tcp transport.
const (
	FramingRaw  = "raw"  // bytes forwarded unchanged by a serial device server
	FramingMBAP = "mbap" // Modbus TCP gateway; modbus only
)

// TCPConfig defines a serial device server or Modbus TCP gateway endpoint
type TCPConfig struct {
	Address string        `mapstructure:"address"` // host:port
	Framing string        `mapstructure:"framing"` // "raw", "mbap"
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmulatorConfig defines the in-process device used instead of a serial line
type EmulatorConfig struct {
	SerialNumber uint16            `mapstructure:"serial_number"`
	Address      uint8             `mapstructure:"address"`
	MaxFlow      float64           `mapstructure:"max_flow"`
	Persistence  PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sqlite"
	Path string `mapstructure:"path"` // File path or DSN
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device    string        `mapstructure:"device"`
	BaudRate  int           `mapstructure:"baud_rate"`
	DataBits  int           `mapstructure:"data_bits"`
	Parity    string        `mapstructure:"parity"`
	StopBits  int           `mapstructure:"stop_bits"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RqstPause time.Duration `mapstructure:"rqst_pause"` // Pause between requests
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/rrgctl/")
		v.AddConfigPath("$HOME/.rrgctl")
		v.AddConfigPath(".")
	}

	return load(v)
}

// LoadViper unmarshals configuration from an already prepared viper instance,
// e.g. one with command-line flags bound to it.
func LoadViper(v *viper.Viper) (*Config, error) {
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Device.Transport.Serial)
	if config.Device.Transport.TCP.Timeout == 0 {
		config.Device.Transport.TCP.Timeout = config.Device.Transport.Serial.Timeout
	}
	fixupEmulator(&config.Device)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("device.protocol", ProtocolFrame)
	v.SetDefault("device.transport.type", TransportSerial)
	v.SetDefault("device.transport.driver", DriverNative)
	v.SetDefault("device.transport.serial.baud_rate", 19200)
	v.SetDefault("device.transport.serial.data_bits", 8)
	v.SetDefault("device.transport.serial.parity", "N")
	v.SetDefault("device.transport.serial.stop_bits", 1)
	v.SetDefault("device.transport.tcp.framing", FramingRaw)
	v.SetDefault("device.transport.emulator.persistence.type", "memory")
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
	if s.RqstPause == 0 {
		s.RqstPause = 100 * time.Millisecond
	}
}

func fixupEmulator(d *DeviceConfig) {
	e := &d.Transport.Emulator
	if e.MaxFlow == 0 {
		e.MaxFlow = d.MaxFlow
	}
	if e.Address == 0 {
		e.Address = d.Address
	}
	if e.Address == 0 {
		e.Address = 1
	}
}
