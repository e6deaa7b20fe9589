// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  protocol: modbus
  max_flow: 250.5
  address: 3
  transport:
    type: serial
    driver: goburrow
    serial:
      device: /dev/ttyUSB0
      baud_rate: 38400
      parity: e
      timeout: 1s
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	d := cfg.Device
	if d.Protocol != ProtocolModbus || d.MaxFlow != 250.5 || d.Address != 3 {
		t.Errorf("device = %+v", d)
	}
	s := d.Transport.Serial
	if s.Device != "/dev/ttyUSB0" || s.BaudRate != 38400 || s.Parity != "E" {
		t.Errorf("serial = %+v", s)
	}
	if s.DataBits != 8 || s.StopBits != 1 {
		t.Errorf("serial defaults not applied: %+v", s)
	}
	if s.Timeout != time.Second || s.RqstPause != 100*time.Millisecond {
		t.Errorf("timeouts = %v/%v", s.Timeout, s.RqstPause)
	}
	if d.Transport.Driver != DriverGoburrow {
		t.Errorf("driver = %q", d.Transport.Driver)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfigEmulatorDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  max_flow: 100
  transport:
    type: emulator
    emulator:
      serial_number: 7
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	e := cfg.Device.Transport.Emulator
	if cfg.Device.Protocol != ProtocolFrame {
		t.Errorf("protocol = %q, want frame", cfg.Device.Protocol)
	}
	if e.MaxFlow != 100 || e.Address != 1 || e.SerialNumber != 7 || e.Persistence.Type != "memory" {
		t.Errorf("emulator = %+v", e)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfigTCPTimeout(t *testing.T) {
	path := writeConfig(t, `
device:
  max_flow: 100
  transport:
    type: tcp
    tcp:
      address: 10.0.0.5:4001
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	tcp := cfg.Device.Transport.TCP
	if tcp.Address != "10.0.0.5:4001" || tcp.Framing != FramingRaw || tcp.Timeout != 500*time.Millisecond {
		t.Errorf("tcp = %+v", tcp)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig of a missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Device: DeviceConfig{
				Protocol: ProtocolModbus,
				MaxFlow:  100,
				Address:  3,
				Transport: TransportConfig{
					Type:   TransportSerial,
					Driver: DriverNative,
					Serial: SerialConfig{Device: "/dev/ttyUSB0", Parity: "N"},
					Emulator: EmulatorConfig{
						Address:     3,
						Persistence: PersistenceConfig{Type: "memory"},
					},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"UnknownProtocol", func(c *Config) { c.Device.Protocol = "ascii" }, true},
		{"ZeroMaxFlow", func(c *Config) { c.Device.MaxFlow = 0 }, true},
		{"ModbusNoAddress", func(c *Config) { c.Device.Address = 0 }, true},
		{"ModbusBroadcastRange", func(c *Config) { c.Device.Address = 250 }, true},
		{"FrameDiscovers", func(c *Config) { c.Device.Protocol = ProtocolFrame; c.Device.Address = 0 }, false},
		{"NoSerialDevice", func(c *Config) { c.Device.Transport.Serial.Device = "" }, true},
		{"BadParity", func(c *Config) { c.Device.Transport.Serial.Parity = "X" }, true},
		{"GoburrowFrame", func(c *Config) {
			c.Device.Protocol = ProtocolFrame
			c.Device.Transport.Driver = DriverGoburrow
		}, true},
		{"UnknownTransport", func(c *Config) { c.Device.Transport.Type = "udp" }, true},
		{"TCP", func(c *Config) {
			c.Device.Transport.Type = TransportTCP
			c.Device.Transport.TCP.Address = "10.0.0.5:4001"
			c.Device.Transport.TCP.Framing = FramingRaw
		}, false},
		{"TCPMBAP", func(c *Config) {
			c.Device.Transport.Type = TransportTCP
			c.Device.Transport.TCP.Address = "10.0.0.5:502"
			c.Device.Transport.TCP.Framing = FramingMBAP
		}, false},
		{"TCPMBAPFrame", func(c *Config) {
			c.Device.Protocol = ProtocolFrame
			c.Device.Transport.Type = TransportTCP
			c.Device.Transport.TCP.Address = "10.0.0.5:502"
			c.Device.Transport.TCP.Framing = FramingMBAP
		}, true},
		{"TCPUnknownFraming", func(c *Config) {
			c.Device.Transport.Type = TransportTCP
			c.Device.Transport.TCP.Address = "10.0.0.5:502"
			c.Device.Transport.TCP.Framing = "udp"
		}, true},
		{"TCPNoAddress", func(c *Config) {
			c.Device.Transport.Type = TransportTCP
			c.Device.Transport.TCP.Framing = FramingRaw
		}, true},
		{"EmulatorMmapNoPath", func(c *Config) {
			c.Device.Transport.Type = TransportEmulator
			c.Device.Transport.Emulator.Persistence.Type = "mmap"
		}, true},
		{"EmulatorAddressMismatch", func(c *Config) {
			c.Device.Transport.Type = TransportEmulator
			c.Device.Transport.Emulator.Address = 4
		}, true},
		{"BadLogLevel", func(c *Config) { c.Log.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
