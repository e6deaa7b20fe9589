// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/rrg/state"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// emulatorConfig keeps the emulator memory in a file so that state survives
// from one run to the next.
func emulatorConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, `
device:
  max_flow: 100
  transport:
    type: emulator
    emulator:
      serial_number: 7
      persistence:
        type: file
        path: `+filepath.Join(t.TempDir(), "rrg.bin")+`
`)
}

func TestLoadConfigFlags(t *testing.T) {
	path := emulatorConfig(t)

	cfg, args, err := loadConfig([]string{"-c", path, "-P", "modbus", "-a", "3", "-v", "debug", "flow"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	d := cfg.Device
	if d.Protocol != config.ProtocolModbus || d.Address != 3 || d.MaxFlow != 100 {
		t.Errorf("device = %+v", d)
	}
	if d.Transport.Emulator.Address != 3 {
		t.Errorf("emulator address = %d, want the device address", d.Transport.Emulator.Address)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if len(args) != 1 || args[0] != "flow" {
		t.Errorf("args = %v", args)
	}
}

func TestLoadConfigFileWinsOverFlagDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  protocol: modbus
  max_flow: 50
  address: 5
  transport:
    type: tcp
    tcp:
      address: 10.0.0.5:4001
`)

	cfg, _, err := loadConfig([]string{"-c", path})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	d := cfg.Device
	if d.Protocol != config.ProtocolModbus || d.Address != 5 || d.Transport.TCP.Address != "10.0.0.5:4001" {
		t.Errorf("device = %+v", d)
	}
	if d.Transport.Serial.BaudRate != 19200 {
		t.Errorf("baud rate = %d, want default", d.Transport.Serial.BaudRate)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := emulatorConfig(t)
	if _, _, err := loadConfig([]string{"-c", path, "-P", "ascii"}); err == nil {
		t.Error("loadConfig accepted an unknown protocol")
	}
	if _, _, err := loadConfig([]string{"-c", path, "--no-such-flag"}); err == nil {
		t.Error("loadConfig accepted an unknown flag")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		field   string
		arg     string
		want    state.Value
		wantErr bool
	}{
		{"Plug", "closed", state.PlugClosed, false},
		{"Plug", "OPENED_ALT", state.PlugOpenedAlt, false},
		{"Plug", "1", state.PlugOpened, false},
		{"TypeMode", "measuring", state.TypeModeMeasuring, false},
		{"MeasuringMode", "rdg", state.MeasuringModeRDG, false},
		{"Recovery", "0", state.RecoveryMixed, false},
		{"Recovery", "2", nil, true},
		{"Plug", "half", nil, true},
		{"Flow", "1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.arg, func(t *testing.T) {
			got, err := parseValue(tt.field, tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

// runCommand runs one command against the emulator described by path.
func runCommand(t *testing.T, path string, extra ...string) (string, error) {
	t.Helper()
	cfg, args, err := loadConfig(append([]string{"-c", path}, extra...))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	var out bytes.Buffer
	err = run(context.Background(), cfg, args, &out)
	return out.String(), err
}

func TestRunFrameCommands(t *testing.T) {
	path := emulatorConfig(t)

	out, err := runCommand(t, path, "identify")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if out != "address: 1\nserial: 7\n" {
		t.Errorf("identify output = %q", out)
	}

	out, err = runCommand(t, path, "state")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !strings.Contains(out, "Plug=CLOSED") {
		t.Errorf("state output = %q, want a closed valve", out)
	}

	if _, err := runCommand(t, path, "set-flow", "40"); err != nil {
		t.Fatalf("set-flow failed: %v", err)
	}
	// A fresh process sees the setpoint through the persisted memory.
	out, err = runCommand(t, path, "flow")
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}
	if out != "measured: 40\nsetpoint: 40\n" {
		t.Errorf("flow output = %q", out)
	}

	if _, err := runCommand(t, path, "set-zero", "12"); err != nil {
		t.Fatalf("set-zero failed: %v", err)
	}
	out, err = runCommand(t, path, "zero")
	if err != nil {
		t.Fatalf("zero failed: %v", err)
	}
	if out != "zero: 12\n" {
		t.Errorf("zero output = %q", out)
	}
}

func TestRunModbusCommands(t *testing.T) {
	path := emulatorConfig(t)

	if _, err := runCommand(t, path, "-P", "modbus", "-a", "1", "plug", "opened"); err != nil {
		t.Fatalf("plug failed: %v", err)
	}
	out, err := runCommand(t, path, "-P", "modbus", "-a", "1", "flow")
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}
	if out != "measured: 100\n" {
		t.Errorf("flow output = %q", out)
	}

	if _, err := runCommand(t, path, "-P", "modbus", "-a", "1", "check"); err == nil {
		t.Error("check succeeded on modbus")
	}
	if _, err := runCommand(t, path, "-P", "modbus", "-a", "1", "zero"); err == nil {
		t.Error("zero succeeded on modbus")
	}
}

func TestRunUsageErrors(t *testing.T) {
	path := emulatorConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"NoCommand", nil},
		{"Unknown", []string{"launch"}},
		{"MissingArg", []string{"set-flow"}},
		{"ExtraArg", []string{"flow", "now"}},
		{"BadFlow", []string{"set-flow", "lots"}},
		{"BadEnum", []string{"plug", "half"}},
		{"EmulateNoAddress", []string{"emulate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCommand(t, path, tt.args...); err == nil {
				t.Error("run succeeded")
			}
		})
	}
}

func TestEmulateNeedsEmulatorTransport(t *testing.T) {
	cfg := &config.Config{Device: config.DeviceConfig{
		Protocol:  config.ProtocolFrame,
		MaxFlow:   100,
		Transport: config.TransportConfig{Type: config.TransportSerial},
	}}
	if err := run(context.Background(), cfg, []string{"emulate", "127.0.0.1:0"}, &bytes.Buffer{}); err == nil {
		t.Error("emulate over a serial transport succeeded")
	}
}
