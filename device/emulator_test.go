// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device_test

import (
	"context"
	"math"
	"testing"

	"github.com/ffutop/rrg12/device"
	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/rrg/state"
	"github.com/ffutop/rrg12/transport"
	"github.com/ffutop/rrg12/transport/local"
	"github.com/ffutop/rrg12/transport/serial"
)

func openEmulator() *emulator.Emulator {
	return emulator.Open(config.EmulatorConfig{
		SerialNumber: 7,
		Address:      3,
		MaxFlow:      100,
		Persistence:  config.PersistenceConfig{Type: "memory"},
	})
}

// sessions returns one session per transport stack, each over its own emulator.
func sessions(t *testing.T) map[string]device.Device {
	t.Helper()
	out := make(map[string]device.Device)

	port := local.NewPort(openEmulator())
	t.Cleanup(func() { port.Close() })
	fs, err := device.NewFrameSession(port, 100)
	if err != nil {
		t.Fatal(err)
	}
	out["frame"] = fs

	// The same emulator behind the serial port lifecycle.
	line := serial.New(config.SerialConfig{})
	line.Attach(local.NewPort(openEmulator()))
	t.Cleanup(func() { line.Close() })
	ss, err := device.NewFrameSession(line, 100)
	if err != nil {
		t.Fatal(err)
	}
	out["frame-serial"] = ss

	client := local.NewClient(openEmulator())
	t.Cleanup(func() { client.Close() })
	ms, err := device.NewModbusSession(transport.NewRegisters(client), 3, 100)
	if err != nil {
		t.Fatal(err)
	}
	out["modbus"] = ms

	return out
}

func TestEndToEnd(t *testing.T) {
	for name, d := range sessions(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			addr, err := d.Identify(ctx)
			if err != nil || addr != 3 {
				t.Fatalf("Identify = (%d, %v)", addr, err)
			}

			w, err := d.State(ctx)
			if err != nil {
				t.Fatalf("State failed: %v", err)
			}
			if w.Config.Plug() != state.PlugClosed {
				t.Errorf("initial plug = %v", w.Config.Plug())
			}

			if err := d.WriteFlow(ctx, 42.5); err != nil {
				t.Fatalf("WriteFlow failed: %v", err)
			}
			flow, err := d.ReadFlow(ctx)
			if err != nil {
				t.Fatalf("ReadFlow failed: %v", err)
			}
			if math.Abs(flow.Measured-42.5) > 0.01 {
				t.Errorf("measured = %v, want 42.5", flow.Measured)
			}
			if flow.SetpointKnown && math.Abs(flow.Setpoint-42.5) > 0.01 {
				t.Errorf("setpoint = %v, want 42.5", flow.Setpoint)
			}

			w, err = d.State(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if w.Config.Plug() != state.PlugRegulation || w.Status.OuterPlugState() != state.OuterPlugRegulation {
				t.Errorf("state after WriteFlow = %v", w)
			}

			if err := d.WriteFlow(ctx, 0); err != nil {
				t.Fatalf("WriteFlow(0) failed: %v", err)
			}
			if flow, _ := d.ReadFlow(ctx); flow.Measured != 0 {
				t.Errorf("measured after close = %v", flow.Measured)
			}

			if err := d.SetRecoveryMode(ctx, state.RecoveryAnalog); err != nil {
				t.Fatal(err)
			}
			cfg, err := d.WritableState(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Recovery() != state.RecoveryAnalog || cfg.Plug() != state.PlugClosed {
				t.Errorf("config = %v", cfg)
			}

			if err := d.SetBaudrate(ctx, 38400); err != nil {
				t.Fatal(err)
			}

			if err := d.RedefineAddress(ctx, 9); err != nil {
				t.Fatalf("RedefineAddress failed: %v", err)
			}
			if _, err := d.State(ctx); err != nil {
				t.Errorf("State at the new address failed: %v", err)
			}
		})
	}
}

func TestFrameZeroRoundTrip(t *testing.T) {
	port := local.NewPort(openEmulator())
	defer port.Close()

	s, err := device.NewFrameSession(port, 100)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Identify(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.SetZero(ctx, 0x0102); err != nil {
		t.Fatal(err)
	}
	shift, err := s.Zero(ctx)
	if err != nil || shift != 0x0102 {
		t.Errorf("Zero = (%#04x, %v)", shift, err)
	}
	cfg, err := s.WritableState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ZeroSetup() != state.ZeroSetupOn {
		t.Error("zero setup flag not set")
	}

	addr, serial, err := s.CheckConnection(ctx)
	if err != nil || addr != 3 || serial != 7 {
		t.Errorf("CheckConnection = (%d, %d, %v)", addr, serial, err)
	}
}
