// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ffutop/rrg12/device"
	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/modbus"
	"github.com/ffutop/rrg12/rrg/state"
	"github.com/ffutop/rrg12/transport"
)

func startServer(t *testing.T) *Client {
	t.Helper()
	emu := emulator.Open(config.EmulatorConfig{
		SerialNumber: 7,
		Address:      3,
		MaxFlow:      100,
		Persistence:  config.PersistenceConfig{Type: "memory"},
	})
	s := NewServer("127.0.0.1:0", emu)
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start returned %v", err)
		}
		emu.Close()
	})
	return NewClient(config.TCPConfig{Address: s.Addr().String(), Timeout: time.Second})
}

func TestModbusSessionOverTCP(t *testing.T) {
	s, err := device.NewModbusSession(transport.NewRegisters(startServer(t)), 3, 100)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.WriteFlow(ctx, 12.5); err != nil {
		t.Fatalf("WriteFlow failed: %v", err)
	}
	f, err := s.ReadFlow(ctx)
	if err != nil {
		t.Fatalf("ReadFlow failed: %v", err)
	}
	if f.Measured != 12.5 {
		t.Errorf("Measured = %v, want 12.5", f.Measured)
	}

	w, err := s.WritableState(ctx)
	if err != nil {
		t.Fatalf("WritableState failed: %v", err)
	}
	if w.Plug() != state.PlugRegulation {
		t.Errorf("Plug = %v, want REGULATION", w.Plug())
	}
}

func TestServerUnknownUnit(t *testing.T) {
	regs := transport.NewRegisters(startServer(t))

	_, err := regs.ReadHoldingRegisters(context.Background(), 9, 0, 1)
	var exc *modbus.ExceptionError
	if !errors.As(err, &exc) || exc.ExceptionCode != modbus.ExceptionCodeGatewayTargetDeviceFailedToRespond {
		t.Errorf("err = %v, want gateway target exception", err)
	}
}
