// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtuovertcp

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ffutop/rrg12/device"
	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/modbus"
	"github.com/ffutop/rrg12/rrg/frame"
	"github.com/ffutop/rrg12/rrg/register"
	"github.com/ffutop/rrg12/transport"
)

// startServer serves a fresh emulator at address 3 and returns its address.
func startServer(t *testing.T, protocol string) string {
	t.Helper()
	emu := emulator.Open(config.EmulatorConfig{
		SerialNumber: 7,
		Address:      3,
		MaxFlow:      100,
		Persistence:  config.PersistenceConfig{Type: "memory"},
	})
	s := NewServer("127.0.0.1:0", protocol, emu)
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
	return s.Addr().String()
}

func TestFrameSessionOverTCP(t *testing.T) {
	addr := startServer(t, config.ProtocolFrame)
	conn := NewConn(config.TCPConfig{Address: addr, Timeout: time.Second})
	defer conn.Close()

	s, err := device.NewFrameSession(conn, 100)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := s.Identify(ctx)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if got != 3 {
		t.Errorf("Identify() = %d, want 3", got)
	}
	if err := s.WriteFlow(ctx, 25); err != nil {
		t.Fatalf("WriteFlow failed: %v", err)
	}
	f, err := s.ReadFlow(ctx)
	if err != nil {
		t.Fatalf("ReadFlow failed: %v", err)
	}
	if f.Setpoint != 25 || f.Measured != 25 {
		t.Errorf("ReadFlow() = %+v, want 25/25", f)
	}
}

func TestFrameSilenceTimesOut(t *testing.T) {
	addr := startServer(t, config.ProtocolFrame)
	conn := NewConn(config.TCPConfig{Address: addr, Timeout: 100 * time.Millisecond})
	defer conn.Close()

	// Nobody answers at address 9.
	if _, err := conn.Write(frame.StateRequest(9).Bytes()); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, frame.Size)
	_, err := io.ReadFull(conn, buf)
	var nerr net.Error
	if !errors.As(err, &nerr) || !nerr.Timeout() {
		t.Fatalf("Read error = %v, want timeout", err)
	}

	// The connection was dropped; the next exchange redials.
	if _, err := conn.Write(frame.StateRequest(3).Bytes()); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("Read after redial failed: %v", err)
	}
	resp, err := frame.Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Command() != frame.CmdState || resp.Address() != 3 {
		t.Errorf("response = %v from %d", resp.Command(), resp.Address())
	}
}

func TestClientOverTCP(t *testing.T) {
	addr := startServer(t, config.ProtocolModbus)
	c := NewClient(config.TCPConfig{Address: addr, Timeout: time.Second})
	defer c.Close()
	regs := transport.NewRegisters(c)
	ctx := context.Background()

	if err := regs.WriteSingleRegister(ctx, 3, register.FlowSetpoint, 5000); err != nil {
		t.Fatalf("WriteSingleRegister failed: %v", err)
	}
	values, err := regs.ReadHoldingRegisters(ctx, 3, 0, register.Count)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	if values[register.NetAddress] != 3 || values[register.FlowSetpoint] != 5000 {
		t.Errorf("registers = %v", values)
	}

	err = regs.WriteSingleRegister(ctx, 3, register.Flags2, 0)
	var exc *modbus.ExceptionError
	if !errors.As(err, &exc) || exc.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("write to status byte: err = %v, want illegal data address", err)
	}
}

func TestClientWrongSlave(t *testing.T) {
	addr := startServer(t, config.ProtocolModbus)
	c := NewClient(config.TCPConfig{Address: addr, Timeout: 100 * time.Millisecond})
	defer c.Close()
	regs := transport.NewRegisters(c)

	if _, err := regs.ReadHoldingRegisters(context.Background(), 9, 0, 1); err == nil {
		t.Fatal("read from an absent slave succeeded")
	}
	if _, err := regs.ReadHoldingRegisters(context.Background(), 3, 0, 1); err != nil {
		t.Fatalf("read after timeout failed: %v", err)
	}
}

func TestClientCancelledContext(t *testing.T) {
	c := NewClient(config.TCPConfig{Address: "127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, 3, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0, 0, 0, 1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send error = %v, want context.Canceled", err)
	}
}

func TestServerDropsUnknownFunction(t *testing.T) {
	addr := startServer(t, config.ProtocolModbus)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0x03, 0x2B, 0x0E, 0x01, 0x00, 0x00, 0x00}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read error = %v, want EOF", err)
	}
}

func TestServerUnknownProtocol(t *testing.T) {
	s := NewServer("127.0.0.1:0", "ascii", nil)
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start with an unknown protocol succeeded")
	}
}
