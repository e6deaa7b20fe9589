// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/rrg12/rrg"
	"github.com/ffutop/rrg12/rrg/register"
	"github.com/ffutop/rrg12/rrg/state"
)

var errShortResponse = errors.New("short register response")

// ModbusSession drives a device over its Modbus register map. The unit id is
// provisioned up front, so the session starts identified.
type ModbusSession struct {
	client  RegisterClient
	conv    register.Converter
	address uint8
}

// NewModbusSession borrows client. address must be a valid unit id.
func NewModbusSession(client RegisterClient, address uint8, maxFlow float64) (*ModbusSession, error) {
	if err := checkAddress(address); err != nil {
		return nil, err
	}
	conv, err := register.NewConverter(maxFlow)
	if err != nil {
		return nil, err
	}
	return &ModbusSession{client: client, conv: conv, address: address}, nil
}

func (s *ModbusSession) read(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := fmt.Sprintf("read register %#04x", address)
	values, err := s.client.ReadHoldingRegisters(ctx, s.address, address, quantity)
	if err != nil {
		return nil, &rrg.TransportError{Op: op, Err: err}
	}
	if len(values) < int(quantity) {
		return nil, &rrg.TransportError{Op: op, Err: errShortResponse}
	}
	slog.Debug("read registers", "slave", s.address, "address", address, "values", values)
	return values, nil
}

func (s *ModbusSession) write(ctx context.Context, address, value uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Debug("write register", "slave", s.address, "address", address, "value", value)
	if err := s.client.WriteSingleRegister(ctx, s.address, address, value); err != nil {
		return &rrg.TransportError{Op: fmt.Sprintf("write register %#04x", address), Err: err}
	}
	return nil
}

// Identify returns the provisioned address without I/O.
func (s *ModbusSession) Identify(ctx context.Context) (uint8, error) {
	return s.address, nil
}

func (s *ModbusSession) Address() (uint8, bool) {
	return s.address, true
}

// DeviceNumber reads the device number register.
func (s *ModbusSession) DeviceNumber(ctx context.Context) (uint16, error) {
	regs, err := s.read(ctx, register.DeviceNumber, 1)
	if err != nil {
		return 0, err
	}
	return regs[0], nil
}

// State reads both flag registers. Only their low bytes carry fields.
func (s *ModbusSession) State(ctx context.Context) (state.Word, error) {
	regs, err := s.read(ctx, register.Flags1, 2)
	if err != nil {
		return state.Word{}, err
	}
	return state.DecodeWord(uint8(regs[0]), uint8(regs[1]))
}

func (s *ModbusSession) WritableState(ctx context.Context) (state.ConfigFlags, error) {
	regs, err := s.read(ctx, register.Flags1, 1)
	if err != nil {
		return state.ConfigFlags{}, err
	}
	return state.DecodeConfig(uint8(regs[0]))
}

// writeConfig writes the configuration byte with a zero high byte; the high
// bytes of both flag registers are reserved.
func (s *ModbusSession) writeConfig(ctx context.Context, cfg state.ConfigFlags) error {
	raw, err := cfg.Encode()
	if err != nil {
		return err
	}
	return s.write(ctx, register.Flags1, uint16(raw))
}

func (s *ModbusSession) update(ctx context.Context, values ...state.Value) error {
	return modify(ctx, s.WritableState, s.writeConfig, values...)
}

// SetRegime has no dedicated register; it rewrites flags-1.
func (s *ModbusSession) SetRegime(ctx context.Context, mode state.TypeMode, measuring state.MeasuringMode) error {
	if err := checkMember("TypeMode", mode); err != nil {
		return err
	}
	if err := checkMember("MeasuringMode", measuring); err != nil {
		return err
	}
	return s.update(ctx, mode, measuring)
}

// ReadFlow reports the measured flow only.
func (s *ModbusSession) ReadFlow(ctx context.Context) (Flow, error) {
	regs, err := s.read(ctx, register.FlowReading, 1)
	if err != nil {
		return Flow{}, err
	}
	return Flow{Measured: s.conv.ToEngineering(regs[0])}, nil
}

func (s *ModbusSession) WriteFlow(ctx context.Context, flow float64) error {
	if flow == 0 {
		return s.update(ctx, state.PlugClosed)
	}

	raw, err := s.conv.FromEngineering(flow)
	if err != nil {
		return err
	}
	if err := s.update(ctx, state.PlugRegulation); err != nil {
		return err
	}
	return s.write(ctx, register.FlowSetpoint, raw)
}

// SetZero is not expressible: the register map has no zero calibration.
func (s *ModbusSession) SetZero(ctx context.Context, shift uint16) error {
	return rrg.ErrUnsupported
}

func (s *ModbusSession) Zero(ctx context.Context) (uint16, error) {
	return 0, rrg.ErrUnsupported
}

// RedefineAddress writes the new unit id and addresses the device there.
func (s *ModbusSession) RedefineAddress(ctx context.Context, newAddress uint8) error {
	if err := checkAddress(newAddress); err != nil {
		return err
	}
	if err := s.write(ctx, register.NetAddress, uint16(newAddress)); err != nil {
		return err
	}
	slog.Info("device address changed", "from", s.address, "to", newAddress)
	s.address = newAddress
	return nil
}

// SetBaudrate writes the rate code to the comm speed register.
func (s *ModbusSession) SetBaudrate(ctx context.Context, rate int) error {
	code, err := rrg.BaudrateCode(rate)
	if err != nil {
		return err
	}
	return s.write(ctx, register.CommSpeed, uint16(code))
}

func (s *ModbusSession) SetRecoveryMode(ctx context.Context, mode state.Recovery) error {
	if err := checkMember("Recovery", mode); err != nil {
		return err
	}
	return s.update(ctx, mode)
}

func (s *ModbusSession) SetPlugMode(ctx context.Context, mode state.Plug) error {
	if err := checkMember("Plug", mode); err != nil {
		return err
	}
	return s.update(ctx, mode)
}

var _ Device = (*ModbusSession)(nil)
