// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device drives one RRG-12 controller over either protocol variant.
//
// A session borrows its transport and never opens or closes it. Sessions are
// not safe for concurrent use; the protocol correlates responses by position
// only, so callers sharing a line must serialize.
package device

import (
	"context"
	"fmt"

	"github.com/ffutop/rrg12/rrg"
	"github.com/ffutop/rrg12/rrg/state"
)

// Flow is a flow reading in engineering units.
type Flow struct {
	Measured float64
	Setpoint float64
	// SetpointKnown is false on Modbus, where the setpoint cannot be read back
	// in the same exchange.
	SetpointKnown bool
}

// Device is the logical capability shared by both protocol variants.
type Device interface {
	// Identify returns the device address, discovering it if necessary.
	Identify(ctx context.Context) (uint8, error)
	// Address returns the cached address, if any. It does no I/O.
	Address() (uint8, bool)

	State(ctx context.Context) (state.Word, error)
	WritableState(ctx context.Context) (state.ConfigFlags, error)
	SetRegime(ctx context.Context, mode state.TypeMode, measuring state.MeasuringMode) error

	ReadFlow(ctx context.Context) (Flow, error)
	// WriteFlow closes the valve for zero, otherwise puts the valve into
	// regulation and writes the setpoint.
	WriteFlow(ctx context.Context, flow float64) error

	SetZero(ctx context.Context, shift uint16) error
	Zero(ctx context.Context) (uint16, error)

	RedefineAddress(ctx context.Context, newAddress uint8) error
	SetBaudrate(ctx context.Context, rate int) error
	SetRecoveryMode(ctx context.Context, mode state.Recovery) error
	SetPlugMode(ctx context.Context, mode state.Plug) error
}

// RegisterClient is the Modbus side of the transport.
type RegisterClient interface {
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error
}

// DeviceMismatchError reports a state response from a device other than the
// one identified.
type DeviceMismatchError struct {
	Want, Got uint16
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device: response from device number %d, identified %d", e.Got, e.Want)
}

// modify is a checked read-modify-write of the configuration byte. write is
// called only when applying values changes something.
func modify(ctx context.Context, read func(context.Context) (state.ConfigFlags, error), write func(context.Context, state.ConfigFlags) error, values ...state.Value) error {
	cur, err := read(ctx)
	if err != nil {
		return err
	}
	next := cur
	for _, v := range values {
		if next, err = next.With(v); err != nil {
			return err
		}
	}
	if next.Equal(cur) {
		return nil
	}
	return write(ctx, next)
}

// checkMember rejects a value outside its configuration field's domain.
func checkMember(field string, v state.Value) error {
	f, ok := state.ConfigTable.Field(field)
	if !ok || !f.Domain.Contains(v) {
		return &rrg.ValidationError{Field: field, Value: v.Code(), Reason: "not a member of the domain"}
	}
	return nil
}

func checkAddress(address uint8) error {
	if address == 0 || address > 247 {
		return &rrg.ValidationError{Field: "address", Value: address, Reason: "must be in 1-247"}
	}
	return nil
}
