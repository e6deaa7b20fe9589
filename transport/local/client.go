// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local connects the driver to an in-process emulator instead of a
// serial line.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/ffutop/rrg12/internal/emulator"
	"github.com/ffutop/rrg12/modbus"
)

// ErrNoResponse is what a silent device looks like on the wire.
var ErrNoResponse = errors.New("local: no response from device")

// Client implements Downstream interface for the emulator.
type Client struct {
	emu *emulator.Emulator
}

// NewClient takes ownership of emu.
func NewClient(emu *emulator.Emulator) *Client {
	return &Client{emu: emu}
}

// Send processes the PDU locally. Only the emulator's current address answers.
func (c *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if slaveID != c.emu.Address() {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("slave %d: %w", slaveID, ErrNoResponse)
	}
	return c.emu.Process(pdu)
}

// Connect is a no-op for the emulator.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close closes the emulator storage.
func (c *Client) Close() error {
	return c.emu.Close()
}
