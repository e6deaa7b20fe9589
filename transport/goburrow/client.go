// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package goburrow is a register client over github.com/goburrow/modbus, an
// alternative to the in-house RTU master.
package goburrow

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"

	"github.com/ffutop/rrg12/internal/config"
	mb "github.com/ffutop/rrg12/modbus"
)

// Client serializes requests because it mutates SlaveId per call.
type Client struct {
	mu      sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewClient maps cfg onto an RTU handler. The line opens on first use.
func NewClient(cfg config.SerialConfig) *Client {
	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.Timeout = cfg.Timeout
	return newClient(h, h)
}

func newClient(h *modbus.RTUClientHandler, tr modbus.Transporter) *Client {
	return &Client{
		handler: h,
		client:  modbus.NewClient2(h, tr),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Connect()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ReadHoldingRegisters reads quantity registers starting at address.
func (c *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = slaveID
	data, err := c.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, translate(err)
	}
	if len(data) != int(quantity)*2 {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match quantity '%v'", len(data), quantity)
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return values, nil
}

// WriteSingleRegister writes value to address. The library checks the echo.
func (c *Client) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = slaveID
	_, err := c.client.WriteSingleRegister(address, value)
	return translate(err)
}

// translate maps library exceptions onto mb.ExceptionError so callers see
// one exception type whichever driver is configured.
func translate(err error) error {
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return &mb.ExceptionError{FunctionCode: me.FunctionCode, ExceptionCode: me.ExceptionCode}
	}
	return err
}
