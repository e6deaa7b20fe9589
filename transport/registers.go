// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ffutop/rrg12/modbus"
)

// Registers reads and writes holding registers over any Downstream.
type Registers struct {
	Downstream
}

// NewRegisters wraps ds.
func NewRegisters(ds Downstream) *Registers {
	return &Registers{Downstream: ds}
}

// ReadHoldingRegisters reads quantity registers starting at address.
func (r *Registers) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > 125 {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, 125)
	}
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         dataBlock(address, quantity),
	}
	resp, err := r.Send(ctx, slaveID, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Exception(); err != nil {
		return nil, err
	}
	if len(resp.Data) < 1 {
		return nil, fmt.Errorf("modbus: response data is empty")
	}
	count := int(resp.Data[0])
	if count != int(quantity)*2 || len(resp.Data)-1 != count {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match count '%v' for quantity '%v'", len(resp.Data)-1, count, quantity)
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(resp.Data[1+i*2:])
	}
	return values, nil
}

// WriteSingleRegister writes value to address. The slave must echo the request.
func (r *Registers) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteSingleRegister,
		Data:         dataBlock(address, value),
	}
	resp, err := r.Send(ctx, slaveID, req)
	if err != nil {
		return err
	}
	if err := resp.Exception(); err != nil {
		return err
	}
	if !bytes.Equal(resp.Data, req.Data) {
		return fmt.Errorf("modbus: response '% X' does not echo request '% X'", resp.Data, req.Data)
	}
	return nil
}

func dataBlock(values ...uint16) []byte {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}
