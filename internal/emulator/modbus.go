// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"encoding/binary"

	"github.com/ffutop/rrg12/modbus"
	"github.com/ffutop/rrg12/rrg/register"
)

// Process executes one Modbus request against the register map.
func (e *Emulator) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return e.handleReadRegisters(req)
	case modbus.FuncCodeWriteSingleRegister:
		return e.handleWriteSingleRegister(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		return e.handleWriteMultipleRegisters(req)
	default:
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

// The device has no separate input table; both reads see the same map.
func (e *Emulator) handleReadRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > 125 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	data, err := e.model.ReadRegisters(address, quantity)
	if err != nil {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (e *Emulator) handleWriteSingleRegister(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if code := e.writeRegister(address, value); code != 0 {
		return modbus.NewException(req.FunctionCode, code), nil
	}

	return req, nil // Echo request
}

// handleWriteMultipleRegisters checks every value before applying any.
func (e *Emulator) handleWriteMultipleRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) < 6 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > 123 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	if int(byteCount) != len(req.Data)-5 || int(byteCount) != int(quantity)*2 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if int(address)+int(quantity) > register.Count {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(req.Data[5+i*2:])
		if code := checkRegister(address+uint16(i), values[i]); code != 0 {
			return modbus.NewException(req.FunctionCode, code), nil
		}
	}
	for i, v := range values {
		e.writeRegister(address+uint16(i), v)
	}

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}
