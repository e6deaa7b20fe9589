// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ffutop/rrg12/rrg/register"
)

const (
	// ZeroShift is a private slot holding the zero calibration. It is not
	// part of the public register map.
	ZeroShift = register.Count

	// Size is the number of 16-bit slots in the model.
	Size = register.Count + 1
)

// DataModel holds the controller memory.
// Slots 0..register.Count-1 are the public register map.
type DataModel struct {
	mu sync.RWMutex

	Registers []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Registers: make([]uint16, Size),
	}
}

// ReadRegisters reads a range of public registers and returns them as BigEndian bytes.
func (m *DataModel) ReadRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, quantity*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], m.Registers[int(address)+i])
	}
	return result, nil
}

// WriteRegisters writes a range of public registers from BigEndian bytes.
func (m *DataModel) WriteRegisters(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}

	for i := 0; i < int(quantity); i++ {
		m.Registers[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// Get returns slot i, private slots included.
func (m *DataModel) Get(i uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Registers[i]
}

// Update runs fn with exclusive access to every slot.
func (m *DataModel) Update(fn func(r []uint16)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(m.Registers)
}

// Snapshot copies the public register map.
func (m *DataModel) Snapshot() [register.Count]uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out [register.Count]uint16
	copy(out[:], m.Registers)
	return out
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > register.Count {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
