// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package emulator is an in-process RRG-12. It answers both the proprietary
// frame protocol and Modbus PDUs over the same memory.
package emulator

import (
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3" // "sqlite" persistence

	"github.com/ffutop/rrg12/internal/config"
	"github.com/ffutop/rrg12/internal/emulator/model"
	"github.com/ffutop/rrg12/internal/emulator/persistence"
	"github.com/ffutop/rrg12/modbus"
	"github.com/ffutop/rrg12/rrg"
	"github.com/ffutop/rrg12/rrg/register"
	"github.com/ffutop/rrg12/rrg/state"
)

// defaultFlags1 is a regulating controller with the valve closed.
const defaultFlags1 = uint16(state.TypeModeRegulation) | uint16(state.PlugClosed)<<2

// Emulator serializes requests against one DataModel.
type Emulator struct {
	mu      sync.Mutex
	model   *model.DataModel
	storage persistence.Storage
	conv    register.Converter
}

// New wraps an already loaded model. maxFlow is only used for logging.
func New(m *model.DataModel, storage persistence.Storage, maxFlow float64) *Emulator {
	conv, err := register.NewConverter(maxFlow)
	if err != nil {
		conv, _ = register.NewConverter(register.FullScale)
	}
	return &Emulator{model: m, storage: storage, conv: conv}
}

// Open builds an emulator from cfg, restoring memory from its storage.
// A blank memory is seeded with the configured address and serial number.
func Open(cfg config.EmulatorConfig) *Emulator {
	var storage persistence.Storage
	switch cfg.Persistence.Type {
	case "file":
		slog.Info("Initializing emulator with file persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewFileStorage(cfg.Persistence.Path)
	case "mmap":
		slog.Info("Initializing emulator with MMAP persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewMmapStorage(cfg.Persistence.Path)
	case "sqlite":
		slog.Info("Initializing emulator with SQL persistence", "driver", "sqlite3", "dsn", cfg.Persistence.Path)
		storage = persistence.NewSQLStorage("sqlite3", cfg.Persistence.Path)
	default:
		slog.Info("Initializing emulator with memory storage (non-persistent)")
		storage = persistence.NewMemoryStorage()
	}

	m, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data, starting with fresh model", "err", err)
		if m == nil {
			slog.Warn("Falling back to MemoryStorage")
			storage = persistence.NewMemoryStorage()
			m, _ = storage.Load()
		}
	}

	e := New(m, storage, cfg.MaxFlow)
	if m.Get(register.NetAddress) == 0 {
		e.seed(cfg.Address, cfg.SerialNumber)
	}
	return e
}

func (e *Emulator) seed(address uint8, serial uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.model.Update(func(r []uint16) {
		r[register.NetAddress] = uint16(address)
		r[register.DeviceNumber] = serial
		r[register.Flags1] = defaultFlags1
		r[register.CommSpeed] = 0x00FF
		settle(r)
	})
	e.storage.OnWrite(0, model.Size)
	slog.Info("Emulator seeded", "address", address, "serial", serial)
}

// Close releases the storage.
func (e *Emulator) Close() error {
	if err := e.storage.Save(e.model); err != nil {
		slog.Error("Failed to save emulator memory", "err", err)
	}
	if closer, ok := e.storage.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Address is the current network address.
func (e *Emulator) Address() uint8 {
	return uint8(e.model.Get(register.NetAddress))
}

// Serial is the device number reported on identification.
func (e *Emulator) Serial() uint16 {
	return e.model.Get(register.DeviceNumber)
}

// ZeroShift is the stored zero calibration.
func (e *Emulator) ZeroShift() uint16 {
	return e.model.Get(model.ZeroShift)
}

// Registers copies the public register map.
func (e *Emulator) Registers() [register.Count]uint16 {
	return e.model.Snapshot()
}

// updateFlags1 decodes the configuration byte, applies fn and stores the result.
// Caller must hold e.mu.
func (e *Emulator) updateFlags1(fn func(state.ConfigFlags) (state.ConfigFlags, error)) error {
	cfg, err := state.DecodeConfig(uint8(e.model.Get(register.Flags1)))
	if err != nil {
		return err
	}
	if cfg, err = fn(cfg); err != nil {
		return err
	}
	raw, err := cfg.Encode()
	if err != nil {
		return err
	}
	e.model.Update(func(r []uint16) {
		r[register.Flags1] = uint16(raw)
		settle(r)
	})
	// settle rewrites the derived slots too.
	e.storage.OnWrite(0, register.Count)
	return nil
}

// settle recomputes the read-only slots from the configuration: the status
// byte mirrors the valve and measuring mode, the reading follows the valve.
func settle(r []uint16) {
	cfg, err := state.DecodeConfig(uint8(r[register.Flags1]))
	if err != nil {
		return
	}

	plugState := state.PlugStateOpenOrClosed
	var outer state.OuterPlugState
	switch cfg.Plug() {
	case state.PlugRegulation:
		plugState = state.PlugStateRegulation
		outer = state.OuterPlugRegulation
		r[register.FlowReading] = r[register.FlowSetpoint]
	case state.PlugOpened, state.PlugOpenedAlt:
		outer = state.OuterPlugOpened
		r[register.FlowReading] = register.FullScale
	case state.PlugClosed:
		outer = state.OuterPlugClosed
		r[register.FlowReading] = 0
	}

	values := []state.Value{
		state.ConditionNormal,
		plugState,
		state.MeasuringModeChosen(cfg.MeasuringMode()),
		state.RDGAvailableYes,
		state.RRGAvailableYes,
		outer,
	}
	fields := state.StatusTable.Fields()
	fvs := make([]state.FieldValue, len(fields))
	for i, f := range fields {
		fvs[i] = state.FieldValue{Field: f, Value: values[i]}
	}
	if raw, err := state.StatusTable.Encode(fvs); err == nil {
		r[register.Flags2] = uint16(raw)
	}
}

// writeRegister applies one write and returns the Modbus exception code that
// rejects it, or zero. Caller must hold e.mu.
func (e *Emulator) writeRegister(address, value uint16) byte {
	if code := checkRegister(address, value); code != 0 {
		return code
	}

	e.model.Update(func(r []uint16) {
		r[address] = value
		settle(r)
	})
	e.storage.OnWrite(0, register.Count)

	if address == register.FlowSetpoint {
		slog.Debug("emulator setpoint", "raw", value, "flow", e.conv.ToEngineering(value))
	}
	return 0
}

func checkRegister(address, value uint16) byte {
	switch address {
	case register.NetAddress:
		if value == 0 || value > 247 {
			return modbus.ExceptionCodeIllegalDataValue
		}
	case register.Flags1:
		if _, err := state.DecodeConfig(uint8(value)); err != nil || value > 0xFF {
			return modbus.ExceptionCodeIllegalDataValue
		}
	case register.CommSpeed:
		if _, ok := rrg.BaudrateFromCode(uint8(value)); !ok || value > 0xFF {
			return modbus.ExceptionCodeIllegalDataValue
		}
	case register.DeviceNumber, register.FlowSetpoint:
	default:
		// flags-2, the reading and anything past the map are read-only.
		return modbus.ExceptionCodeIllegalDataAddress
	}

	return 0
}
