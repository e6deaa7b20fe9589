// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"log/slog"

	"github.com/ffutop/rrg12/internal/emulator/model"
	"github.com/ffutop/rrg12/rrg"
	"github.com/ffutop/rrg12/rrg/frame"
	"github.com/ffutop/rrg12/rrg/register"
	"github.com/ffutop/rrg12/rrg/state"
)

// HandleFrame answers one proprietary request. ok is false when a real device
// would stay silent: bad checksum, another address or an unknown command.
func (e *Emulator) HandleFrame(req frame.Frame) (resp frame.Frame, ok bool) {
	if err := req.Verify(); err != nil {
		slog.Debug("emulator dropped frame", "err", err)
		return frame.Frame{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	addr := e.Address()
	cmd := req.Command()
	if cmd != frame.CmdAddressDefine && req.Address() != addr {
		return frame.Frame{}, false
	}

	switch cmd {
	case frame.CmdState:
		r := e.model.Snapshot()
		return frame.StateResponse(addr, r[register.DeviceNumber], uint8(r[register.Flags1]), uint8(r[register.Flags2])), true

	case frame.CmdAddressDefine, frame.CmdCheckConnection:
		return frame.IdentityResponse(cmd, addr, e.Serial()), true

	case frame.CmdReadFlow:
		r := e.model.Snapshot()
		return frame.FlowResponse(addr, r[register.FlowReading], r[register.FlowSetpoint]), true

	case frame.CmdSetFlow:
		if e.writeRegister(register.FlowSetpoint, req.Flow()) != 0 {
			return frame.Frame{}, false
		}

	case frame.CmdBaudrate:
		if e.writeRegister(register.CommSpeed, uint16(req.BaudrateCode())) != 0 {
			return frame.Frame{}, false
		}

	case frame.CmdRedefineAddress:
		if e.writeRegister(register.NetAddress, uint16(req.NewAddress())) != 0 {
			return frame.Frame{}, false
		}
		slog.Info("emulator address changed", "from", addr, "to", req.NewAddress())

	case frame.CmdRegime:
		err := e.updateFlags1(func(c state.ConfigFlags) (state.ConfigFlags, error) {
			c, err := c.With(state.TypeMode(req.TypeMode()))
			if err != nil {
				return c, err
			}
			return c.With(state.MeasuringMode(req.MeasuringMode()))
		})
		if err != nil {
			return frame.Frame{}, false
		}

	case frame.CmdRecovery:
		if e.setConfig(state.Recovery(req.Recovery())) != nil {
			return frame.Frame{}, false
		}

	case frame.CmdPlug:
		if e.setConfig(state.Plug(req.Plug())) != nil {
			return frame.Frame{}, false
		}

	case frame.CmdZero:
		if req.ZeroWrite() {
			shift := req.ZeroShift()
			e.model.Update(func(r []uint16) { r[model.ZeroShift] = shift })
			e.storage.OnWrite(model.ZeroShift, 1)
			if e.setConfig(state.ZeroSetupOn) != nil {
				return frame.Frame{}, false
			}
		}
		return frame.ZeroResponse(addr, e.ZeroShift()), true

	default:
		return frame.Frame{}, false
	}

	return frame.Ack(req), true
}

func (e *Emulator) setConfig(v state.Value) error {
	return e.updateFlags1(func(c state.ConfigFlags) (state.ConfigFlags, error) {
		return c.With(v)
	})
}

// Baudrate is the line speed the device was last told to use.
func (e *Emulator) Baudrate() int {
	rate, _ := rrg.BaudrateFromCode(uint8(e.model.Get(register.CommSpeed)))
	return rate
}
