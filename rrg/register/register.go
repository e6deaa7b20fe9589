// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package register describes the RRG-12 Modbus register map and the
// fixed-point flow encoding shared by both protocol variants.
package register

import (
	"math"

	"github.com/ffutop/rrg12/rrg"
)

// Holding register addresses.
const (
	NetAddress   uint16 = 0x0000
	DeviceNumber uint16 = 0x0001
	Flags1       uint16 = 0x0002 // configuration, writable
	Flags2       uint16 = 0x0003 // status, read-only
	FlowSetpoint uint16 = 0x0004
	FlowReading  uint16 = 0x0005
	CommSpeed    uint16 = 0x0006

	// Count is the number of registers in the map.
	Count = 7
)

// FullScale is the fixed-point value of max flow.
const FullScale = 10000

// Converter translates between fixed-point registers and engineering units
// for one device.
type Converter struct {
	maxFlow float64
}

// NewConverter returns a converter for a device calibrated to maxFlow.
func NewConverter(maxFlow float64) (Converter, error) {
	if math.IsNaN(maxFlow) || math.IsInf(maxFlow, 0) || maxFlow <= 0 {
		return Converter{}, &rrg.ValidationError{Field: "max flow", Value: maxFlow, Reason: "must be a positive finite number"}
	}
	return Converter{maxFlow: maxFlow}, nil
}

// MaxFlow returns the calibration constant.
func (c Converter) MaxFlow() float64 {
	return c.maxFlow
}

// ToEngineering reads raw as a signed 16-bit fixed-point fraction of max flow.
func (c Converter) ToEngineering(raw uint16) float64 {
	return float64(int16(raw)) / FullScale * c.maxFlow
}

// FromEngineering encodes flow as a two's-complement register value.
func (c Converter) FromEngineering(flow float64) (uint16, error) {
	if c.maxFlow == 0 {
		return 0, &rrg.ValidationError{Field: "max flow", Value: c.maxFlow, Reason: "converter is not initialized"}
	}
	if math.IsNaN(flow) || math.IsInf(flow, 0) {
		return 0, &rrg.ValidationError{Field: "flow", Value: flow, Reason: "must be finite"}
	}
	fixed := math.Round(flow / c.maxFlow * FullScale)
	if fixed < math.MinInt16 || fixed > math.MaxInt16 {
		return 0, &rrg.ValidationError{Field: "flow", Value: flow, Reason: "out of the 16-bit register range"}
	}
	return uint16(int16(fixed)), nil
}
