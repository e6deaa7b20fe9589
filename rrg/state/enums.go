// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package state

// ---- first byte: configuration ----

// TypeMode selects whether the device regulates flow or only measures it.
type TypeMode uint8

const (
	TypeModeMeasuring  TypeMode = 0
	TypeModeRegulation TypeMode = 1
)

var typeModeDomain = newDomain("TypeMode", map[TypeMode]string{
	TypeModeMeasuring:  "MEASURING",
	TypeModeRegulation: "REGULATION",
})

func (v TypeMode) Code() uint8    { return uint8(v) }
func (v TypeMode) String() string { return typeModeDomain.label(v) }

// Input selects the setpoint source.
type Input uint8

const (
	InputAnalog  Input = 0
	InputDigital Input = 1
)

var inputDomain = newDomain("Input", map[Input]string{
	InputAnalog:  "ANALOG",
	InputDigital: "DIGITAL",
})

func (v Input) Code() uint8    { return uint8(v) }
func (v Input) String() string { return inputDomain.label(v) }

// Plug is the commanded valve position.
type Plug uint8

const (
	PlugRegulation Plug = 0
	PlugOpened     Plug = 1
	PlugClosed     Plug = 2
	// PlugOpenedAlt is the second encoding the device reports for an open valve.
	PlugOpenedAlt Plug = 3
)

var plugDomain = newDomain("Plug", map[Plug]string{
	PlugRegulation: "REGULATION",
	PlugOpened:     "OPENED",
	PlugClosed:     "CLOSED",
	PlugOpenedAlt:  "OPENED_ALT",
})

func (v Plug) Code() uint8    { return uint8(v) }
func (v Plug) String() string { return plugDomain.label(v) }

// Recovery is the behaviour after a loss of the digital setpoint.
type Recovery uint8

const (
	RecoveryMixed  Recovery = 0
	RecoveryAnalog Recovery = 1
)

var recoveryDomain = newDomain("Recovery", map[Recovery]string{
	RecoveryMixed:  "MIXED",
	RecoveryAnalog: "ANALOG",
})

func (v Recovery) Code() uint8    { return uint8(v) }
func (v Recovery) String() string { return recoveryDomain.label(v) }

// MeasuringMode selects between flow controller (RRG) and pressure
// controller (RDG) operation.
type MeasuringMode uint8

const (
	MeasuringModeRRG MeasuringMode = 0
	MeasuringModeRDG MeasuringMode = 1
)

var measuringModeDomain = newDomain("MeasuringMode", map[MeasuringMode]string{
	MeasuringModeRRG: "RRG",
	MeasuringModeRDG: "RDG",
})

func (v MeasuringMode) Code() uint8    { return uint8(v) }
func (v MeasuringMode) String() string { return measuringModeDomain.label(v) }

// ZeroSetup reports whether a zero-offset adjustment is active.
type ZeroSetup uint8

const (
	ZeroSetupOff ZeroSetup = 0
	ZeroSetupOn  ZeroSetup = 1
)

var zeroSetupDomain = newDomain("ZeroSetup", map[ZeroSetup]string{
	ZeroSetupOff: "OFF",
	ZeroSetupOn:  "ON",
})

func (v ZeroSetup) Code() uint8    { return uint8(v) }
func (v ZeroSetup) String() string { return zeroSetupDomain.label(v) }

// ---- second byte: status ----

// Condition is the gas supply condition.
type Condition uint8

const (
	ConditionNormal Condition = 0
	ConditionLowGas Condition = 1
)

var conditionDomain = newDomain("Condition", map[Condition]string{
	ConditionNormal: "NORMAL",
	ConditionLowGas: "LOW_GAS",
})

func (v Condition) Code() uint8    { return uint8(v) }
func (v Condition) String() string { return conditionDomain.label(v) }

// PlugState reports whether the valve is regulating or forced.
type PlugState uint8

const (
	PlugStateRegulation   PlugState = 0
	PlugStateOpenOrClosed PlugState = 1
)

var plugStateDomain = newDomain("PlugState", map[PlugState]string{
	PlugStateRegulation:   "REGULATION",
	PlugStateOpenOrClosed: "OPEN_OR_CLOSED",
})

func (v PlugState) Code() uint8    { return uint8(v) }
func (v PlugState) String() string { return plugStateDomain.label(v) }

// MeasuringModeChosen is the measuring mode the device is running in.
type MeasuringModeChosen uint8

const (
	MeasuringModeChosenRRG MeasuringModeChosen = 0
	MeasuringModeChosenRDG MeasuringModeChosen = 1
)

var measuringModeChosenDomain = newDomain("MeasuringModeChosen", map[MeasuringModeChosen]string{
	MeasuringModeChosenRRG: "RRG",
	MeasuringModeChosenRDG: "RDG",
})

func (v MeasuringModeChosen) Code() uint8    { return uint8(v) }
func (v MeasuringModeChosen) String() string { return measuringModeChosenDomain.label(v) }

// RDGAvailable reports whether pressure control is available.
type RDGAvailable uint8

const (
	RDGAvailableNo  RDGAvailable = 0
	RDGAvailableYes RDGAvailable = 1
)

var rdgAvailableDomain = newDomain("RDGAvailable", map[RDGAvailable]string{
	RDGAvailableNo:  "NO",
	RDGAvailableYes: "YES",
})

func (v RDGAvailable) Code() uint8    { return uint8(v) }
func (v RDGAvailable) String() string { return rdgAvailableDomain.label(v) }

// RRGAvailable reports whether flow control is available.
type RRGAvailable uint8

const (
	RRGAvailableNo  RRGAvailable = 0
	RRGAvailableYes RRGAvailable = 1
)

var rrgAvailableDomain = newDomain("RRGAvailable", map[RRGAvailable]string{
	RRGAvailableNo:  "NO",
	RRGAvailableYes: "YES",
})

func (v RRGAvailable) Code() uint8    { return uint8(v) }
func (v RRGAvailable) String() string { return rrgAvailableDomain.label(v) }

// OuterPlugState is the valve position as reported by the device.
type OuterPlugState uint8

const (
	OuterPlugRegulation OuterPlugState = 0
	OuterPlugOpened     OuterPlugState = 1
	OuterPlugClosed     OuterPlugState = 2
	OuterPlugUnknown    OuterPlugState = 3
)

var outerPlugStateDomain = newDomain("OuterPlugState", map[OuterPlugState]string{
	OuterPlugRegulation: "REGULATION",
	OuterPlugOpened:     "OPENED",
	OuterPlugClosed:     "CLOSED",
	OuterPlugUnknown:    "UNKNOWN",
})

func (v OuterPlugState) Code() uint8    { return uint8(v) }
func (v OuterPlugState) String() string { return outerPlugStateDomain.label(v) }

// ---- layouts ----

// ConfigTable is the layout of the first (writable) status byte. Bit 7 is reserved.
var ConfigTable = mustTable("config",
	FieldSpec{Name: "TypeMode", Mask: 0x01, Shift: 0, Domain: typeModeDomain},
	FieldSpec{Name: "Input", Mask: 0x02, Shift: 1, Domain: inputDomain},
	FieldSpec{Name: "Plug", Mask: 0x0C, Shift: 2, Domain: plugDomain},
	FieldSpec{Name: "Recovery", Mask: 0x10, Shift: 4, Domain: recoveryDomain},
	FieldSpec{Name: "MeasuringMode", Mask: 0x20, Shift: 5, Domain: measuringModeDomain},
	FieldSpec{Name: "ZeroSetup", Mask: 0x40, Shift: 6, Domain: zeroSetupDomain},
)

// StatusTable is the layout of the second (read-only) status byte. Bit 7 is reserved.
var StatusTable = mustTable("status",
	FieldSpec{Name: "Condition", Mask: 0x01, Shift: 0, Domain: conditionDomain},
	FieldSpec{Name: "PlugState", Mask: 0x02, Shift: 1, Domain: plugStateDomain},
	FieldSpec{Name: "MeasuringModeChosen", Mask: 0x04, Shift: 2, Domain: measuringModeChosenDomain},
	FieldSpec{Name: "RDGAvailable", Mask: 0x08, Shift: 3, Domain: rdgAvailableDomain},
	FieldSpec{Name: "RRGAvailable", Mask: 0x10, Shift: 4, Domain: rrgAvailableDomain},
	FieldSpec{Name: "OuterPlugState", Mask: 0x60, Shift: 5, Domain: outerPlugStateDomain},
)
