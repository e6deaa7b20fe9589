// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package frame

import "encoding/binary"

// Byte offsets within the payload.
//
//	command            code  request                 response
//	state                 1  -                       [1]=flags1 [2:4]=number [6]=flags2
//	address define        2  -                       [5:7]=serial [7]=address
//	read flow            17  -                       [2:4]=flow [4:6]=setpoint
//	baud rate            22  [2]=rate code           -
//	regime               24  [1]=type [3]=measuring  -
//	check connection     25  -                       [5:7]=serial [7]=address
//	redefine address     27  [2]=new address         -
//	recovery             31  [1]=mode                -
//	plug                 32  [2]=mode                -
//	zero                 35  [3]=1 [4:6]=shift (set) [4:6]=shift
//	                         [3]=0             (get)
//	set flow             37  [2:4]=flow              -
const (
	offCommand = 0
	offAddress = 7

	offFlags1        = 1
	offDeviceNumber  = 2
	offFlags2        = 6
	offSerial        = 5
	offFlow          = 2
	offSetpoint      = 4
	offBaudrate      = 2
	offTypeMode      = 1
	offMeasuringMode = 3
	offNewAddress    = 2
	offRecovery      = 1
	offPlug          = 2
	offZeroWrite     = 3
	offZeroShift     = 4
)

// StateRequest asks for both status bytes.
func StateRequest(address uint8) Frame {
	return NewPayload(CmdState, address).Seal()
}

// AddressRequest asks any device on the line for its address and serial
// number. The address byte is zero.
func AddressRequest() Frame {
	return NewPayload(CmdAddressDefine, 0).Seal()
}

// CheckConnectionRequest asks the addressed device to report its identity.
func CheckConnectionRequest(address uint8) Frame {
	return NewPayload(CmdCheckConnection, address).Seal()
}

// RegimeRequest sets the type mode and measuring mode.
func RegimeRequest(address, typeMode, measuringMode uint8) Frame {
	return NewPayload(CmdRegime, address).
		WithByte(offTypeMode, typeMode).
		WithByte(offMeasuringMode, measuringMode).
		Seal()
}

// ReadFlowRequest asks for the measured flow and the setpoint.
func ReadFlowRequest(address uint8) Frame {
	return NewPayload(CmdReadFlow, address).Seal()
}

// SetFlowRequest writes a fixed-point setpoint.
func SetFlowRequest(address uint8, flow uint16) Frame {
	return NewPayload(CmdSetFlow, address).WithUint16(offFlow, flow).Seal()
}

// BaudrateRequest switches the line speed. code comes from rrg.BaudrateCode.
func BaudrateRequest(address, code uint8) Frame {
	return NewPayload(CmdBaudrate, address).WithByte(offBaudrate, code).Seal()
}

// RedefineAddressRequest moves the device to a new address.
func RedefineAddressRequest(address, newAddress uint8) Frame {
	return NewPayload(CmdRedefineAddress, address).WithByte(offNewAddress, newAddress).Seal()
}

// RecoveryRequest sets the recovery mode.
func RecoveryRequest(address, mode uint8) Frame {
	return NewPayload(CmdRecovery, address).WithByte(offRecovery, mode).Seal()
}

// PlugRequest sets the valve mode.
func PlugRequest(address, mode uint8) Frame {
	return NewPayload(CmdPlug, address).WithByte(offPlug, mode).Seal()
}

// SetZeroRequest stores a zero shift and turns the zero adjustment on.
func SetZeroRequest(address uint8, shift uint16) Frame {
	return NewPayload(CmdZero, address).
		WithByte(offZeroWrite, 1).
		WithUint16(offZeroShift, shift).
		Seal()
}

// GetZeroRequest asks for the stored zero shift.
func GetZeroRequest(address uint8) Frame {
	return NewPayload(CmdZero, address).WithByte(offZeroWrite, 0).Seal()
}

// ---- request fields, as seen by a device ----

func (f Frame) BaudrateCode() uint8  { return f[offBaudrate] }
func (f Frame) TypeMode() uint8      { return f[offTypeMode] }
func (f Frame) MeasuringMode() uint8 { return f[offMeasuringMode] }
func (f Frame) NewAddress() uint8    { return f[offNewAddress] }
func (f Frame) Recovery() uint8      { return f[offRecovery] }
func (f Frame) Plug() uint8          { return f[offPlug] }
func (f Frame) ZeroWrite() bool      { return f[offZeroWrite] == 1 }

// ---- response fields ----

// Serial returns the serial number carried by address responses.
func (f Frame) Serial() uint16 {
	return binary.BigEndian.Uint16(f[offSerial:])
}

// DeviceNumber returns the device number carried by state responses.
func (f Frame) DeviceNumber() uint16 {
	return binary.BigEndian.Uint16(f[offDeviceNumber:])
}

// StateBytes returns the configuration and status bytes.
func (f Frame) StateBytes() (first, second uint8) {
	return f[offFlags1], f[offFlags2]
}

// Flow returns the raw fixed-point flow at [2:4]. In a set-flow request it is
// the setpoint being written.
func (f Frame) Flow() uint16 {
	return binary.BigEndian.Uint16(f[offFlow:])
}

// Setpoint returns the raw fixed-point setpoint of a read-flow response.
func (f Frame) Setpoint() uint16 {
	return binary.BigEndian.Uint16(f[offSetpoint:])
}

// ZeroShift returns the zero shift at [4:6].
func (f Frame) ZeroShift() uint16 {
	return binary.BigEndian.Uint16(f[offZeroShift:])
}

// ---- response builders, used by emulated devices ----

// StateResponse reports both status bytes and the device number.
func StateResponse(address uint8, number uint16, first, second uint8) Frame {
	return NewPayload(CmdState, address).
		WithByte(offFlags1, first).
		WithUint16(offDeviceNumber, number).
		WithByte(offFlags2, second).
		Seal()
}

// IdentityResponse answers address-define and check-connection.
func IdentityResponse(cmd Command, address uint8, serial uint16) Frame {
	return NewPayload(cmd, address).WithUint16(offSerial, serial).Seal()
}

// FlowResponse answers read-flow.
func FlowResponse(address uint8, flow, setpoint uint16) Frame {
	return NewPayload(CmdReadFlow, address).
		WithUint16(offFlow, flow).
		WithUint16(offSetpoint, setpoint).
		Seal()
}

// ZeroResponse answers zero get and set.
func ZeroResponse(address uint8, shift uint16) Frame {
	return NewPayload(CmdZero, address).WithUint16(offZeroShift, shift).Seal()
}

// Ack echoes the request back, as the device does for plain set commands.
func Ack(req Frame) Frame {
	return req.Payload().Seal()
}
