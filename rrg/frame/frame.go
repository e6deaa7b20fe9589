// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package frame builds and checks the proprietary RRG-12 serial frames.
//
// Every request and response is 10 bytes:
//
//	Command  : 1 byte
//	Args     : 6 bytes (layout depends on the command)
//	Address  : 1 byte
//	Checksum : 2 bytes, big-endian sum of the 8 bytes before it
package frame

import (
	"encoding/binary"
	"fmt"
)

const (
	PayloadSize  = 8
	ChecksumSize = 2
	Size         = PayloadSize + ChecksumSize
)

// Command is the first byte of a frame.
type Command uint8

const (
	CmdState           Command = 1
	CmdAddressDefine   Command = 2
	CmdReadFlow        Command = 17
	CmdBaudrate        Command = 22
	CmdRegime          Command = 24
	CmdCheckConnection Command = 25
	CmdRedefineAddress Command = 27
	CmdRecovery        Command = 31
	CmdPlug            Command = 32
	CmdZero            Command = 35
	CmdSetFlow         Command = 37
)

func (c Command) String() string {
	switch c {
	case CmdState:
		return "state"
	case CmdAddressDefine:
		return "address-define"
	case CmdReadFlow:
		return "read-flow"
	case CmdBaudrate:
		return "baudrate"
	case CmdRegime:
		return "regime"
	case CmdCheckConnection:
		return "check-connection"
	case CmdRedefineAddress:
		return "redefine-address"
	case CmdRecovery:
		return "recovery"
	case CmdPlug:
		return "plug"
	case CmdZero:
		return "zero"
	case CmdSetFlow:
		return "set-flow"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// ChecksumError is returned when a frame's trailer does not match its payload.
type ChecksumError struct {
	Command Command
	Want    uint16
	Got     uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("frame: %v: checksum %#04x does not match payload sum %#04x", e.Command, e.Got, e.Want)
}

// LengthError is returned when a response is not exactly one frame long.
type LengthError struct {
	Length int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("frame: length %d, want %d", e.Length, Size)
}

// Checksum returns the 16-bit sum of b.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}

// Payload is the 8-byte body of a frame. Its setters return copies.
type Payload [PayloadSize]byte

// NewPayload starts a payload for cmd addressed to address.
func NewPayload(cmd Command, address uint8) Payload {
	var p Payload
	p[offCommand] = byte(cmd)
	p[offAddress] = address
	return p
}

// WithByte returns a copy of p with b at off.
func (p Payload) WithByte(off int, b uint8) Payload {
	p[off] = b
	return p
}

// WithUint16 returns a copy of p with v stored big-endian at off.
func (p Payload) WithUint16(off int, v uint16) Payload {
	binary.BigEndian.PutUint16(p[off:off+2], v)
	return p
}

// Seal appends the checksum.
func (p Payload) Seal() Frame {
	var f Frame
	copy(f[:PayloadSize], p[:])
	binary.BigEndian.PutUint16(f[PayloadSize:], Checksum(p[:]))
	return f
}

// Frame is a sealed 10-byte request or response.
type Frame [Size]byte

// Parse validates b and returns it as a Frame.
func Parse(b []byte) (Frame, error) {
	var f Frame
	if len(b) != Size {
		return f, &LengthError{Length: len(b)}
	}
	copy(f[:], b)
	if err := f.Verify(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Verify checks the checksum trailer.
func (f Frame) Verify() error {
	want := Checksum(f[:PayloadSize])
	got := binary.BigEndian.Uint16(f[PayloadSize:])
	if want != got {
		return &ChecksumError{Command: f.Command(), Want: want, Got: got}
	}
	return nil
}

// Valid reports whether the checksum trailer matches.
func (f Frame) Valid() bool {
	return f.Verify() == nil
}

// Bytes returns the frame as a slice.
func (f Frame) Bytes() []byte {
	return f[:]
}

// Payload returns the 8 bytes before the checksum.
func (f Frame) Payload() Payload {
	var p Payload
	copy(p[:], f[:PayloadSize])
	return p
}

func (f Frame) Command() Command { return Command(f[offCommand]) }
func (f Frame) Address() uint8   { return f[offAddress] }
