// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/ffutop/rrg12/rrg"
	"github.com/ffutop/rrg12/rrg/frame"
	"github.com/ffutop/rrg12/rrg/register"
	"github.com/ffutop/rrg12/rrg/state"
)

// FrameSession drives a device over the proprietary frame protocol.
type FrameSession struct {
	rw   io.ReadWriter
	conv register.Converter

	address    uint8
	identified bool
	serial     uint16
	serialSet  bool
}

// UnexpectedResponseError reports a reply to a different command.
type UnexpectedResponseError struct {
	Want, Got frame.Command
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("device: got %v response to %v", e.Got, e.Want)
}

// Option configures a FrameSession.
type Option func(*FrameSession)

// WithAddress starts the session identified at a known address, skipping
// discovery. The serial number stays unknown until Refresh or CheckConnection.
func WithAddress(address uint8) Option {
	return func(s *FrameSession) {
		s.address = address
		s.identified = true
	}
}

// NewFrameSession borrows rw. maxFlow is the calibrated full-scale flow.
func NewFrameSession(rw io.ReadWriter, maxFlow float64, opts ...Option) (*FrameSession, error) {
	conv, err := register.NewConverter(maxFlow)
	if err != nil {
		return nil, err
	}
	s := &FrameSession{rw: rw, conv: conv}
	for _, opt := range opts {
		opt(s)
	}
	if s.identified {
		if err := checkAddress(s.address); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// lineDoer is a transport that hands out the line for one whole exchange and
// resynchronises it when the exchange fails, like serial.Port and rtuovertcp.Conn.
type lineDoer interface {
	Do(ctx context.Context, fn func(rw io.ReadWriter) error) error
}

// exchange writes req and reads exactly one response frame. A cancelled ctx
// stops the request before it is written; a read in progress is left to the
// transport timeout.
func (s *FrameSession) exchange(ctx context.Context, req frame.Frame) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}

	d, ok := s.rw.(lineDoer)
	if !ok {
		return roundTrip(s.rw, req)
	}
	var (
		resp    frame.Frame
		tripErr error
	)
	err := d.Do(ctx, func(rw io.ReadWriter) error {
		resp, tripErr = roundTrip(rw, req)
		return tripErr
	})
	if tripErr != nil {
		return frame.Frame{}, tripErr
	}
	if err != nil {
		return frame.Frame{}, &rrg.TransportError{Op: "open " + req.Command().String(), Err: err}
	}
	return resp, nil
}

func roundTrip(rw io.ReadWriter, req frame.Frame) (frame.Frame, error) {
	cmd := req.Command()
	slog.Debug("send frame", "command", cmd, "request", hex.EncodeToString(req.Bytes()))
	if _, err := rw.Write(req.Bytes()); err != nil {
		return frame.Frame{}, &rrg.TransportError{Op: "write " + cmd.String(), Err: err}
	}

	buf := make([]byte, frame.Size)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return frame.Frame{}, &rrg.TransportError{Op: "read " + cmd.String(), Err: err}
	}
	slog.Debug("recv frame", "command", cmd, "response", hex.EncodeToString(buf))

	return frame.Parse(buf)
}

func (s *FrameSession) requireAddress() (uint8, error) {
	if !s.identified {
		return 0, rrg.ErrNotIdentified
	}
	return s.address, nil
}

// Identify runs the address-define exchange once and caches the result.
func (s *FrameSession) Identify(ctx context.Context) (uint8, error) {
	if s.identified {
		return s.address, nil
	}
	return s.identify(ctx)
}

// Refresh identifies again. The cached identity is kept if that fails.
func (s *FrameSession) Refresh(ctx context.Context) (uint8, error) {
	return s.identify(ctx)
}

func (s *FrameSession) identify(ctx context.Context) (uint8, error) {
	resp, err := s.exchange(ctx, frame.AddressRequest())
	if err != nil {
		return 0, err
	}
	if resp.Command() != frame.CmdAddressDefine {
		return 0, &UnexpectedResponseError{Want: frame.CmdAddressDefine, Got: resp.Command()}
	}
	// A line held low reads as an all-zero frame with a valid checksum.
	if err := checkAddress(resp.Address()); err != nil {
		return 0, err
	}
	s.address = resp.Address()
	s.serial = resp.Serial()
	s.identified = true
	s.serialSet = true

	slog.Info("device identified", "address", s.address, "serial", s.serial)
	return s.address, nil
}

func (s *FrameSession) Address() (uint8, bool) {
	return s.address, s.identified
}

// Serial returns the serial number captured during identification.
func (s *FrameSession) Serial() (uint16, bool) {
	return s.serial, s.serialSet
}

// CheckConnection asks the identified device to report itself. The cached
// identity is not changed.
func (s *FrameSession) CheckConnection(ctx context.Context) (address uint8, serial uint16, err error) {
	addr, err := s.requireAddress()
	if err != nil {
		return 0, 0, err
	}
	resp, err := s.exchange(ctx, frame.CheckConnectionRequest(addr))
	if err != nil {
		return 0, 0, err
	}
	return resp.Address(), resp.Serial(), nil
}

func (s *FrameSession) readState(ctx context.Context) (first, second uint8, err error) {
	addr, err := s.requireAddress()
	if err != nil {
		return 0, 0, err
	}
	resp, err := s.exchange(ctx, frame.StateRequest(addr))
	if err != nil {
		return 0, 0, err
	}
	if s.serialSet && resp.DeviceNumber() != s.serial {
		return 0, 0, &DeviceMismatchError{Want: s.serial, Got: resp.DeviceNumber()}
	}
	first, second = resp.StateBytes()
	return first, second, nil
}

// State reads and decodes both status bytes.
func (s *FrameSession) State(ctx context.Context) (state.Word, error) {
	first, second, err := s.readState(ctx)
	if err != nil {
		return state.Word{}, err
	}
	return state.DecodeWord(first, second)
}

// WritableState decodes only the configuration byte.
func (s *FrameSession) WritableState(ctx context.Context) (state.ConfigFlags, error) {
	first, _, err := s.readState(ctx)
	if err != nil {
		return state.ConfigFlags{}, err
	}
	return state.DecodeConfig(first)
}

// SetRegime overwrites both modes in one frame.
func (s *FrameSession) SetRegime(ctx context.Context, mode state.TypeMode, measuring state.MeasuringMode) error {
	if err := checkMember("TypeMode", mode); err != nil {
		return err
	}
	if err := checkMember("MeasuringMode", measuring); err != nil {
		return err
	}
	return s.send(ctx, func(addr uint8) frame.Frame {
		return frame.RegimeRequest(addr, mode.Code(), measuring.Code())
	})
}

// ReadFlow returns the measured flow and the setpoint from one frame.
func (s *FrameSession) ReadFlow(ctx context.Context) (Flow, error) {
	addr, err := s.requireAddress()
	if err != nil {
		return Flow{}, err
	}
	resp, err := s.exchange(ctx, frame.ReadFlowRequest(addr))
	if err != nil {
		return Flow{}, err
	}
	return Flow{
		Measured:      s.conv.ToEngineering(resp.Flow()),
		Setpoint:      s.conv.ToEngineering(resp.Setpoint()),
		SetpointKnown: true,
	}, nil
}

func (s *FrameSession) WriteFlow(ctx context.Context, flow float64) error {
	addr, err := s.requireAddress()
	if err != nil {
		return err
	}
	if flow == 0 {
		return s.ensurePlug(ctx, state.PlugClosed)
	}

	raw, err := s.conv.FromEngineering(flow)
	if err != nil {
		return err
	}
	if err := s.ensurePlug(ctx, state.PlugRegulation); err != nil {
		return err
	}
	_, err = s.exchange(ctx, frame.SetFlowRequest(addr, raw))
	return err
}

func (s *FrameSession) ensurePlug(ctx context.Context, p state.Plug) error {
	return modify(ctx, s.WritableState, func(ctx context.Context, _ state.ConfigFlags) error {
		return s.SetPlugMode(ctx, p)
	}, p)
}

// SetZero stores shift as the zero calibration and raises the zero-setup flag.
func (s *FrameSession) SetZero(ctx context.Context, shift uint16) error {
	return s.send(ctx, func(addr uint8) frame.Frame {
		return frame.SetZeroRequest(addr, shift)
	})
}

// Zero reads the zero calibration.
func (s *FrameSession) Zero(ctx context.Context) (uint16, error) {
	addr, err := s.requireAddress()
	if err != nil {
		return 0, err
	}
	resp, err := s.exchange(ctx, frame.GetZeroRequest(addr))
	if err != nil {
		return 0, err
	}
	return resp.ZeroShift(), nil
}

// RedefineAddress moves the device to newAddress and follows it there.
func (s *FrameSession) RedefineAddress(ctx context.Context, newAddress uint8) error {
	if err := checkAddress(newAddress); err != nil {
		return err
	}
	old := s.address
	if err := s.send(ctx, func(addr uint8) frame.Frame {
		return frame.RedefineAddressRequest(addr, newAddress)
	}); err != nil {
		return err
	}
	s.address = newAddress
	slog.Info("device address changed", "from", old, "to", newAddress)
	return nil
}

func (s *FrameSession) SetBaudrate(ctx context.Context, rate int) error {
	code, err := rrg.BaudrateCode(rate)
	if err != nil {
		return err
	}
	return s.send(ctx, func(addr uint8) frame.Frame {
		return frame.BaudrateRequest(addr, code)
	})
}

func (s *FrameSession) SetRecoveryMode(ctx context.Context, mode state.Recovery) error {
	if err := checkMember("Recovery", mode); err != nil {
		return err
	}
	return s.send(ctx, func(addr uint8) frame.Frame {
		return frame.RecoveryRequest(addr, mode.Code())
	})
}

func (s *FrameSession) SetPlugMode(ctx context.Context, mode state.Plug) error {
	if err := checkMember("Plug", mode); err != nil {
		return err
	}
	return s.send(ctx, func(addr uint8) frame.Frame {
		return frame.PlugRequest(addr, mode.Code())
	})
}

// send runs a set command whose only answer is an acknowledgement.
func (s *FrameSession) send(ctx context.Context, build func(addr uint8) frame.Frame) error {
	addr, err := s.requireAddress()
	if err != nil {
		return err
	}
	_, err = s.exchange(ctx, build(addr))
	return err
}

var _ Device = (*FrameSession)(nil)
