// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rrg holds the definitions shared by the RRG-12 protocol codecs and
// device sessions.
package rrg

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIdentified is returned by operations that need a device address
	// before one has been assigned. No frame is sent.
	ErrNotIdentified = errors.New("rrg: device address is not identified")

	// ErrUnsupported is returned when the protocol variant has no way to
	// express the requested operation.
	ErrUnsupported = errors.New("rrg: operation not supported by protocol variant")
)

// ValidationError reports an argument rejected before any I/O took place.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rrg: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// TransportError wraps a failure reported by the transport collaborator.
// The core does not interpret or retry it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rrg: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
