// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package state

import (
	"fmt"
	"strings"
)

// ConfigFlags is the decoded first status byte. It is the only view that can
// be encoded and written back to the device.
type ConfigFlags struct {
	values []FieldValue
}

// StatusFlags is the decoded second status byte. It is read-only.
type StatusFlags struct {
	values []FieldValue
}

// Word is a full status read: both bytes, decoded.
type Word struct {
	Config ConfigFlags
	Status StatusFlags
}

// DecodeConfig decodes the first status byte.
func DecodeConfig(raw uint8) (ConfigFlags, error) {
	values, err := ConfigTable.Decode(raw)
	if err != nil {
		return ConfigFlags{}, err
	}
	return ConfigFlags{values: values}, nil
}

// DecodeStatus decodes the second status byte.
func DecodeStatus(raw uint8) (StatusFlags, error) {
	values, err := StatusTable.Decode(raw)
	if err != nil {
		return StatusFlags{}, err
	}
	return StatusFlags{values: values}, nil
}

// DecodeWord decodes both status bytes.
func DecodeWord(first, second uint8) (Word, error) {
	cfg, err := DecodeConfig(first)
	if err != nil {
		return Word{}, err
	}
	st, err := DecodeStatus(second)
	if err != nil {
		return Word{}, err
	}
	return Word{Config: cfg, Status: st}, nil
}

// NewConfigFlags builds configuration flags from values given in ConfigTable
// order.
func NewConfigFlags(values ...Value) (ConfigFlags, error) {
	fields := ConfigTable.Fields()
	if len(values) != len(fields) {
		return ConfigFlags{}, &ShapeError{
			Table:    ConfigTable.Name(),
			Position: -1,
			Reason:   fmt.Sprintf("got %d values, want %d", len(values), len(fields)),
		}
	}
	fvs := make([]FieldValue, len(fields))
	for i, f := range fields {
		fvs[i] = FieldValue{Field: f, Value: values[i]}
	}
	c := ConfigFlags{values: fvs}
	if _, err := c.Encode(); err != nil {
		return ConfigFlags{}, err
	}
	return c, nil
}

// Values returns the field values in table order.
func (c ConfigFlags) Values() []FieldValue {
	return append([]FieldValue(nil), c.values...)
}

// Encode packs the flags into the first status byte.
func (c ConfigFlags) Encode() (uint8, error) {
	return ConfigTable.Encode(c.values)
}

// With returns a copy of c with the field whose domain holds v replaced by v.
func (c ConfigFlags) With(v Value) (ConfigFlags, error) {
	for i, fv := range c.values {
		if !fv.Field.Domain.Contains(v) {
			continue
		}
		values := c.Values()
		values[i].Value = v
		return ConfigFlags{values: values}, nil
	}
	return ConfigFlags{}, &ShapeError{
		Table:    ConfigTable.Name(),
		Position: -1,
		Reason:   fmt.Sprintf("no field accepts value %v (%T)", v, v),
	}
}

// Equal reports whether both hold the same values.
func (c ConfigFlags) Equal(o ConfigFlags) bool {
	return equalValues(c.values, o.values)
}

func (c ConfigFlags) TypeMode() TypeMode           { return valueOf[TypeMode](c.values) }
func (c ConfigFlags) Input() Input                 { return valueOf[Input](c.values) }
func (c ConfigFlags) Plug() Plug                   { return valueOf[Plug](c.values) }
func (c ConfigFlags) Recovery() Recovery           { return valueOf[Recovery](c.values) }
func (c ConfigFlags) MeasuringMode() MeasuringMode { return valueOf[MeasuringMode](c.values) }
func (c ConfigFlags) ZeroSetup() ZeroSetup         { return valueOf[ZeroSetup](c.values) }

func (c ConfigFlags) String() string { return join(c.values) }

// Values returns the field values in table order.
func (s StatusFlags) Values() []FieldValue {
	return append([]FieldValue(nil), s.values...)
}

func (s StatusFlags) Condition() Condition                     { return valueOf[Condition](s.values) }
func (s StatusFlags) PlugState() PlugState                     { return valueOf[PlugState](s.values) }
func (s StatusFlags) MeasuringModeChosen() MeasuringModeChosen { return valueOf[MeasuringModeChosen](s.values) }
func (s StatusFlags) RDGAvailable() RDGAvailable               { return valueOf[RDGAvailable](s.values) }
func (s StatusFlags) RRGAvailable() RRGAvailable               { return valueOf[RRGAvailable](s.values) }
func (s StatusFlags) OuterPlugState() OuterPlugState           { return valueOf[OuterPlugState](s.values) }

func (s StatusFlags) String() string { return join(s.values) }

// Values returns configuration fields followed by status fields.
func (w Word) Values() []FieldValue {
	out := make([]FieldValue, 0, len(w.Config.values)+len(w.Status.values))
	out = append(out, w.Config.values...)
	return append(out, w.Status.values...)
}

func (w Word) String() string {
	return w.Config.String() + " " + w.Status.String()
}

func valueOf[T enum](values []FieldValue) T {
	for _, fv := range values {
		if v, ok := fv.Value.(T); ok {
			return v
		}
	}
	var zero T
	return zero
}

func equalValues(a, b []FieldValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func join(values []FieldValue) string {
	parts := make([]string, len(values))
	for i, fv := range values {
		parts[i] = fv.String()
	}
	return strings.Join(parts, " ")
}
