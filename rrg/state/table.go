// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package state decodes and encodes the two RRG-12 status bytes.
//
// The first byte carries the writable configuration flags, the second the
// read-only status flags. Each byte is described by a Table: an ordered list
// of bit fields, each with its own enumerated domain. Field order is part of
// the contract: Encode expects values in exactly the order Decode returns them.
package state

import (
	"fmt"
	"math/bits"
	"sort"
)

// Value is a member of an enumerated field domain.
type Value interface {
	Code() uint8
	String() string
}

// Domain is the closed set of values one field may take.
type Domain interface {
	Name() string
	Member(code uint8) (Value, bool)
	Contains(v Value) bool
	Codes() []uint8
}

type enum interface {
	~uint8
	Value
}

type enumDomain[T enum] struct {
	name  string
	names map[T]string
}

func newDomain[T enum](name string, names map[T]string) *enumDomain[T] {
	return &enumDomain[T]{name: name, names: names}
}

func (d *enumDomain[T]) Name() string { return d.name }

func (d *enumDomain[T]) Member(code uint8) (Value, bool) {
	v := T(code)
	if _, ok := d.names[v]; !ok {
		return nil, false
	}
	return v, true
}

func (d *enumDomain[T]) Contains(v Value) bool {
	t, ok := v.(T)
	if !ok {
		return false
	}
	_, ok = d.names[t]
	return ok
}

func (d *enumDomain[T]) Codes() []uint8 {
	codes := make([]uint8, 0, len(d.names))
	for v := range d.names {
		codes = append(codes, uint8(v))
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (d *enumDomain[T]) label(v T) string {
	if name, ok := d.names[v]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", d.name, uint8(v))
}

// FieldSpec describes one bit field: which bits it occupies and what the
// decoded integer means.
type FieldSpec struct {
	Name   string
	Mask   uint8
	Shift  uint8
	Domain Domain
}

// FieldValue is a decoded field: the field it came from and its value.
type FieldValue struct {
	Field FieldSpec
	Value Value
}

func (fv FieldValue) String() string {
	return fmt.Sprintf("%s=%v", fv.Field.Name, fv.Value)
}

// Table is the ordered field layout of one status byte.
type Table struct {
	name   string
	fields []FieldSpec
}

// NewTable checks that the fields are well formed and do not overlap.
// Bits not covered by any field are reserved.
func NewTable(name string, specs ...FieldSpec) (*Table, error) {
	var used uint8
	seen := make(map[string]bool, len(specs))

	for i, f := range specs {
		switch {
		case f.Name == "":
			return nil, fmt.Errorf("state: table %s: field %d has no name", name, i)
		case seen[f.Name]:
			return nil, fmt.Errorf("state: table %s: duplicate field %s", name, f.Name)
		case f.Domain == nil:
			return nil, fmt.Errorf("state: table %s: field %s has no domain", name, f.Name)
		case f.Mask == 0:
			return nil, fmt.Errorf("state: table %s: field %s has an empty mask", name, f.Name)
		case bits.TrailingZeros8(f.Mask) != int(f.Shift):
			return nil, fmt.Errorf("state: table %s: field %s: shift %d does not match mask %#02x", name, f.Name, f.Shift, f.Mask)
		}

		width := f.Mask >> f.Shift
		if width&(width+1) != 0 {
			return nil, fmt.Errorf("state: table %s: field %s: mask %#02x is not contiguous", name, f.Name, f.Mask)
		}
		if used&f.Mask != 0 {
			return nil, fmt.Errorf("state: table %s: field %s: mask %#02x overlaps bits %#02x", name, f.Name, f.Mask, used&f.Mask)
		}
		for _, code := range f.Domain.Codes() {
			if code > width {
				return nil, fmt.Errorf("state: table %s: field %s: %s code %d does not fit mask %#02x", name, f.Name, f.Domain.Name(), code, f.Mask)
			}
		}

		used |= f.Mask
		seen[f.Name] = true
	}

	return &Table{name: name, fields: append([]FieldSpec(nil), specs...)}, nil
}

func mustTable(name string, specs ...FieldSpec) *Table {
	t, err := NewTable(name, specs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name used in error messages.
func (t *Table) Name() string { return t.name }

// Len returns the number of fields.
func (t *Table) Len() int { return len(t.fields) }

// Fields returns a copy of the fields in declaration order.
func (t *Table) Fields() []FieldSpec {
	return append([]FieldSpec(nil), t.fields...)
}

// Field returns the field with the given name.
func (t *Table) Field(name string) (FieldSpec, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Reserved returns the bits no field covers.
func (t *Table) Reserved() uint8 {
	var used uint8
	for _, f := range t.fields {
		used |= f.Mask
	}
	return ^used
}
