// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package state

import "fmt"

// DomainError is returned when a field's bits decode to a code its domain
// does not define.
type DomainError struct {
	Table string
	Field string
	Raw   uint8
	Code  uint8
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("state: %s byte %#02x: field %s has undefined code %d", e.Table, e.Raw, e.Field, e.Code)
}

// ShapeError is returned when Encode is given values that do not line up
// with the table.
type ShapeError struct {
	Table    string
	Position int // -1 when the length is wrong
	Reason   string
}

func (e *ShapeError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("state: encode %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("state: encode %s: position %d: %s", e.Table, e.Position, e.Reason)
}

// Decode splits raw into one value per field, in table order.
func (t *Table) Decode(raw uint8) ([]FieldValue, error) {
	values := make([]FieldValue, len(t.fields))
	for i, f := range t.fields {
		code := (raw & f.Mask) >> f.Shift
		v, ok := f.Domain.Member(code)
		if !ok {
			return nil, &DomainError{Table: t.name, Field: f.Name, Raw: raw, Code: code}
		}
		values[i] = FieldValue{Field: f, Value: v}
	}
	return values, nil
}

// Encode packs values back into a byte. values must match the table field
// for field, in order. Reserved bits are zero.
func (t *Table) Encode(values []FieldValue) (uint8, error) {
	if len(values) != len(t.fields) {
		return 0, &ShapeError{
			Table:    t.name,
			Position: -1,
			Reason:   fmt.Sprintf("got %d field values, want %d", len(values), len(t.fields)),
		}
	}

	var raw uint8
	for i, f := range t.fields {
		fv := values[i]
		if fv.Field != f {
			return 0, &ShapeError{
				Table:    t.name,
				Position: i,
				Reason:   fmt.Sprintf("got field %q, want %q", fv.Field.Name, f.Name),
			}
		}
		if fv.Value == nil || !f.Domain.Contains(fv.Value) {
			return 0, &ShapeError{
				Table:    t.name,
				Position: i,
				Reason:   fmt.Sprintf("value %v is not a member of %s", fv.Value, f.Domain.Name()),
			}
		}
		raw |= (fv.Value.Code() << f.Shift) & f.Mask
	}
	return raw, nil
}
