// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package state

import (
	"errors"
	"testing"
)

type level uint8

func (v level) Code() uint8    { return uint8(v) }
func (v level) String() string { return levelDomain.label(v) }

var levelDomain = newDomain("Level", map[level]string{0: "LOW", 1: "MID", 2: "HIGH"})

func TestConfigRoundTrip(t *testing.T) {
	// Bit 7 is reserved, every other pattern is a valid configuration.
	for raw := 0; raw < 0x80; raw++ {
		values, err := ConfigTable.Decode(uint8(raw))
		if err != nil {
			t.Fatalf("Decode(%#02x) failed: %v", raw, err)
		}
		got, err := ConfigTable.Encode(values)
		if err != nil {
			t.Fatalf("Encode(Decode(%#02x)) failed: %v", raw, err)
		}
		if got != uint8(raw) {
			t.Fatalf("Encode(Decode(%#02x)) = %#02x", raw, got)
		}
		again, err := ConfigTable.Decode(got)
		if err != nil {
			t.Fatalf("Decode(%#02x) failed: %v", got, err)
		}
		if !equalValues(values, again) {
			t.Fatalf("Decode(Encode(%v)) = %v", values, again)
		}
	}
}

func TestEncodeDropsReservedBit(t *testing.T) {
	values, err := ConfigTable.Decode(0x80 | 0x09)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, err := ConfigTable.Encode(values)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got != 0x09 {
		t.Errorf("Encode = %#02x, want 0x09", got)
	}
}

func TestDecodeOrder(t *testing.T) {
	values, err := ConfigTable.Decode(0x00)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"TypeMode", "Input", "Plug", "Recovery", "MeasuringMode", "ZeroSetup"}
	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d", len(values), len(want))
	}
	for i, name := range want {
		if values[i].Field.Name != name {
			t.Errorf("position %d: got %s, want %s", i, values[i].Field.Name, name)
		}
	}
}

func TestDecodeStatusByte(t *testing.T) {
	// LowGas, forced valve, RDG chosen, RDG and RRG available, outer plug closed.
	st, err := DecodeStatus(0x01 | 0x02 | 0x04 | 0x08 | 0x10 | 0x40)
	if err != nil {
		t.Fatalf("DecodeStatus failed: %v", err)
	}
	if st.Condition() != ConditionLowGas {
		t.Errorf("Condition = %v", st.Condition())
	}
	if st.PlugState() != PlugStateOpenOrClosed {
		t.Errorf("PlugState = %v", st.PlugState())
	}
	if st.MeasuringModeChosen() != MeasuringModeChosenRDG {
		t.Errorf("MeasuringModeChosen = %v", st.MeasuringModeChosen())
	}
	if st.RDGAvailable() != RDGAvailableYes || st.RRGAvailable() != RRGAvailableYes {
		t.Errorf("availability = %v/%v", st.RDGAvailable(), st.RRGAvailable())
	}
	if st.OuterPlugState() != OuterPlugClosed {
		t.Errorf("OuterPlugState = %v", st.OuterPlugState())
	}
}

func TestDecodeRejectsUndefinedCode(t *testing.T) {
	table, err := NewTable("test",
		FieldSpec{Name: "Flag", Mask: 0x01, Shift: 0, Domain: zeroSetupDomain},
		FieldSpec{Name: "Level", Mask: 0x06, Shift: 1, Domain: levelDomain},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	if _, err := table.Decode(0x05); err != nil {
		t.Fatalf("Decode(0x05) failed: %v", err)
	}

	_, err = table.Decode(0x06)
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("Decode(0x06) error = %v, want *DomainError", err)
	}
	if derr.Field != "Level" || derr.Code != 3 || derr.Raw != 0x06 {
		t.Errorf("DomainError = %+v", derr)
	}
}

func TestEncodeShapeErrors(t *testing.T) {
	values, err := ConfigTable.Decode(0x00)
	if err != nil {
		t.Fatal(err)
	}

	swapped := append([]FieldValue(nil), values...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	foreign := append([]FieldValue(nil), values...)
	foreign[2].Value = OuterPlugClosed

	missing := append([]FieldValue(nil), values...)
	missing[3].Value = nil

	tests := []struct {
		name   string
		values []FieldValue
		pos    int
	}{
		{"Short", values[:5], -1},
		{"Long", append(append([]FieldValue(nil), values...), values[0]), -1},
		{"Swapped", swapped, 0},
		{"ForeignDomain", foreign, 2},
		{"NilValue", missing, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfigTable.Encode(tt.values)
			var serr *ShapeError
			if !errors.As(err, &serr) {
				t.Fatalf("Encode error = %v, want *ShapeError", err)
			}
			if serr.Position != tt.pos {
				t.Errorf("Position = %d, want %d", serr.Position, tt.pos)
			}
		})
	}
}

func TestStatusValuesDoNotEncodeAsConfig(t *testing.T) {
	st, err := StatusTable.Decode(0x00)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ConfigTable.Encode(st); err == nil {
		t.Fatal("encoding status fields with the config table succeeded")
	}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{"EmptyMask", []FieldSpec{{Name: "A", Mask: 0, Shift: 0, Domain: zeroSetupDomain}}},
		{"ShiftMismatch", []FieldSpec{{Name: "A", Mask: 0x04, Shift: 1, Domain: zeroSetupDomain}}},
		{"NotContiguous", []FieldSpec{{Name: "A", Mask: 0x05, Shift: 0, Domain: zeroSetupDomain}}},
		{"Overlap", []FieldSpec{
			{Name: "A", Mask: 0x03, Shift: 0, Domain: levelDomain},
			{Name: "B", Mask: 0x02, Shift: 1, Domain: zeroSetupDomain},
		}},
		{"CodeTooWide", []FieldSpec{{Name: "A", Mask: 0x01, Shift: 0, Domain: levelDomain}}},
		{"NoDomain", []FieldSpec{{Name: "A", Mask: 0x01, Shift: 0}}},
		{"Duplicate", []FieldSpec{
			{Name: "A", Mask: 0x01, Shift: 0, Domain: zeroSetupDomain},
			{Name: "A", Mask: 0x02, Shift: 1, Domain: zeroSetupDomain},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable("bad", tt.specs...); err == nil {
				t.Error("NewTable succeeded, want error")
			}
		})
	}
}

func TestReservedBits(t *testing.T) {
	if got := ConfigTable.Reserved(); got != 0x80 {
		t.Errorf("ConfigTable.Reserved() = %#02x, want 0x80", got)
	}
	if got := StatusTable.Reserved(); got != 0x80 {
		t.Errorf("StatusTable.Reserved() = %#02x, want 0x80", got)
	}
}
