// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ffutop/rrg12/internal/emulator/model"
	"github.com/ffutop/rrg12/rrg/register"
)

func TestSQLStorageSurvivesReload(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "rrg.db")

	s := NewSQLStorage("sqlite3", dsn)
	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Get(register.NetAddress) != 0 {
		t.Fatal("fresh storage is not zeroed")
	}

	m.Update(func(r []uint16) {
		r[register.NetAddress] = 3
		r[register.FlowSetpoint] = 0x1388
	})
	s.OnWrite(register.NetAddress, 1)
	s.OnWrite(register.FlowSetpoint, 1)
	// Only Save reaches the zero shift.
	m.Update(func(r []uint16) { r[model.ZeroShift] = 0x0102 })
	if err := s.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s = NewSQLStorage("sqlite3", dsn)
	defer s.Close()
	m, err = s.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if m.Get(register.NetAddress) != 3 || m.Get(register.FlowSetpoint) != 0x1388 || m.Get(model.ZeroShift) != 0x0102 {
		t.Errorf("reloaded memory = %v", m.Registers)
	}
}

func TestSQLStorageUnknownDriver(t *testing.T) {
	if _, err := NewSQLStorage("nosuchdriver", "x").Load(); err == nil {
		t.Error("Load with an unknown driver succeeded")
	}
}
