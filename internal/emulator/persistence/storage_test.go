// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ffutop/rrg12/internal/emulator/model"
	"github.com/ffutop/rrg12/rrg/register"
)

type closer interface {
	Close() error
}

func TestStorageSurvivesReload(t *testing.T) {
	tests := []struct {
		name string
		open func(path string) Storage
	}{
		{"file", func(path string) Storage { return NewFileStorage(path) }},
		{"mmap", func(path string) Storage { return NewMmapStorage(path) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rrg.bin")

			s := tt.open(path)
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
				r[model.ZeroShift] = 0x0102
			})
			s.OnWrite(0, model.Size)
			if err := s.Save(m); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := s.(closer).Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			fi, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if fi.Size() != totalSize {
				t.Errorf("file size = %d, want %d", fi.Size(), totalSize)
			}

			s = tt.open(path)
			m, err = s.Load()
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			defer s.(closer).Close()

			if m.Get(register.NetAddress) != 3 || m.Get(register.FlowSetpoint) != 0x1388 || m.Get(model.ZeroShift) != 0x0102 {
				t.Errorf("reloaded registers = %v", m.Registers)
			}
		})
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Registers) != model.Size {
		t.Errorf("len(Registers) = %d, want %d", len(m.Registers), model.Size)
	}
	if err := s.Save(m); err != nil {
		t.Error(err)
	}
}

func TestMmapSaveWithoutLoad(t *testing.T) {
	s := NewMmapStorage(filepath.Join(t.TempDir(), "x.bin"))
	if err := s.Save(nil); err == nil {
		t.Error("Save before Load succeeded")
	}
}
