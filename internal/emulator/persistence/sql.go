// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/rrg12/internal/emulator/model"
)

// SQLStorage keeps one row per memory slot.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *model.DataModel
}

// NewSQLStorage creates a new SQLStorage. The driver must be registered by
// the caller.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the DB and loads the data.
func (s *SQLStorage) Load() (*model.DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		s.db = nil
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	rows, err := db.Query("SELECT slot, value FROM rrg_memory")
	if err != nil {
		db.Close()
		s.db = nil
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	m := model.NewDataModel()
	for rows.Next() {
		var slot, val int
		if err := rows.Scan(&slot, &val); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if slot < 0 || slot >= model.Size {
			continue
		}
		m.Registers[slot] = uint16(val)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	s.model = m
	return m, nil
}

func (s *SQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS rrg_memory (
		slot INTEGER PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save writes every slot in one transaction.
func (s *SQLStorage) Save(m *model.DataModel) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for i := uint16(0); i < model.Size; i++ {
		if err := upsert(tx, i, m.Get(i)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save slot %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// OnWrite upserts the changed slots.
func (s *SQLStorage) OnWrite(address, quantity uint16) {
	if s.db == nil || s.model == nil {
		return
	}
	for i := address; i < address+quantity && i < model.Size; i++ {
		if err := upsert(s.db, i, s.model.Get(i)); err != nil {
			slog.Error("Failed to persist slot", "slot", i, "err", err)
		}
	}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsert(db execer, slot, value uint16) error {
	_, err := db.Exec("INSERT INTO rrg_memory (slot, value) VALUES (?, ?) ON CONFLICT(slot) DO UPDATE SET value=excluded.value", int(slot), int(value))
	return err
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
