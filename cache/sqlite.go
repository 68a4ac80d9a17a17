// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cache

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQL driver.
	"github.com/pressly/goose"

	_ "github.com/uber/kraken/cache/migrations" // Registers migrations.
	"github.com/uber/kraken/core"
)

// SQLiteConfig configures the queryable SQLite Store backend.
type SQLiteConfig struct {
	// Source is the path to the SQLite database file.
	Source string `yaml:"source"`
}

// SQLiteStore is a Store backend that keeps one row per info-hash in a
// local SQLite database, useful for operators who want to inspect cache
// state with ordinary SQL tooling.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (creating if necessary) the SQLite database at
// config.Source and runs pending migrations.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	if config.Source == "" {
		return nil, fmt.Errorf("invalid config: missing source")
	}
	db, err := sqlx.Open("sqlite3", config.Source)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %s", err)
	}
	// SQLite serializes writers; a single connection avoids "database is
	// locked" errors under concurrent access.
	db.SetMaxOpenConns(1)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("set dialect: %s", err)
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return nil, fmt.Errorf("migrate: %s", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(h core.InfoHash) (*core.PeerDirectory, error) {
	var record []byte
	err := s.db.Get(&record, `SELECT record FROM peer_directory WHERE info_hash = ?`, h.Key())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "query peer_directory", err)
	}
	d, err := Unmarshal(record)
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "decode cache record", err)
	}
	return d, nil
}

// Store implements Store, replacing any prior row for h.
func (s *SQLiteStore) Store(h core.InfoHash, d *core.PeerDirectory) error {
	b, err := Marshal(d)
	if err != nil {
		return core.NewFetchError(core.CachePersistFailure, "encode cache record", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO peer_directory (info_hash, record, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(info_hash) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		h.Key(), b)
	if err != nil {
		return core.NewFetchError(core.CachePersistFailure, "upsert peer_directory", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
