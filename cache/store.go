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
	"fmt"

	"github.com/uber/kraken/core"
)

// Store persists and loads PeerDirectory records keyed by info-hash. Load
// returns (nil, nil) when no record exists for h — absence is not an error.
type Store interface {
	Load(h core.InfoHash) (*core.PeerDirectory, error)
	Store(h core.InfoHash, d *core.PeerDirectory) error
	Close() error
}

// Config selects and configures a Store backend. Exactly one backend is
// active; Backend defaults to "file".
type Config struct {
	Backend    string           `yaml:"backend"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Redis      RedisConfig      `yaml:"redis"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// New constructs the Store implementation selected by config.Backend.
func New(config Config) (Store, error) {
	switch config.Backend {
	case "", "file", "filesystem":
		return NewFilesystemStore(config.Filesystem)
	case "redis":
		return NewRedisStore(config.Redis)
	case "sqlite":
		return NewSQLiteStore(config.SQLite)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Backend)
	}
}
