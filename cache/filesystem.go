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
	"os"
	"path/filepath"

	"github.com/uber/kraken/core"
)

const appName = "btcache"

// FilesystemConfig configures the default, on-disk Store backend.
type FilesystemConfig struct {
	// Root overrides the cache root directory entirely. When empty, the
	// root is resolved from CACHE_ROOT, then XDG_CACHE_HOME, then
	// $HOME/.cache, each joined with the application name.
	Root string `yaml:"root"`
}

// FilesystemStore is the default Store backend: one file per info-hash
// under a resolved cache root directory.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore returns a FilesystemStore rooted per config, creating
// the root directory if it does not exist.
func NewFilesystemStore(config FilesystemConfig) (*FilesystemStore, error) {
	root := resolveRoot(config.Root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %s", root, err)
	}
	return &FilesystemStore{root: root}, nil
}

func resolveRoot(override string) string {
	if override != "" {
		return override
	}
	if v := os.Getenv("CACHE_ROOT"); v != "" {
		return filepath.Join(v, appName)
	}
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(os.Getenv("HOME"), ".cache", appName)
}

func (s *FilesystemStore) path(h core.InfoHash) string {
	return filepath.Join(s.root, h.Key())
}

// Load implements Store. A missing file is reported as (nil, nil), not an
// error — absence is distinct from a load failure.
func (s *FilesystemStore) Load(h core.InfoHash) (*core.PeerDirectory, error) {
	b, err := os.ReadFile(s.path(h))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "read cache file", err)
	}
	d, err := Unmarshal(b)
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "decode cache record", err)
	}
	return d, nil
}

// Store implements Store, overwriting any prior record for h.
func (s *FilesystemStore) Store(h core.InfoHash, d *core.PeerDirectory) error {
	b, err := Marshal(d)
	if err != nil {
		return core.NewFetchError(core.CachePersistFailure, "encode cache record", err)
	}
	tmp := s.path(h) + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return core.NewFetchError(core.CachePersistFailure, "write cache file", err)
	}
	if err := os.Rename(tmp, s.path(h)); err != nil {
		return core.NewFetchError(core.CachePersistFailure, "rename cache file", err)
	}
	return nil
}

// Close implements Store. The filesystem backend holds no resources worth
// releasing.
func (s *FilesystemStore) Close() error {
	return nil
}
