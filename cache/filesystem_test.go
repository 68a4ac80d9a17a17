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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uber/kraken/core"
)

func TestFilesystemStoreLoadAbsentReturnsNilNil(t *testing.T) {
	require := require.New(t)

	s, err := NewFilesystemStore(FilesystemConfig{Root: t.TempDir()})
	require.NoError(err)

	d, err := s.Load(core.InfoHashFixture())
	require.NoError(err)
	require.Nil(d)
}

func TestFilesystemStoreStoreLoadRoundTrip(t *testing.T) {
	require := require.New(t)

	s, err := NewFilesystemStore(FilesystemConfig{Root: t.TempDir()})
	require.NoError(err)

	h := core.InfoHashFixture()
	d := core.NewPeerDirectory(42)
	d.Upsert(core.PeerAddrFixture(), time.Now().Add(time.Hour))

	require.NoError(s.Store(h, d))

	loaded, err := s.Load(h)
	require.NoError(err)
	require.NotNil(loaded)
	require.EqualValues(42, loaded.Size)
	require.Equal(1, loaded.Count())
}

func TestFilesystemStoreOverwritesOnRestore(t *testing.T) {
	require := require.New(t)

	root := t.TempDir()
	s, err := NewFilesystemStore(FilesystemConfig{Root: root})
	require.NoError(err)

	h := core.InfoHashFixture()
	require.NoError(s.Store(h, core.NewPeerDirectory(1)))
	require.NoError(s.Store(h, core.NewPeerDirectory(2)))

	loaded, err := s.Load(h)
	require.NoError(err)
	require.EqualValues(2, loaded.Size)
}

func TestResolveRootPrecedence(t *testing.T) {
	require := require.New(t)

	require.Equal("/explicit", resolveRoot("/explicit"))

	t.Setenv("CACHE_ROOT", "/from-env")
	require.Equal(filepath.Join("/from-env", appName), resolveRoot(""))
}
