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
package trackerclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFingerprintIsDeterministic(t *testing.T) {
	require := require.New(t)

	a := newFingerprint("https://tracker.example.com/announce")
	b := newFingerprint("https://tracker.example.com/announce")
	require.Equal(a, b)
}

func TestNewFingerprintDiffersAcrossTrackers(t *testing.T) {
	require := require.New(t)

	a := newFingerprint("https://tracker-one.example.com/announce")
	b := newFingerprint("https://tracker-two.example.com/announce")
	require.NotEqual(a, b)
}

func TestRandomUserAgentIsFromTable(t *testing.T) {
	require := require.New(t)

	ua := randomUserAgent("https://tracker.example.com/announce")
	require.Contains(qbVersionUAs, ua)
}

func TestRandomPeerIDFormat(t *testing.T) {
	require := require.New(t)

	id := randomPeerID("https://tracker.example.com/announce")
	require.Len(id, 20)

	var prefixFound bool
	for _, v := range qbVersions {
		if strings.HasPrefix(id, v) {
			prefixFound = true
			break
		}
	}
	require.True(prefixFound, "peer id %q must start with a known version prefix", id)

	suffix := id[len(id)-12:]
	for _, c := range suffix {
		require.Contains(peerIDChars, string(c))
	}
}

func TestRandomPortInRange(t *testing.T) {
	require := require.New(t)

	for _, url := range []string{
		"https://a.example.com/announce",
		"https://b.example.com/announce",
		"https://c.example.com/announce",
	} {
		port := randomPort(url)
		require.GreaterOrEqual(port, uint16(1024))
		require.Less(int(port), 65536)
	}
}

func TestRandomKeyFormat(t *testing.T) {
	require := require.New(t)

	key := randomKey("https://tracker.example.com/announce")
	require.Len(key, 8)
	for _, c := range key {
		require.Contains(keyChars, string(c))
	}
}
