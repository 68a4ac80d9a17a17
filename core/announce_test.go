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
package core

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompactPeersRoundTrip(t *testing.T) {
	require := require.New(t)

	now := time.Now().Truncate(time.Second)
	a, _ := NewPeerAddr(net.IPv4(10, 0, 0, 1), 6881)
	b, _ := NewPeerAddr(net.IPv4(192, 168, 1, 2), 51413)
	peers := []Peer{{Addr: a, Expire: now}, {Addr: b, Expire: now}}

	blob := EncodePeers(peers)
	require.Len(blob, 12)

	decoded, err := DecodePeers(blob, now)
	require.NoError(err)
	require.ElementsMatch(peers, decoded)
}

func TestCompactPeers6RoundTrip(t *testing.T) {
	require := require.New(t)

	now := time.Now().Truncate(time.Second)
	ip := net.ParseIP("2001:db8::1")
	a, err := NewPeerAddr(ip, 6881)
	require.NoError(err)
	peers := []Peer{{Addr: a, Expire: now}}

	blob := EncodePeers6(peers)
	require.Len(blob, 18)

	decoded, err := DecodePeers6(blob, now)
	require.NoError(err)
	require.ElementsMatch(peers, decoded)
}

func TestDecodePeersRejectsMisalignedLength(t *testing.T) {
	_, err := DecodePeers("short", time.Now())
	require.Error(t, err)
}

func TestDecodePeers6RejectsMisalignedLength(t *testing.T) {
	_, err := DecodePeers6("short", time.Now())
	require.Error(t, err)
}

func TestProjectFiltersByAddressFamily(t *testing.T) {
	require := require.New(t)

	now := time.Now()
	d := NewPeerDirectory(0)
	v4, _ := NewPeerAddr(net.IPv4(1, 2, 3, 4), 1)
	v6, _ := NewPeerAddr(net.ParseIP("::1"), 1)
	d.Upsert(v4, now.Add(time.Minute))
	d.Upsert(v6, now.Add(time.Minute))

	resp := Project(d, 1800)
	require.Equal(1800, resp.Interval)
	require.Len(resp.Peers, 6)
	require.Len(resp.Peers6, 18)
}
