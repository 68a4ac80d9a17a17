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
	"crypto/rand"
	"net"
	"time"
)

// InfoHashFixture returns a random InfoHash for use in tests.
func InfoHashFixture() InfoHash {
	var h InfoHash
	if _, err := rand.Read(h[:]); err != nil {
		panic(err)
	}
	return h
}

// PeerAddrFixture returns a random IPv4 PeerAddr for use in tests.
func PeerAddrFixture() PeerAddr {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	addr, err := NewPeerAddr(net.IPv4(b[0], b[1], b[2], b[3]), 6881)
	if err != nil {
		panic(err)
	}
	return addr
}

// PeerFixture returns a random Peer expiring d after now.
func PeerFixture(now time.Time, d time.Duration) Peer {
	return Peer{Addr: PeerAddrFixture(), Expire: now.Add(d)}
}
