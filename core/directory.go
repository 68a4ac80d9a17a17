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
	"sort"
	"time"
)

// PeerDirectory is the per-torrent cache record: the declared remaining
// size, the set of currently known peers (indexed two ways), and the
// per-origin validity deadlines that drive refresh decisions.
//
// peersByAddr is the authoritative index; peersSorted is the by-expiry view
// of the same peers, rebuilt from peersByAddr on the next read after any
// write, so the two never disagree when observed. All mutation goes through
// Upsert/EvictExpired, which mark the sorted view dirty.
type PeerDirectory struct {
	Size        int64
	peersByAddr map[PeerAddr]time.Time
	peersSorted []Peer // kept sorted by (expire, addr); rebuilt lazily on read after writes.
	dirty       bool
	trackerExp  map[string]time.Time // origin key -> validity deadline
}

// NewPeerDirectory returns an empty directory for a newly observed torrent.
func NewPeerDirectory(size int64) *PeerDirectory {
	return &PeerDirectory{
		Size:        size,
		peersByAddr: make(map[PeerAddr]time.Time),
		trackerExp:  make(map[string]time.Time),
	}
}

// Upsert inserts or refreshes a peer's expiry. If addr is already present,
// its prior entry in the by-expiry index is replaced rather than duplicated,
// preserving invariant 1 (bijection between the two indices).
func (d *PeerDirectory) Upsert(addr PeerAddr, newExpiry time.Time) {
	d.peersByAddr[addr] = newExpiry
	d.dirty = true
}

// EvictExpired removes every peer whose expiry is strictly less than now.
// Peers expiring exactly at now are retained. O(n) in the current peer
// count; the combined map-plus-lazy-sort index does not give the O(k)
// early-terminating eviction an expiry-ordered structure would.
func (d *PeerDirectory) EvictExpired(now time.Time) {
	for addr, exp := range d.peersByAddr {
		if exp.Before(now) {
			delete(d.peersByAddr, addr)
		}
	}
	d.dirty = true
}

// SetTrackerValidity records that responses from originKey are valid until
// validUntil. A later call for the same originKey overwrites the prior
// deadline; callers are expected to only extend it forward in time as part
// of a successful refresh.
func (d *PeerDirectory) SetTrackerValidity(originKey string, validUntil time.Time) {
	d.trackerExp[originKey] = validUntil
}

// IsValidFor reports whether the directory's view of originKey is still
// fresh at now. An origin that has never been recorded is never valid.
func (d *PeerDirectory) IsValidFor(originKey string, now time.Time) bool {
	exp, ok := d.trackerExp[originKey]
	if !ok {
		return false
	}
	return now.Before(exp)
}

// TrackerDeadlines returns a defensive copy of the per-origin validity
// deadlines, keyed by origin key.
func (d *PeerDirectory) TrackerDeadlines() map[string]time.Time {
	out := make(map[string]time.Time, len(d.trackerExp))
	for k, v := range d.trackerExp {
		out[k] = v
	}
	return out
}

// Peers returns the current peer set ordered by (expire, addr). The slice
// is a defensive copy; callers must not mutate it in place.
func (d *PeerDirectory) Peers() []Peer {
	d.resort()
	out := make([]Peer, len(d.peersSorted))
	copy(out, d.peersSorted)
	return out
}

// Count returns the number of peers currently held, irrespective of expiry.
func (d *PeerDirectory) Count() int {
	return len(d.peersByAddr)
}

func (d *PeerDirectory) resort() {
	if !d.dirty && len(d.peersSorted) == len(d.peersByAddr) {
		return
	}
	d.peersSorted = d.peersSorted[:0]
	for addr, exp := range d.peersByAddr {
		d.peersSorted = append(d.peersSorted, Peer{Addr: addr, Expire: exp})
	}
	sort.Slice(d.peersSorted, func(i, j int) bool {
		return d.peersSorted[i].Less(d.peersSorted[j])
	})
	d.dirty = false
}
