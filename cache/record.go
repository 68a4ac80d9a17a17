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

// Package cache persists PeerDirectory state across process restarts and
// implements the PeerDirectory cache keyed by info-hash.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uber/kraken/core"
)

// PeerRecord is the persisted form of a single core.Peer.
type PeerRecord struct {
	Addr   string    `json:"addr"`
	Expire time.Time `json:"expire"`
}

// Record is the textual, stable-field-name persisted form of a
// core.PeerDirectory. Field names are part of the on-disk contract and must
// not be renamed without a migration.
//
// Trackers and PeersAddr round-trip at second precision (time.Time.Unix());
// PeersTime keeps the full-precision Expire. Harmless today since nothing
// schedules eviction sub-second, but the two indices are not bit-identical
// on reload.
type Record struct {
	Size      int64            `json:"size"`
	Trackers  map[string]int64 `json:"trackers"`   // origin key -> validity deadline, unix seconds
	PeersTime []PeerRecord     `json:"peers_time"` // the same peers as PeersAddr, kept for parity with the expiry-ordered index
	PeersAddr map[string]int64 `json:"peers_addr"` // addr string -> expiry, unix seconds
}

// Marshal serializes d into its stable on-disk JSON form.
func Marshal(d *core.PeerDirectory) ([]byte, error) {
	return json.Marshal(toRecord(d))
}

// Unmarshal deserializes b into a new PeerDirectory.
func Unmarshal(b []byte) (*core.PeerDirectory, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %s", err)
	}
	return fromRecord(r)
}

func toRecord(d *core.PeerDirectory) Record {
	peers := d.Peers()
	r := Record{
		Size:      d.Size,
		Trackers:  make(map[string]int64),
		PeersTime: make([]PeerRecord, 0, len(peers)),
		PeersAddr: make(map[string]int64),
	}
	for _, p := range peers {
		addr := p.Addr.String()
		r.PeersTime = append(r.PeersTime, PeerRecord{Addr: addr, Expire: p.Expire})
		r.PeersAddr[addr] = p.Expire.Unix()
	}
	for origin, deadline := range d.TrackerDeadlines() {
		r.Trackers[origin] = deadline.Unix()
	}
	return r
}

func fromRecord(r Record) (*core.PeerDirectory, error) {
	d := core.NewPeerDirectory(r.Size)
	for _, pr := range r.PeersTime {
		addr, err := core.ParsePeerAddr(pr.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse peer addr %q: %s", pr.Addr, err)
		}
		d.Upsert(addr, pr.Expire)
	}
	for origin, deadline := range r.Trackers {
		d.SetTrackerValidity(origin, time.Unix(deadline, 0))
	}
	return d, nil
}
