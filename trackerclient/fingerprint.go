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

// Package trackerclient announces to origin BitTorrent trackers and parses
// their bencoded replies.
package trackerclient

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strings"
)

// qbVersions and qbVersionUAs are drawn from real qBittorrent releases so
// that an origin tracker sees a plausible, popular client rather than an
// obviously synthetic one.
var qbVersions = []string{
	"-qB5120-", "-qB5110-", "-qB5100-", "-qB5050-",
	"-qB5040-", "-qB5030-", "-qB5020-", "-qB5010-",
}

var qbVersionUAs = []string{
	"qBittorrent/5.1.2",
	"qBittorrent/5.1.1",
	"qBittorrent/5.1.0",
	"qBittorrent/5.0.5",
	"qBittorrent/5.0.4",
	"qBittorrent/5.0.3",
	"qBittorrent/5.0.2",
	"qBittorrent/5.0.1",
}

const peerIDChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
const keyChars = "0123456789ABCDEF"

// newFingerprintRNG returns a PRNG seeded deterministically from value, so
// that every draw derived from the same tracker URL is reproducible across
// process restarts.
func newFingerprintRNG(value string) *rand.Rand {
	sum := sha256.Sum256([]byte(value))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed))
}

// fingerprint is the set of fake client identity values sent on every
// announce to a given tracker URL.
type fingerprint struct {
	userAgent string
	peerID    string
	port      uint16
	key       string
}

// newFingerprint derives a stable fingerprint for trackerURL. Each field is
// drawn from an independently-seeded RNG so that adding or removing a draw
// for one field never perturbs another field's value.
func newFingerprint(trackerURL string) fingerprint {
	return fingerprint{
		userAgent: randomUserAgent(trackerURL),
		peerID:    randomPeerID(trackerURL),
		port:      randomPort(trackerURL),
		key:       randomKey(trackerURL),
	}
}

func randomUserAgent(value string) string {
	rng := newFingerprintRNG(value)
	return qbVersionUAs[rng.Intn(len(qbVersionUAs))]
}

func randomPeerID(value string) string {
	rng := newFingerprintRNG(value)
	var b strings.Builder
	b.WriteString(qbVersions[rng.Intn(len(qbVersions))])
	for i := 0; i < 12; i++ {
		b.WriteByte(peerIDChars[rng.Intn(len(peerIDChars))])
	}
	return b.String()
}

func randomPort(value string) uint16 {
	rng := newFingerprintRNG(value)
	return uint16(1024 + rng.Intn(65536-1024))
}

func randomKey(value string) string {
	rng := newFingerprintRNG(value)
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteByte(keyChars[rng.Intn(len(keyChars))])
	}
	return b.String()
}
