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
	"encoding/hex"
	"fmt"
	"net/url"
)

// InfoHash is the 20 raw bytes that identify a torrent. The core treats it
// as opaque beyond its length.
type InfoHash [20]byte

// NewInfoHash converts raw bytes into an InfoHash. Fails unless b is exactly
// 20 bytes long.
func NewInfoHash(b []byte) (InfoHash, error) {
	var h InfoHash
	if len(b) != 20 {
		return h, fmt.Errorf("invalid info_hash: expected 20 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// NewInfoHashFromHex converts a hexadecimal string into an InfoHash.
func NewInfoHashFromHex(s string) (InfoHash, error) {
	if len(s) != 40 {
		return InfoHash{}, fmt.Errorf("invalid hash: expected 40 characters, got %d", len(s))
	}
	var h InfoHash
	n, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return InfoHash{}, fmt.Errorf("invalid hex: %s", err)
	}
	if n != 20 {
		return InfoHash{}, fmt.Errorf("invariant violation: expected 20 bytes, got %d", n)
	}
	return h, nil
}

// Bytes returns the raw 20 bytes of h.
func (h InfoHash) Bytes() []byte {
	return h[:]
}

// Hex returns the hexadecimal rendering of h, used for logging.
func (h InfoHash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h InfoHash) String() string {
	return h.Hex()
}

// Key returns the percent-encoded cache key for h, used both as the Cache
// Store filename and the Lock Registry key.
func (h InfoHash) Key() string {
	return percentEncode(string(h[:]))
}

// PercentEncode escapes every non-alphanumeric byte of s the same way the
// upstream announce request's raw info_hash query parameter is encoded.
// Exported for use by the upstream tracker client when it must embed raw
// info_hash bytes into a URL without going through a lossy generic query
// encoder.
func PercentEncode(s string) string {
	return percentEncode(s)
}

// percentEncode escapes every non-alphanumeric byte of s, matching the
// upstream announce request's raw info_hash encoding.
func percentEncode(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlphaNumeric(c) {
			out = append(out, c)
		} else {
			out = append(out, '%', upperHex(c>>4), upperHex(c&0xf))
		}
	}
	return string(out)
}

func isAlphaNumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func upperHex(nibble byte) byte {
	if nibble < 10 {
		return '0' + nibble
	}
	return 'A' + (nibble - 10)
}

// OriginKey returns the percent-encoded host component of a tracker URL,
// used to namespace per-origin TTLs within a PeerDirectory.
func OriginKey(trackerURL string) (string, error) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return "", fmt.Errorf("parse tracker url: %s", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("tracker url %q has no host", trackerURL)
	}
	return percentEncode(u.Hostname()), nil
}
