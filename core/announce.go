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
	"fmt"
	"time"
)

// AnnounceResponse is the decoded shape of an upstream tracker's bencoded
// announce reply. Peers and Peers6 hold the raw compact
// binary blobs; use DecodePeers/DecodePeers6 to expand them.
type AnnounceResponse struct {
	FailureReason string `bencode:"failure reason,omitempty"`
	Interval      int    `bencode:"interval"`
	MinInterval   int    `bencode:"min interval,omitempty"`
	Complete      int    `bencode:"complete,omitempty"`
	Incomplete    int    `bencode:"incomplete,omitempty"`
	Peers         string `bencode:"peers,omitempty"`
	Peers6        string `bencode:"peers6,omitempty"`
}

// DecodePeers expands a compact IPv4 peer blob (6 bytes per peer: 4 byte
// big-endian address, 2 byte big-endian port) into Peer values with the
// given expiry.
func DecodePeers(blob string, expire time.Time) ([]Peer, error) {
	b := []byte(blob)
	if len(b)%6 != 0 {
		return nil, fmt.Errorf("compact peers blob length %d not a multiple of 6", len(b))
	}
	out := make([]Peer, 0, len(b)/6)
	for i := 0; i < len(b); i += 6 {
		var addr PeerAddr
		copy(addr.IP[12:], b[i:i+4])
		addr.Port = uint16(b[i+4])<<8 | uint16(b[i+5])
		out = append(out, Peer{Addr: addr, Expire: expire})
	}
	return out, nil
}

// DecodePeers6 expands a compact IPv6 peer blob (18 bytes per peer: 16 byte
// address, 2 byte big-endian port) into Peer values with the given expiry.
func DecodePeers6(blob string, expire time.Time) ([]Peer, error) {
	b := []byte(blob)
	if len(b)%18 != 0 {
		return nil, fmt.Errorf("compact peers6 blob length %d not a multiple of 18", len(b))
	}
	out := make([]Peer, 0, len(b)/18)
	for i := 0; i < len(b); i += 18 {
		var addr PeerAddr
		addr.V6 = true
		copy(addr.IP[:], b[i:i+16])
		addr.Port = uint16(b[i+16])<<8 | uint16(b[i+17])
		out = append(out, Peer{Addr: addr, Expire: expire})
	}
	return out, nil
}

// EncodePeers projects peers into the client-facing compact IPv4 binary
// format. Peers whose address is IPv6 are skipped.
func EncodePeers(peers []Peer) string {
	b := make([]byte, 0, len(peers)*6)
	for _, p := range peers {
		if !p.Addr.IsV4() {
			continue
		}
		ip := p.Addr.IP4()
		b = append(b, ip[0], ip[1], ip[2], ip[3], byte(p.Addr.Port>>8), byte(p.Addr.Port))
	}
	return string(b)
}

// EncodePeers6 projects peers into the client-facing compact IPv6 binary
// format. Peers whose address is IPv4 are skipped.
func EncodePeers6(peers []Peer) string {
	ip16 := make([]byte, 0, len(peers)*18)
	for _, p := range peers {
		if p.Addr.IsV4() {
			continue
		}
		addr := p.Addr.IP16()
		ip16 = append(ip16, addr[:]...)
		ip16 = append(ip16, byte(p.Addr.Port>>8), byte(p.Addr.Port))
	}
	return string(ip16)
}

// ClientAnnounceResponse is the bencoded reply the proxy's own HTTP surface
// returns to BitTorrent clients: a projection of a
// PeerDirectory at a particular instant.
type ClientAnnounceResponse struct {
	Interval int    `bencode:"interval"`
	Peers    string `bencode:"peers"`
	Peers6   string `bencode:"peers6,omitempty"`
}

// Project renders d's current peer set into a ClientAnnounceResponse,
// advertising interval as the announce cadence a client should use next.
func Project(d *PeerDirectory, interval int) ClientAnnounceResponse {
	peers := d.Peers()
	return ClientAnnounceResponse{
		Interval: interval,
		Peers:    EncodePeers(peers),
		Peers6:   EncodePeers6(peers),
	}
}
