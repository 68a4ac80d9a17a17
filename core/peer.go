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
	"net"
	"strconv"
	"time"
)

// PeerAddr is a comparable (IP, port) pair. net.TCPAddr is not comparable
// with == (it embeds a net.IP slice), so we normalize into this value type
// for use as a map key and for ordering.
type PeerAddr struct {
	IP   [16]byte // IPv4 addresses occupy the last 4 bytes; the first 12 are zero.
	Port uint16
	V6   bool
}

// NewPeerAddr builds a PeerAddr from a net.IP and port. Returns an error if
// ip is not a valid IPv4 or IPv6 address.
func NewPeerAddr(ip net.IP, port uint16) (PeerAddr, error) {
	var a PeerAddr
	if v4 := ip.To4(); v4 != nil {
		copy(a.IP[12:], v4)
		a.Port = port
		return a, nil
	}
	if v6 := ip.To16(); v6 != nil {
		copy(a.IP[:], v6)
		a.Port = port
		a.V6 = true
		return a, nil
	}
	return a, fmt.Errorf("invalid ip address: %v", ip)
}

// IsV4 reports whether a is an IPv4 address.
func (a PeerAddr) IsV4() bool {
	return !a.V6
}

// IP4 returns the 4-byte IPv4 form of a. Only valid when IsV4() is true.
func (a PeerAddr) IP4() [4]byte {
	var b [4]byte
	copy(b[:], a.IP[12:])
	return b
}

// IP16 returns the 16-byte IPv6 form of a.
func (a PeerAddr) IP16() [16]byte {
	return a.IP
}

// netIP returns a's address as a net.IP.
func (a PeerAddr) netIP() net.IP {
	if a.IsV4() {
		ip := a.IP4()
		return net.IPv4(ip[0], ip[1], ip[2], ip[3])
	}
	b := a.IP16()
	return net.IP(b[:])
}

// String renders a as "host:port", suitable for use as a persisted cache
// key or a map key in the on-disk record format.
func (a PeerAddr) String() string {
	return net.JoinHostPort(a.netIP().String(), strconv.Itoa(int(a.Port)))
}

// ParsePeerAddr parses the "host:port" form produced by PeerAddr.String.
func ParsePeerAddr(s string) (PeerAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return PeerAddr{}, fmt.Errorf("split host port: %s", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return PeerAddr{}, fmt.Errorf("parse port: %s", err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return PeerAddr{}, fmt.Errorf("invalid ip: %s", host)
	}
	return NewPeerAddr(ip, uint16(port))
}

// Less defines the total order on PeerAddr used to break expiry ties in the
// by-expiry index.
func (a PeerAddr) Less(b PeerAddr) bool {
	if a.V6 != b.V6 {
		return !a.V6 // IPv4 sorts before IPv6, arbitrarily but stably.
	}
	for i := range a.IP {
		if a.IP[i] != b.IP[i] {
			return a.IP[i] < b.IP[i]
		}
	}
	return a.Port < b.Port
}

// Peer is a (network address, expiry instant) pair.
type Peer struct {
	Addr   PeerAddr
	Expire time.Time
}

// Less orders peers by (expire, addr), matching the Rust source's derived
// Ord on (SystemTime, SocketAddr).
func (p Peer) Less(o Peer) bool {
	if !p.Expire.Equal(o.Expire) {
		return p.Expire.Before(o.Expire)
	}
	return p.Addr.Less(o.Addr)
}
