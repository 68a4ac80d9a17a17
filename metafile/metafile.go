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

// Package metafile rewrites the tracker URLs embedded in a bencoded
// .torrent metafile to point at this proxy, while preserving the info
// sub-dictionary byte-for-byte so the torrent's info-hash (the SHA-1 of
// that sub-dictionary) never changes under rewriting.
package metafile

import (
	"bytes"
	"fmt"
	"net/url"

	bencode "github.com/jackpal/bencode-go"
)

const proxyTrackerParam = "origin"

// RewriteTrackers parses metafile as a bencoded dictionary and replaces its
// "announce" value, and every entry of its "announce-list" if present, with
// a URL pointing at proxyBase that carries the original tracker URL as the
// "origin" query parameter, so the Fetch Coordinator can recover it per
// announce. Every other top-level key, including "info", is copied through
// unmodified.
func RewriteTrackers(metafile []byte, proxyBase string) ([]byte, error) {
	entries, err := parseTopLevelDict(metafile)
	if err != nil {
		return nil, fmt.Errorf("parse metafile: %s", err)
	}

	for i, e := range entries {
		switch e.key {
		case "announce":
			rewritten, err := rewriteSingleTracker(e.valueRaw, proxyBase)
			if err != nil {
				return nil, fmt.Errorf("rewrite announce: %s", err)
			}
			entries[i].valueRaw = rewritten
		case "announce-list":
			rewritten, err := rewriteTrackerList(e.valueRaw, proxyBase)
			if err != nil {
				return nil, fmt.Errorf("rewrite announce-list: %s", err)
			}
			entries[i].valueRaw = rewritten
		}
	}

	var out bytes.Buffer
	out.WriteByte('d')
	for _, e := range entries {
		out.Write(e.keyRaw)
		out.Write(e.valueRaw)
	}
	out.WriteByte('e')
	return out.Bytes(), nil
}

func rewriteSingleTracker(raw []byte, proxyBase string) ([]byte, error) {
	var tracker string
	if err := bencode.Unmarshal(bytes.NewReader(raw), &tracker); err != nil {
		return nil, fmt.Errorf("decode tracker url: %s", err)
	}
	rewritten, err := buildProxyTrackerURL(proxyBase, tracker)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, rewritten); err != nil {
		return nil, fmt.Errorf("encode rewritten tracker url: %s", err)
	}
	return buf.Bytes(), nil
}

func rewriteTrackerList(raw []byte, proxyBase string) ([]byte, error) {
	var tiers [][]string
	if err := bencode.Unmarshal(bytes.NewReader(raw), &tiers); err != nil {
		return nil, fmt.Errorf("decode announce-list: %s", err)
	}
	for i, tier := range tiers {
		for j, tracker := range tier {
			rewritten, err := buildProxyTrackerURL(proxyBase, tracker)
			if err != nil {
				return nil, err
			}
			tiers[i][j] = rewritten
		}
	}
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, tiers); err != nil {
		return nil, fmt.Errorf("encode rewritten announce-list: %s", err)
	}
	return buf.Bytes(), nil
}

// buildProxyTrackerURL returns proxyBase with trackerURL attached as an
// "origin" query parameter, so the HTTP surface can recover the real
// upstream tracker from an incoming client announce request.
func buildProxyTrackerURL(proxyBase, trackerURL string) (string, error) {
	u, err := url.Parse(proxyBase)
	if err != nil {
		return "", fmt.Errorf("parse proxy base %q: %s", proxyBase, err)
	}
	q := u.Query()
	q.Set(proxyTrackerParam, trackerURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RecoverOriginTracker extracts the original upstream tracker URL that
// RewriteTrackers embedded in a proxied announce URL's query parameters.
func RecoverOriginTracker(values url.Values) (string, error) {
	tracker := values.Get(proxyTrackerParam)
	if tracker == "" {
		return "", fmt.Errorf("missing %q query parameter", proxyTrackerParam)
	}
	return tracker, nil
}
