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
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	bencode "github.com/jackpal/bencode-go"

	"github.com/uber/kraken/core"
	"github.com/uber/kraken/utils/httputil"
)

// Config controls the upstream tracker client's request timeout.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}

// Client announces to origin BitTorrent trackers.
type Client struct {
	config Config
}

// New returns a Client configured per config.
func New(config Config) *Client {
	config.applyDefaults()
	return &Client{config: config}
}

// Announce sends a GET announce request to trackerURL for infoHash,
// declaring size bytes remaining, and parses the bencoded reply.
func (c *Client) Announce(trackerURL string, infoHash core.InfoHash, size int64) (*core.AnnounceResponse, error) {
	fp := newFingerprint(trackerURL)

	reqURL, err := buildAnnounceURL(trackerURL, infoHash, size, fp)
	if err != nil {
		return nil, core.NewFetchError(core.MalformedTrackerUrl, "build announce url", err)
	}

	resp, err := httputil.Get(
		reqURL,
		httputil.SendTimeout(c.config.Timeout),
		httputil.SendHeader("User-Agent", fp.userAgent),
		httputil.SendHeader("Connection", "close"),
		httputil.SendProxy(os.Getenv("PROXY")))
	if err != nil {
		if httputil.IsTimeout(err) {
			return nil, core.NewFetchError(core.OriginTimeout, "announce request", err)
		}
		return nil, core.NewFetchError(core.OriginTransport, "announce request", err)
	}
	defer resp.Body.Close()

	var ar core.AnnounceResponse
	if err := bencode.Unmarshal(resp.Body, &ar); err != nil {
		return nil, core.NewFetchError(core.OriginProtocol, "decode bencoded response", err)
	}
	if ar.FailureReason != "" {
		return nil, core.NewFetchError(core.OriginProtocol, "tracker failure: "+ar.FailureReason, nil)
	}
	return &ar, nil
}

// buildAnnounceURL manually appends the percent-encoded raw info_hash to
// trackerURL, then appends the remaining standard announce parameters
// through the normal URL query encoder. info_hash must never pass through
// that encoder directly: it is raw bytes, not a UTF-8 string, and a
// generic encoder would mangle it.
func buildAnnounceURL(trackerURL string, infoHash core.InfoHash, size int64, fp fingerprint) (string, error) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return "", fmt.Errorf("parse tracker url: %s", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("tracker url %q has no host", trackerURL)
	}

	encodedHash := core.PercentEncode(string(infoHash.Bytes()))

	var base string
	switch {
	case u.RawQuery != "":
		base = fmt.Sprintf("%s&info_hash=%s", trackerURL, encodedHash)
	case u.Path != "/" && u.Path != "" || strings.HasSuffix(trackerURL, "/"):
		base = fmt.Sprintf("%s?info_hash=%s", trackerURL, encodedHash)
	default:
		base = fmt.Sprintf("%s/?info_hash=%s", trackerURL, encodedHash)
	}

	q := url.Values{}
	q.Set("peer_id", fp.peerID)
	q.Set("port", strconv.Itoa(int(fp.port)))
	q.Set("uploaded", "0")
	q.Set("downloaded", "0")
	q.Set("left", strconv.FormatInt(size, 10))
	q.Set("corrupt", "0")
	q.Set("key", fp.key)
	q.Set("event", "started")
	q.Set("numwant", "200")
	q.Set("compact", "1")
	q.Set("no_peer_id", "1")
	q.Set("supportcrypto", "1")
	q.Set("redundant", "0")

	return base + "&" + q.Encode(), nil
}
