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

// Command btcacheload simulates BitTorrent clients repeatedly announcing
// against a caching proxy, to load-test the Fetch Coordinator's cache-hit
// path and its origin-refresh path.
package main

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/uber/kraken/core"

	"github.com/alecthomas/kingpin"
	"github.com/montanaflynn/stats"
)

type result struct {
	latency time.Duration
	err     error
}

func simulateAnnounce(proxyAddr, origin string, hashes []core.InfoHash, interval time.Duration, results chan<- result) {
	i := 0
	for {
		h := hashes[i%len(hashes)]
		i++

		q := url.Values{}
		q.Set("info_hash", string(h.Bytes()))
		q.Set("left", "0")
		q.Set("origin", origin)

		start := time.Now()
		resp, err := http.Get(fmt.Sprintf("http://%s/announce?%s", proxyAddr, q.Encode()))
		results <- result{time.Since(start), err}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(interval)
	}
}

func main() {
	app := kingpin.New("btcacheload", "Announce caching proxy load testing tool")

	proxyAddr := app.Flag("proxy", "Proxy address, e.g. localhost:8990").Required().String()
	origin := app.Flag("origin", "Upstream tracker URL to announce through the proxy").Required().String()
	numClients := app.Flag("num_clients", "Number of simulated announcing clients").Short('n').Required().Int()
	numTorrents := app.Flag("num_torrents", "Number of distinct info-hashes to announce for").Short('t').Default("1").Int()
	interval := app.Flag("interval", "Per-client announce interval").Short('i').Required().Duration()
	sample := app.Flag("sample", "Sample duration before reporting percentiles and exiting").Short('s').Duration()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	var hashes []core.InfoHash
	for i := 0; i < *numTorrents; i++ {
		hashes = append(hashes, core.InfoHashFixture())
	}

	results := make(chan result)
	for i := 0; i < *numClients; i++ {
		go simulateAnnounce(*proxyAddr, *origin, hashes, *interval, results)
		time.Sleep(*interval / time.Duration(*numClients))
	}

	var stop <-chan time.Time
	if *sample > 0 {
		stop = time.After(*sample)
	}

	var times stats.Float64Data
	for {
		select {
		case res := <-results:
			if res.err != nil {
				log.Printf("ERROR: %s", res.err)
				continue
			}
			latency := res.latency.Seconds()
			log.Printf("%.3fs", latency)
			if *sample > 0 {
				times = append(times, latency)
			}
		case <-stop:
			p50, _ := stats.Median(times)
			p95, _ := stats.Percentile(times, 95)
			p99, _ := stats.Percentile(times, 99)
			log.Printf("p50: %.3f", p50)
			log.Printf("p95: %.3f", p95)
			log.Printf("p99: %.3f", p99)
			return
		}
	}
}
