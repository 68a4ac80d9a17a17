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
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uber/kraken/admission"
	"github.com/uber/kraken/cache"
	"github.com/uber/kraken/config"
	"github.com/uber/kraken/fetcher"
	"github.com/uber/kraken/lockregistry"
	"github.com/uber/kraken/metrics"
	"github.com/uber/kraken/proxyserver"
	"github.com/uber/kraken/trackerclient"
	"github.com/uber/kraken/utils/configutil"
	"github.com/uber/kraken/utils/log"

	"github.com/uber-go/tally"
)

func main() {
	configFile := flag.String("config", "", "configuration file path")
	cluster := flag.String("cluster", "", "cluster name, used to tag metrics")
	flag.Parse()

	var cfg config.Config
	if err := configutil.Load(*configFile, &cfg); err != nil {
		panic(err)
	}

	zlog := log.ConfigureLogger(cfg.ZapLogging)
	defer zlog.Sync()

	stats, closer, err := metrics.New(cfg.Metrics, *cluster)
	if err != nil {
		log.Fatalf("Failed to init metrics: %s", err)
	}
	defer closer.Close()

	store, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to init cache store: %s", err)
	}
	defer store.Close()

	locks := lockregistry.New()
	gate := admission.New(cfg.Admission)
	client := trackerclient.New(cfg.Tracker)
	f := fetcher.New(cfg.Fetcher, locks, store, gate, client, stats)

	go emitInFlight(stats, gate)

	server := proxyserver.New(cfg.Server, f, stats)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Proxy server error: %s", err)
		}
	}()

	<-ch
	log.Info("Shutdown complete")
}

// emitInFlight periodically reports the admission gate's occupancy as a
// gauge, since tally gauges must be polled rather than pushed on change.
func emitInFlight(stats tally.Scope, gate *admission.Gate) {
	g := stats.Gauge("admission.in_flight")
	for {
		time.Sleep(5 * time.Second)
		g.Update(float64(gate.InFlight()))
	}
}
