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

// Package admission bounds the number of concurrent requests allowed to
// reach origin trackers, independent of how many fetches are in flight
// locally. Without this bound, a burst of cache misses for distinct
// info-hashes could open an unbounded number of connections to a tracker
// that itself rate-limits or rotates a small pool of source IPs.
package admission

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Config controls the admission gate's capacity and acquisition deadline.
type Config struct {
	Permits int           `yaml:"permits"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Permits <= 0 {
		c.Permits = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Gate bounds concurrent access to a shared resource via a counting
// semaphore with a bounded acquisition wait.
type Gate struct {
	config   Config
	sem      *semaphore.Weighted
	inFlight int64
}

// New returns a Gate configured per config, applying defaults for any
// unset field (10 permits, 30s acquisition timeout).
func New(config Config) *Gate {
	config.applyDefaults()
	return &Gate{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.Permits)),
	}
}

// Permit is a single acquired slot. Release must be called exactly once.
type Permit struct {
	g *Gate
}

// Release returns the permit to the gate.
func (p *Permit) Release() {
	atomic.AddInt64(&p.g.inFlight, -1)
	p.g.sem.Release(1)
}

// Acquire blocks until a permit is available or the gate's configured
// timeout elapses, whichever comes first. Returns false if the timeout
// elapsed before a permit was granted.
func (g *Gate) Acquire(ctx context.Context) (*Permit, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	atomic.AddInt64(&g.inFlight, 1)
	return &Permit{g: g}, true
}

// InFlight returns the number of permits currently held, for gauge
// reporting.
func (g *Gate) InFlight() int64 {
	return atomic.LoadInt64(&g.inFlight)
}
