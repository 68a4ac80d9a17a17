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

// Package fetcher implements the double-checked, single-flight-per-info-hash
// orchestration that ties the lock registry, cache store, admission gate,
// and upstream tracker client together into one fetch.
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"

	"github.com/uber/kraken/admission"
	"github.com/uber/kraken/cache"
	"github.com/uber/kraken/core"
	"github.com/uber/kraken/lockregistry"
	"github.com/uber/kraken/utils/log"
)

// Config controls fetch-wide timeouts independent of the admission gate's
// own acquisition timeout.
type Config struct {
	OriginTimeout time.Duration `yaml:"origin_timeout"`
}

func (c *Config) applyDefaults() {
	if c.OriginTimeout <= 0 {
		c.OriginTimeout = 20 * time.Second
	}
}

// TrackerClient announces to an upstream tracker. Satisfied by
// *trackerclient.Client; declared here to avoid a dependency cycle and to
// let tests supply a fake.
type TrackerClient interface {
	Announce(trackerURL string, infoHash core.InfoHash, size int64) (*core.AnnounceResponse, error)
}

// Fetcher orchestrates the double-checked read-then-write cache refresh
// flow: consult the cache under a read lock, and only take the write lock
// (and only then hit origin) if the cached view is stale for the requested
// origin.
type Fetcher struct {
	config Config
	locks  *lockregistry.Registry
	store  cache.Store
	gate   *admission.Gate
	client TrackerClient
	clk    clock.Clock
	stats  tally.Scope
}

// New returns a Fetcher wired to the given collaborators. stats is tagged
// with module "fetcher" and scoped to counters fetch.hit/fetch.refresh/
// fetch.error and timers fetch.latency/origin.latency.
func New(
	config Config,
	locks *lockregistry.Registry,
	store cache.Store,
	gate *admission.Gate,
	client TrackerClient,
	stats tally.Scope,
) *Fetcher {
	config.applyDefaults()
	return &Fetcher{
		config: config,
		locks:  locks,
		store:  store,
		gate:   gate,
		client: client,
		clk:    clock.New(),
		stats:  stats.Tagged(map[string]string{"module": "fetcher"}),
	}
}

// SetClock overrides the fetcher's clock, for deterministic tests.
func (f *Fetcher) SetClock(clk clock.Clock) {
	f.clk = clk
}

// Fetch returns a PeerDirectory for infoHash that is guaranteed valid
// against trackerURL's origin at the instant of return, refreshing from
// origin if the cached view is absent or stale.
//
// declaredSize may be nil only when a prior directory already carries a
// size; ttl is extended by the origin's min_interval when that is larger.
func (f *Fetcher) Fetch(
	ctx context.Context,
	trackerURL string,
	infoHash core.InfoHash,
	declaredSize *int64,
	ttl time.Duration,
) (*core.PeerDirectory, error) {
	start := f.clk.Now()
	d, outcome, err := f.fetch(ctx, trackerURL, infoHash, declaredSize, ttl)
	latency := f.clk.Now().Sub(start)

	f.stats.Timer("fetch.latency").Record(latency)
	originKey, _ := core.OriginKey(trackerURL)
	entry := log.With(
		"info_hash", infoHash.Hex(),
		"origin_key", originKey,
		"outcome", outcome,
		"latency", latency,
	)
	if err != nil {
		kind := "unknown"
		var ferr *core.FetchError
		if errors.As(err, &ferr) {
			kind = ferr.Kind.String()
		}
		f.stats.Tagged(map[string]string{"kind": kind}).Counter("fetch.error").Inc(1)
		entry.Errorf("fetch failed: %s", err)
		return nil, err
	}
	f.stats.Counter("fetch." + outcome).Inc(1)
	entry.Info("fetch complete")
	return d, nil
}

// fetch performs the actual double-checked lookup, returning an outcome of
// "hit" (served from cache, no origin call) or "refresh" (origin was
// consulted) alongside any error.
func (f *Fetcher) fetch(
	ctx context.Context,
	trackerURL string,
	infoHash core.InfoHash,
	declaredSize *int64,
	ttl time.Duration,
) (*core.PeerDirectory, string, error) {
	key := infoHash.Key()
	originKey, err := core.OriginKey(trackerURL)
	if err != nil {
		return nil, "error", core.NewFetchError(core.MalformedTrackerUrl, "derive origin key", err)
	}

	if d, err := f.readPhase(key, originKey, infoHash); err != nil {
		return nil, "error", err
	} else if d != nil {
		return d, "hit", nil
	}

	d, err := f.writePhase(ctx, key, originKey, trackerURL, infoHash, declaredSize, ttl)
	if err != nil {
		return nil, "error", err
	}
	return d, "refresh", nil
}

// readPhase loads the directory under a read lock and returns it if it is
// already fresh for originKey. A nil, nil result means the caller must
// proceed to the write phase.
func (f *Fetcher) readPhase(key, originKey string, infoHash core.InfoHash) (*core.PeerDirectory, error) {
	guard := f.locks.AcquireRead(key)
	d, err := f.store.Load(infoHash)
	guard.Release()
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "load directory", err)
	}
	if d != nil && d.IsValidFor(originKey, f.clk.Now()) {
		return d, nil
	}
	return nil, nil
}

func (f *Fetcher) writePhase(
	ctx context.Context,
	key, originKey, trackerURL string,
	infoHash core.InfoHash,
	declaredSize *int64,
	ttl time.Duration,
) (*core.PeerDirectory, error) {
	guard := f.locks.AcquireWrite(key)
	defer guard.Release()

	d, err := f.store.Load(infoHash)
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "reload directory", err)
	}
	if d != nil && d.IsValidFor(originKey, f.clk.Now()) {
		return d, nil
	}

	size, err := resolveSize(d, declaredSize)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = core.NewPeerDirectory(size)
	}

	permit, ok := f.gate.Acquire(ctx)
	if !ok {
		return nil, core.NewFetchError(core.AdmissionTimeout, "acquire upstream admission permit", nil)
	}
	defer permit.Release()

	originCtx, cancel := context.WithTimeout(ctx, f.config.OriginTimeout)
	defer cancel()
	originStart := f.clk.Now()
	ar, err := f.announce(originCtx, trackerURL, infoHash, size)
	f.stats.Timer("origin.latency").Record(f.clk.Now().Sub(originStart))
	if err != nil {
		return nil, err
	}

	if err := f.merge(d, ar, originKey, size, ttl); err != nil {
		return nil, err
	}

	if err := f.store.Store(infoHash, d); err != nil {
		return nil, core.NewFetchError(core.CachePersistFailure, "persist directory", err)
	}
	return d, nil
}

// announce issues the upstream request, mapping a context deadline that
// fired during the call to OriginTimeout rather than whatever transport
// error the client happened to surface.
func (f *Fetcher) announce(
	ctx context.Context,
	trackerURL string,
	infoHash core.InfoHash,
	size int64,
) (*core.AnnounceResponse, error) {
	type result struct {
		ar  *core.AnnounceResponse
		err error
	}
	done := make(chan result, 1)
	go func() {
		ar, err := f.client.Announce(trackerURL, infoHash, size)
		done <- result{ar, err}
	}()

	select {
	case <-ctx.Done():
		return nil, core.NewFetchError(core.OriginTimeout, "announce request", ctx.Err())
	case r := <-done:
		return r.ar, r.err
	}
}

// merge folds an origin response into d: it evicts peers that have expired
// locally, then upserts every peer in the reply with the new expiry (an
// address that had aged out is added back if the origin returns it). A
// structurally invalid compact peers blob is an
// OriginProtocol error, not a silent truncation: d is left untouched so a
// malformed origin reply never gets persisted as a freshly-valid directory.
func (f *Fetcher) merge(d *core.PeerDirectory, ar *core.AnnounceResponse, originKey string, size int64, ttl time.Duration) error {
	now := f.clk.Now()

	effectiveTTL := ttl
	if minTTL := time.Duration(ar.MinInterval) * time.Second; minTTL > effectiveTTL {
		effectiveTTL = minTTL
	}
	expire := now.Add(effectiveTTL)

	peers, err := core.DecodePeers(ar.Peers, expire)
	if err != nil {
		return core.NewFetchError(core.OriginProtocol, "decode compact peers", err)
	}
	peers6, err := core.DecodePeers6(ar.Peers6, expire)
	if err != nil {
		return core.NewFetchError(core.OriginProtocol, "decode compact peers6", err)
	}

	d.Size = size
	d.SetTrackerValidity(originKey, now.Add(effectiveTTL))
	d.EvictExpired(now)

	for _, p := range peers {
		d.Upsert(p.Addr, p.Expire)
	}
	for _, p := range peers6 {
		d.Upsert(p.Addr, p.Expire)
	}
	return nil
}

// resolveSize returns declaredSize if present, else adopts the size of an
// already-cached directory. Fails with MissingSize if neither is available.
func resolveSize(cached *core.PeerDirectory, declaredSize *int64) (int64, error) {
	if declaredSize != nil {
		return *declaredSize, nil
	}
	if cached != nil {
		return cached.Size, nil
	}
	return 0, core.NewFetchError(core.MissingSize, "no declared size and no prior directory", nil)
}

