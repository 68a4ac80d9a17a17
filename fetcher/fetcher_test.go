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
package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/kraken/admission"
	"github.com/uber/kraken/cache"
	"github.com/uber/kraken/core"
	"github.com/uber/kraken/lockregistry"
)

// memStore is an in-memory cache.Store for tests.
type memStore struct {
	mu   sync.Mutex
	data map[core.InfoHash]*core.PeerDirectory
}

func newMemStore() *memStore {
	return &memStore{data: make(map[core.InfoHash]*core.PeerDirectory)}
}

func (s *memStore) Load(h core.InfoHash) (*core.PeerDirectory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[h], nil
}

func (s *memStore) Store(h core.InfoHash, d *core.PeerDirectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[h] = d
	return nil
}

func (s *memStore) Close() error { return nil }

var _ cache.Store = (*memStore)(nil)

// fakeTrackerClient returns a canned response or error, counting calls.
type fakeTrackerClient struct {
	calls    int32
	response *core.AnnounceResponse
	err      error
	delay    time.Duration
}

func (c *fakeTrackerClient) Announce(trackerURL string, infoHash core.InfoHash, size int64) (*core.AnnounceResponse, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func newFetcher(store cache.Store, client TrackerClient) (*Fetcher, *clock.Mock) {
	clk := clock.NewMock()
	f := New(Config{}, lockregistry.New(), store, admission.New(admission.Config{}), client, tally.NewTestScope("test", nil))
	f.SetClock(clk)
	return f, clk
}

func trackerURL() string { return "https://tracker.example.com/announce" }

func int64Ptr(v int64) *int64 { return &v }

func TestFetchFirstTimeHitsOrigin(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{
		Interval: 1800,
		Peers:    string([]byte{127, 0, 0, 1, 0x1A, 0xE1}),
	}}
	f, _ := newFetcher(newMemStore(), client)

	d, err := f.Fetch(context.Background(), trackerURL(), core.InfoHashFixture(), int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls)
	require.Equal(int64(100), d.Size)
	require.Equal(1, d.Count())
}

func TestFetchReturnsCachedWhenFresh(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	store := newMemStore()
	f, _ := newFetcher(store, client)

	h := core.InfoHashFixture()
	ctx := context.Background()

	_, err := f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls)

	_, err = f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls, "second fetch within TTL must not hit origin again")
}

func TestFetchRefreshesWhenStale(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	store := newMemStore()
	f, mock := newFetcher(store, client)

	h := core.InfoHashFixture()
	ctx := context.Background()

	_, err := f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls)

	mock.Add(31 * time.Minute)

	_, err = f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(2, client.calls)
}

func TestFetchMissingSizeWithoutPriorDirectoryFails(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	f, _ := newFetcher(newMemStore(), client)

	_, err := f.Fetch(context.Background(), trackerURL(), core.InfoHashFixture(), nil, 30*time.Minute)
	require.Error(err)

	fe, ok := err.(*core.FetchError)
	require.True(ok)
	require.Equal(core.MissingSize, fe.Kind)
	require.Zero(client.calls)
}

func TestFetchAdoptsSizeFromPriorDirectoryWhenOmitted(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	store := newMemStore()
	f, mock := newFetcher(store, client)

	h := core.InfoHashFixture()
	ctx := context.Background()

	_, err := f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)

	mock.Add(31 * time.Minute)

	d, err := f.Fetch(ctx, trackerURL(), h, nil, 30*time.Minute)
	require.NoError(err)
	require.Equal(int64(100), d.Size)
}

func TestFetchEffectiveTTLFloorsFromMinInterval(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{
		Interval:    1800,
		MinInterval: 3600,
	}}
	store := newMemStore()
	f, mock := newFetcher(store, client)

	h := core.InfoHashFixture()
	ctx := context.Background()

	_, err := f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 5*time.Minute)
	require.NoError(err)

	// A TTL of 5 minutes would have gone stale by now, but min_interval of
	// 3600s floors the effective TTL to one hour.
	mock.Add(10 * time.Minute)

	_, err = f.Fetch(ctx, trackerURL(), h, int64Ptr(100), 5*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls)
}

func TestFetchOriginErrorPropagates(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{err: core.NewFetchError(core.OriginTransport, "boom", nil)}
	f, _ := newFetcher(newMemStore(), client)

	_, err := f.Fetch(context.Background(), trackerURL(), core.InfoHashFixture(), int64Ptr(100), 30*time.Minute)
	require.Error(err)

	fe, ok := err.(*core.FetchError)
	require.True(ok)
	require.Equal(core.OriginTransport, fe.Kind)
}

func TestFetchAdmissionTimeout(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	gate := admission.New(admission.Config{Permits: 1, Timeout: 10 * time.Millisecond})

	// Hold the single permit so the fetch under test cannot acquire one.
	held, ok := gate.Acquire(context.Background())
	require.True(ok)
	defer held.Release()

	f := New(Config{}, lockregistry.New(), newMemStore(), gate, client, tally.NewTestScope("test", nil))

	_, err := f.Fetch(context.Background(), trackerURL(), core.InfoHashFixture(), int64Ptr(100), 30*time.Minute)
	require.Error(err)

	fe, ok := err.(*core.FetchError)
	require.True(ok)
	require.Equal(core.AdmissionTimeout, fe.Kind)
}

func TestFetchMalformedTrackerURL(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	f, _ := newFetcher(newMemStore(), client)

	_, err := f.Fetch(context.Background(), "/no-host", core.InfoHashFixture(), int64Ptr(100), 30*time.Minute)
	require.Error(err)

	fe, ok := err.(*core.FetchError)
	require.True(ok)
	require.Equal(core.MalformedTrackerUrl, fe.Kind)
}

func TestFetchMalformedPeersBlobSurfacesOriginProtocol(t *testing.T) {
	require := require.New(t)

	// 5 bytes is not a multiple of 6: a structurally invalid compact peers
	// blob, not merely a short one.
	client := &fakeTrackerClient{response: &core.AnnounceResponse{
		Interval: 1800,
		Peers:    string([]byte{127, 0, 0, 1, 0x1A}),
	}}
	store := newMemStore()
	f, _ := newFetcher(store, client)
	h := core.InfoHashFixture()

	_, err := f.Fetch(context.Background(), trackerURL(), h, int64Ptr(100), 30*time.Minute)
	require.Error(err)

	fe, ok := err.(*core.FetchError)
	require.True(ok)
	require.Equal(core.OriginProtocol, fe.Kind)

	d, err := store.Load(h)
	require.NoError(err)
	require.Nil(d, "a malformed origin response must never be persisted as a fresh directory")
}

func TestFetchDistinctOriginsTrackedIndependently(t *testing.T) {
	require := require.New(t)

	client := &fakeTrackerClient{response: &core.AnnounceResponse{Interval: 1800}}
	store := newMemStore()
	f, _ := newFetcher(store, client)

	h := core.InfoHashFixture()
	ctx := context.Background()

	_, err := f.Fetch(ctx, "https://tracker-one.example.com/announce", h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(1, client.calls)

	_, err = f.Fetch(ctx, "https://tracker-two.example.com/announce", h, int64Ptr(100), 30*time.Minute)
	require.NoError(err)
	require.EqualValues(2, client.calls, "a distinct origin must be refreshed even though the directory exists")
}
