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
package lockregistry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryReadersDoNotBlockEachOther(t *testing.T) {
	r := New()

	g1 := r.AcquireRead("h1")
	done := make(chan struct{})
	go func() {
		g2 := r.AcquireRead("h1")
		g2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked on first reader")
	}
	g1.Release()
}

func TestRegistryWriterExcludesReaders(t *testing.T) {
	r := New()

	w := r.AcquireWrite("h1")
	acquired := make(chan struct{})
	go func() {
		g := r.AcquireRead("h1")
		close(acquired)
		g.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired lock while writer held it")
	case <-time.After(50 * time.Millisecond):
	}
	w.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never unblocked after writer release")
	}
}

func TestRegistryEntryRemovedAtZeroRefcount(t *testing.T) {
	require := require.New(t)

	r := New()
	g := r.AcquireWrite("h1")
	require.Len(r.entries, 1)
	g.Release()
	require.Len(r.entries, 0)
}

func TestRegistryIndependentKeysDoNotContend(t *testing.T) {
	r := New()

	w1 := r.AcquireWrite("h1")
	done := make(chan struct{})
	go func() {
		w2 := r.AcquireWrite("h2")
		w2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated key contended on unrelated lock")
	}
	w1.Release()
}

func TestRegistryConcurrentAcquireReleaseIsRaceFree(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := r.AcquireWrite("shared")
			w.Release()
		}()
	}
	wg.Wait()
	require.Len(t, r.entries, 0)
}
