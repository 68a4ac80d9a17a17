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

import "fmt"

// ErrorKind classifies why a fetch failed. Every kind is fatal to the fetch
// that produced it; none are retried internally.
type ErrorKind int

const (
	// MalformedTrackerUrl means the tracker URL supplied to the Fetch
	// Coordinator could not be parsed or had no host.
	MalformedTrackerUrl ErrorKind = iota
	// MissingSize means neither a declared size nor a cached size was
	// available for an info-hash never seen before.
	MissingSize
	// CacheLoadFailure means the Cache Store encountered an I/O or
	// deserialization error while loading a record (distinct from the
	// record simply being absent).
	CacheLoadFailure
	// CachePersistFailure means the Cache Store encountered an I/O or
	// serialization error while persisting a record.
	CachePersistFailure
	// AdmissionTimeout means a permit could not be acquired from Upstream
	// Admission within its configured timeout.
	AdmissionTimeout
	// OriginTimeout means the upstream tracker did not respond within the
	// client's request timeout.
	OriginTimeout
	// OriginTransport means a non-timeout transport error occurred talking
	// to the upstream tracker (DNS, connection refused, TLS).
	OriginTransport
	// OriginProtocol means the upstream tracker responded but its body was
	// not valid bencode, or carried a non-empty failure reason.
	OriginProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedTrackerUrl:
		return "MalformedTrackerUrl"
	case MissingSize:
		return "MissingSize"
	case CacheLoadFailure:
		return "CacheLoadFailure"
	case CachePersistFailure:
		return "CachePersistFailure"
	case AdmissionTimeout:
		return "AdmissionTimeout"
	case OriginTimeout:
		return "OriginTimeout"
	case OriginTransport:
		return "OriginTransport"
	case OriginProtocol:
		return "OriginProtocol"
	default:
		return "Unknown"
	}
}

// FetchError wraps an ErrorKind with a causal message. Callers that need to
// branch on the kind should use errors.As with *FetchError and inspect Kind.
type FetchError struct {
	Kind ErrorKind
	msg  string
	err  error
}

// NewFetchError builds a FetchError of the given kind, wrapping cause.
func NewFetchError(kind ErrorKind, msg string, cause error) *FetchError {
	return &FetchError{Kind: kind, msg: msg, err: cause}
}

func (e *FetchError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *FetchError) Unwrap() error {
	return e.err
}
