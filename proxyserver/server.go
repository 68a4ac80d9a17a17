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

// Package proxyserver exposes the chi-routed HTTP surface that BitTorrent
// clients and uploaders talk to: a caching announce endpoint, a metafile
// upload/rewrite endpoint, a health check, and the operator-facing static
// UI.
package proxyserver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/uber/kraken/core"
	"github.com/uber/kraken/fetcher"
	"github.com/uber/kraken/metafile"
	"github.com/uber/kraken/utils/handler"
	"github.com/uber/kraken/utils/httputil"
	"github.com/uber/kraken/utils/log"

	bencode "github.com/jackpal/bencode-go"
	"github.com/go-chi/chi"
	"github.com/uber-go/tally"

	"github.com/uber/kraken/lib/middleware"
)

const _maxMetafileSize = 10 << 20 // 10MB

// Server is the proxy's HTTP surface.
type Server struct {
	config  Config
	fetcher *fetcher.Fetcher
	stats   tally.Scope
}

// New returns a Server wired to f, applying config defaults for any unset
// field.
func New(config Config, f *fetcher.Fetcher, stats tally.Scope) *Server {
	config.applyDefaults()
	return &Server{
		config:  config,
		fetcher: f,
		stats:   stats.Tagged(map[string]string{"module": "proxyserver"}),
	}
}

// Handler returns an http.Handler serving every route this server defines.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.StatusCounter(s.stats))
	r.Use(middleware.LatencyTimer(s.stats))

	r.Get("/health", handler.Wrap(s.healthHandler))
	r.Get("/announce", handler.Wrap(s.announceHandler))
	r.Post("/upload", handler.Wrap(s.uploadHandler))

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}

	return r
}

// ListenAndServe blocks serving s's handler on config.Addr.
func (s *Server) ListenAndServe() error {
	log.Infof("Starting proxy server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) error {
	io.WriteString(w, "OK")
	return nil
}

// announceHandler serves a client's announce request from the cache,
// refreshing from the origin tracker embedded in the request's "origin"
// query parameter when necessary.
func (s *Server) announceHandler(w http.ResponseWriter, r *http.Request) error {
	trackerURL, err := metafile.RecoverOriginTracker(r.URL.Query())
	if err != nil {
		return handler.Errorf("recover origin tracker: %s", err).Status(http.StatusBadRequest)
	}

	rawHash := httputil.GetQueryArg(r, "info_hash", "")
	if rawHash == "" {
		return handler.Errorf("missing info_hash").Status(http.StatusBadRequest)
	}
	infoHash, err := core.NewInfoHash([]byte(rawHash))
	if err != nil {
		return handler.Errorf("parse info_hash: %s", err).Status(http.StatusBadRequest)
	}

	var declaredSize *int64
	if raw := httputil.GetQueryArg(r, "left", ""); raw != "" {
		left, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return handler.Errorf("parse left: %s", err).Status(http.StatusBadRequest)
		}
		declaredSize = &left
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.AnnounceTimeout)
	defer cancel()

	d, err := s.fetcher.Fetch(ctx, trackerURL, infoHash, declaredSize, s.config.DefaultTTL)
	if err != nil {
		// Fetch already logs and counts the outcome; this layer only needs
		// to translate the failure into an HTTP status.
		return handler.Errorf("fetch: %s", err).Status(http.StatusBadGateway)
	}

	resp := core.Project(d, int(s.config.DefaultTTL.Seconds()))
	w.Header().Set("Content-Type", "text/plain")
	return bencode.Marshal(w, resp)
}

// uploadHandler rewrites an uploaded .torrent metafile's tracker URLs to
// point at this proxy and returns the rewritten metafile.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, _maxMetafileSize+1))
	if err != nil {
		return handler.Errorf("read body: %s", err)
	}
	if len(body) > _maxMetafileSize {
		return handler.Errorf("metafile exceeds maximum size").Status(http.StatusRequestEntityTooLarge)
	}

	rewritten, err := metafile.RewriteTrackers(body, s.config.ProxyBase)
	if err != nil {
		return handler.Errorf("rewrite trackers: %s", err).Status(http.StatusBadRequest)
	}

	w.Header().Set("Content-Type", "application/x-bittorrent")
	_, err = io.Copy(w, bytes.NewReader(rewritten))
	return err
}
