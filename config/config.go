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

// Package config defines the aggregate configuration struct for the proxy
// server binary, pulling together each component's own Config type.
package config

import (
	"github.com/uber/kraken/admission"
	"github.com/uber/kraken/cache"
	"github.com/uber/kraken/fetcher"
	"github.com/uber/kraken/metrics"
	"github.com/uber/kraken/proxyserver"
	"github.com/uber/kraken/trackerclient"

	"go.uber.org/zap"
)

// Config is the top-level configuration for the announce caching proxy.
type Config struct {
	Verbose    bool                `yaml:"verbose"`
	ZapLogging zap.Config          `yaml:"zap"`
	Metrics    metrics.Config      `yaml:"metrics"`
	Server     proxyserver.Config  `yaml:"server"`
	Cache      cache.Config        `yaml:"cache"`
	Admission  admission.Config    `yaml:"admission"`
	Tracker    trackerclient.Config `yaml:"tracker"`
	Fetcher    fetcher.Config      `yaml:"fetcher"`
}
