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
package proxyserver

import "time"

// Config defines the HTTP surface's listening address and request-handling
// defaults.
type Config struct {
	Addr            string        `yaml:"addr"`
	ProxyBase       string        `yaml:"proxy_base"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	AnnounceTimeout time.Duration `yaml:"announce_timeout"`
	StaticDir       string        `yaml:"static_dir"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8990"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Minute
	}
	if c.AnnounceTimeout <= 0 {
		c.AnnounceTimeout = 25 * time.Second
	}
}
