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
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/uber/kraken/core"
)

// RedisConfig configures the shared, network-accessible Store backend.
type RedisConfig struct {
	Addr            string        `yaml:"addr"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxActiveConns  int           `yaml:"max_active_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

func (c *RedisConfig) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxActiveConns == 0 {
		c.MaxActiveConns = 500
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 60 * time.Second
	}
}

func redisKey(h core.InfoHash) string {
	return fmt.Sprintf("%s:cache:%s", appName, h.Key())
}

// RedisStore is a Store backend shared across proxy processes. Each logical
// record is stored whole under a single key; load-then-store across two
// calls is not transactional (see the cross-process cache safety note in
// the repository's design notes).
type RedisStore struct {
	config RedisConfig
	pool   *redis.Pool
}

// NewRedisStore creates a RedisStore and verifies connectivity.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	config.applyDefaults()

	if config.Addr == "" {
		return nil, errors.New("invalid config: missing addr")
	}

	s := &RedisStore{
		config: config,
		pool: &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.Dial(
					"tcp",
					config.Addr,
					redis.DialConnectTimeout(config.DialTimeout),
					redis.DialReadTimeout(config.ReadTimeout),
					redis.DialWriteTimeout(config.WriteTimeout))
			},
			MaxIdle:     config.MaxIdleConns,
			MaxActive:   config.MaxActiveConns,
			IdleTimeout: config.IdleConnTimeout,
			Wait:        true,
		},
	}

	c, err := s.pool.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial redis: %s", err)
	}
	c.Close()

	return s, nil
}

// Load implements Store.
func (s *RedisStore) Load(h core.InfoHash) (*core.PeerDirectory, error) {
	c := s.pool.Get()
	defer c.Close()

	b, err := redis.Bytes(c.Do("GET", redisKey(h)))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "redis GET", err)
	}
	d, err := Unmarshal(b)
	if err != nil {
		return nil, core.NewFetchError(core.CacheLoadFailure, "decode cache record", err)
	}
	return d, nil
}

// Store implements Store.
func (s *RedisStore) Store(h core.InfoHash, d *core.PeerDirectory) error {
	b, err := Marshal(d)
	if err != nil {
		return core.NewFetchError(core.CachePersistFailure, "encode cache record", err)
	}
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("SET", redisKey(h), b); err != nil {
		return core.NewFetchError(core.CachePersistFailure, "redis SET", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}
