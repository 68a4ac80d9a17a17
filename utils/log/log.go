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

// Package log provides a single process-global zap.SugaredLogger, so that
// every package can log through simple package-level functions without
// threading a logger through every constructor.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	global = mustNewDefault()
)

func mustNewDefault() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

// ConfigureLogger builds and installs a new global logger from config,
// returning it.
func ConfigureLogger(config zap.Config) *zap.SugaredLogger {
	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	sugar := l.Sugar()
	SetGlobalLogger(sugar)
	return sugar
}

// SetGlobalLogger replaces the global logger used by the package-level
// functions below, for tests or custom wiring.
func SetGlobalLogger(l *zap.SugaredLogger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

func logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// With returns a logger annotated with the given alternating key/value
// pairs, scoped to a single call site or request.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return logger().With(keysAndValues...)
}

// Debug logs args at debug level.
func Debug(args ...interface{}) { logger().Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) { logger().Debugf(format, args...) }

// Info logs args at info level.
func Info(args ...interface{}) { logger().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) { logger().Infof(format, args...) }

// Warn logs args at warn level.
func Warn(args ...interface{}) { logger().Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) { logger().Warnf(format, args...) }

// Error logs args at error level.
func Error(args ...interface{}) { logger().Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) { logger().Errorf(format, args...) }

// Fatal logs args at fatal level, then calls os.Exit(1).
func Fatal(args ...interface{}) { logger().Fatal(args...) }

// Fatalf logs a formatted message at fatal level, then calls os.Exit(1).
func Fatalf(format string, args ...interface{}) { logger().Fatalf(format, args...) }
