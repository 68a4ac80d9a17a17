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

// Package handler adapts error-returning HTTP handlers into standard
// http.HandlerFuncs, so route handlers can return an error (optionally
// carrying a status code) instead of writing the response directly on
// every failure path.
package handler

import (
	"fmt"
	"net/http"

	"github.com/uber/kraken/utils/log"
)

// Error is an error that also carries the HTTP status it should produce.
type Error struct {
	status int
	msg    string
}

// Errorf builds an Error with status 500, formatted per format/args.
// Chain .Status(code) to override the status.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{status: http.StatusInternalServerError, msg: fmt.Sprintf(format, args...)}
}

// ErrorStatus builds an Error with the given status, using the status's
// standard text as the message.
func ErrorStatus(status int) *Error {
	return &Error{status: status, msg: http.StatusText(status)}
}

// Status sets e's status code and returns e, for chaining off Errorf.
func (e *Error) Status(status int) *Error {
	e.status = status
	return e
}

// GetStatus returns e's HTTP status code.
func (e *Error) GetStatus() int {
	return e.status
}

func (e *Error) Error() string {
	return e.msg
}

// Wrap adapts an error-returning handler into an http.HandlerFunc. A
// returned *Error writes its status and message; any other error is
// reported as a 500.
func Wrap(h func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		if herr, ok := err.(*Error); ok {
			http.Error(w, herr.msg, herr.status)
			return
		}
		log.Errorf("%s %s: %s", r.Method, r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
