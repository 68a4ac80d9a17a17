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

// Package httputil wraps net/http with a functional-options Send and
// consistent error types, used by every HTTP client and handler in this
// repository.
package httputil

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// StatusError occurs when an http response's status code is not in the
// caller's accepted list (by default, only 200).
type StatusError struct {
	Method       string
	URL          string
	Status       int
	ResponseDump string
}

func (e StatusError) Error() string {
	return fmt.Sprintf(
		"%s %s %d: %s", e.Method, e.URL, e.Status, e.ResponseDump)
}

// NetworkError occurs when an http request could not be completed due to
// a transport-level problem (DNS, connection refused, TLS handshake).
type NetworkError struct {
	msg string
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.msg)
}

// IsNetworkError returns true if err was the result of an underlying
// network error.
func IsNetworkError(err error) bool {
	_, ok := err.(NetworkError)
	return ok
}

// TimeoutError occurs when a request did not complete before its timeout.
type TimeoutError struct {
	msg string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s", e.msg)
}

// IsTimeout returns true if err was the result of a request timeout.
func IsTimeout(err error) bool {
	_, ok := err.(TimeoutError)
	return ok
}

// IsStatus returns true if err is a StatusError with the given status code.
func IsStatus(err error, status int) bool {
	statusErr, ok := err.(StatusError)
	return ok && statusErr.Status == status
}

type sendOptions struct {
	body          io.Reader
	timeout       time.Duration
	transport     http.RoundTripper
	tls           *tls.Config
	acceptedCodes map[int]bool
	headers       map[string]string
}

// SendOption configures a Send call.
type SendOption func(*sendOptions)

// SendBody specifies a body for the request.
func SendBody(body io.Reader) SendOption {
	return func(o *sendOptions) { o.body = body }
}

// SendTimeout specifies a timeout for the request.
func SendTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = timeout }
}

// SendTransport overrides the client's http.RoundTripper, e.g. for tests
// or to route through a proxy.
func SendTransport(t http.RoundTripper) SendOption {
	return func(o *sendOptions) { o.transport = t }
}

// SendTLS configures the client's TLS settings.
func SendTLS(c *tls.Config) SendOption {
	return func(o *sendOptions) { o.tls = c }
}

// SendHeader sets a single header on the request.
func SendHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// SendAcceptedCodes specifies which status codes are acceptable for a
// request, replacing the default. By default, only 200 is accepted.
func SendAcceptedCodes(codes ...int) SendOption {
	return func(o *sendOptions) {
		o.acceptedCodes = make(map[int]bool)
		for _, c := range codes {
			o.acceptedCodes[c] = true
		}
	}
}

// SendProxy routes the request through proxyURL when non-empty.
func SendProxy(proxyURL string) SendOption {
	return func(o *sendOptions) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			return
		}
		o.transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
}

func processOptions(opts []SendOption) sendOptions {
	o := sendOptions{acceptedCodes: map[int]bool{200: true}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Send sends an HTTP request of the given method to url and returns the
// response if and only if its status code is accepted.
func Send(method, rawurl string, opts ...SendOption) (*http.Response, error) {
	o := processOptions(opts)

	req, err := http.NewRequest(method, rawurl, o.body)
	if err != nil {
		return nil, fmt.Errorf("new request: %s", err)
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: o.timeout}
	if o.transport != nil {
		client.Transport = o.transport
	} else if o.tls != nil {
		client.Transport = &http.Transport{TLSClientConfig: o.tls}
	}

	resp, err := client.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, TimeoutError{err.Error()}
		}
		return nil, NetworkError{err.Error()}
	}
	if !o.acceptedCodes[resp.StatusCode] {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, StatusError{
			Method:       method,
			URL:          rawurl,
			Status:       resp.StatusCode,
			ResponseDump: string(b),
		}
	}
	return resp, nil
}

// Get sends a GET request.
func Get(url string, opts ...SendOption) (*http.Response, error) {
	return Send("GET", url, opts...)
}

// Post sends a POST request.
func Post(url string, opts ...SendOption) (*http.Response, error) {
	return Send("POST", url, opts...)
}

// GetQueryArg returns the named query argument, or def if it is absent.
func GetQueryArg(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}
