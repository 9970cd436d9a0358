// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils builds the outbound HTTP clients used to reach address
// providers.
package httputils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

/////////////////////////////////////////
/// RoundTrippers

// LoggingRoundTripper traces requests and responses to Writer.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

// abbreviate prefixes each dumped line and caps very long dumps.
func abbreviate(dump []byte, prefix rune) string {
	const maxLines, maxChars = 64, 256

	lines := strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) > maxChars {
			line = line[:maxChars] + "…"
		}

		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	return strings.Join(lines, "\n") + "\n"
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	if _, err := io.WriteString(t.Writer, abbreviate(dump, '>')); err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		fmt.Fprintf(t.Writer, "< ERROR: [%v] %v\n", time.Since(start), err)

		return nil, err
	}

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n%s", time.Since(start), abbreviate(dump, '<'))

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to every request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(req)
}

// ThrottleRoundTripper spaces requests at least MinInterval apart. Public
// Nominatim allows one request per second per client. A request whose context
// ends while it waits gives its slot back.
type ThrottleRoundTripper struct {
	Transport   http.RoundTripper
	MinInterval time.Duration

	once    sync.Once
	limiter *rate.Limiter
}

// RoundTrip implements the http.RoundTripper interface.
func (t *ThrottleRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.MinInterval > 0 {
		t.once.Do(func() {
			t.limiter = rate.NewLimiter(rate.Every(t.MinInterval), 1)
		})

		if err := t.limiter.Wait(req.Context()); err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}

			// The slot lies past the request deadline.
			return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}

	return t.Transport.RoundTrip(req)
}

////////////////////////////////////////////////////

// ClientOptions configures NewClient.
type ClientOptions struct {
	// UserAgent is sent with every request; Nominatim rejects anonymous clients
	UserAgent string

	// Trace writes request/response summaries here when set
	Trace io.Writer

	// TraceBody includes bodies in the trace
	TraceBody bool

	// MinInterval spaces consecutive requests
	MinInterval time.Duration

	// Timeout bounds a whole request
	Timeout time.Duration
}

// NewClient composes throttle, headers and tracing over a pooled transport.
func NewClient(opts ClientOptions) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	userAgent := "zhc/unknown"
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}

	var rt http.RoundTripper = &LoggingRoundTripper{
		Writer:    opts.Trace,
		DumpBody:  opts.TraceBody,
		Transport: transport,
	}

	rt = &AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: rt,
	}

	if opts.MinInterval > 0 {
		rt = &ThrottleRoundTripper{Transport: rt, MinInterval: opts.MinInterval}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
