// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/spatial"
	"golang.org/x/sync/semaphore"
)

// ResolverOptions configures a Resolver. Zero values take the defaults.
type ResolverOptions struct {
	// Region is appended to every provider query ("Ontario, Canada").
	Region string

	// MaxResults caps Search results (5).
	MaxResults int

	// MinQueryLength is the shortest trimmed text Search sends out (3).
	MinQueryLength int

	// Timeout bounds a single provider call (10s).
	Timeout time.Duration

	// MaxInFlight bounds concurrent provider calls (4).
	MaxInFlight int64

	Metrics *metrics.Metrics
}

// DefaultRegion qualifies queries when no region is configured.
const DefaultRegion = "Ontario, Canada"

func (o ResolverOptions) withDefaults() ResolverOptions {
	if o.Region == "" {
		o.Region = DefaultRegion
	}

	if o.MaxResults <= 0 {
		o.MaxResults = 5
	}

	if o.MinQueryLength <= 0 {
		o.MinQueryLength = 3
	}

	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}

	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 4
	}

	return o
}

// Resolver turns free text into candidates or a single coordinate. Provider
// failures are logged and degrade to an empty result.
type Resolver struct {
	provider Provider
	opts     ResolverOptions
	sem      *semaphore.Weighted
}

// NewResolver creates a Resolver over provider.
func NewResolver(provider Provider, opts ResolverOptions) *Resolver {
	opts = opts.withDefaults()

	return &Resolver{
		provider: provider,
		opts:     opts,
		sem:      semaphore.NewWeighted(opts.MaxInFlight),
	}
}

// Region returns the qualifier appended to queries.
func (r *Resolver) Region() string {
	return r.opts.Region
}

// Search returns up to MaxResults candidates for text. Text shorter than
// MinQueryLength yields an empty result without contacting the provider.
func (r *Resolver) Search(ctx context.Context, text string) []Candidate {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < r.opts.MinQueryLength {
		return []Candidate{}
	}

	candidates, ok := r.query(ctx, "search", text, r.opts.MaxResults)
	if !ok {
		return []Candidate{}
	}

	if len(candidates) > r.opts.MaxResults {
		candidates = candidates[:r.opts.MaxResults]
	}

	return candidates
}

// Resolve returns the provider's best match for text, or nil.
func (r *Resolver) Resolve(ctx context.Context, text string) *spatial.Point {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	candidates, ok := r.query(ctx, "resolve", text, 1)
	if !ok || len(candidates) == 0 {
		return nil
	}

	pt := candidates[0].Point

	return &pt
}

func (r *Resolver) query(ctx context.Context, op, text string, limit int) ([]Candidate, bool) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.failed(op, text, err)

		return nil, false
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	candidates, err := r.provider.Search(ctx, text+", "+r.opts.Region, limit)
	if err != nil {
		r.failed(op, text, err)

		return nil, false
	}

	outcome := "ok"
	if len(candidates) == 0 {
		outcome = "empty"
	}

	r.opts.Metrics.ObserveGeocode(op, outcome)

	return candidates, true
}

func (r *Resolver) failed(op, text string, err error) {
	geoErr := Classify(err)
	r.opts.Metrics.ObserveGeocode(op, geoErr.Type.String())

	if geoErr.Type == ErrorTypeCanceled {
		log.Printf("%s %q superseded", op, text)

		return
	}

	log.Printf("⚠️ %s %s %q failed (%s): %v", r.provider.Name(), op, text, geoErr.Type, geoErr)
}
