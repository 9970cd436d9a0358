// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/spatial"
)

// fakeProvider answers every query with the same candidates, or err.
type fakeProvider struct {
	mu         sync.Mutex
	queries    []string
	candidates []Candidate
	err        error
	block      chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()

	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	for {
		old := p.maxInFlight.Load()
		if n <= old || p.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.err != nil {
		return nil, p.err
	}

	if len(p.candidates) > limit {
		return p.candidates[:limit], nil
	}

	return p.candidates, nil
}

func (p *fakeProvider) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.queries...)
}

func manyCandidates(n int) []Candidate {
	cs := make([]Candidate, n)
	for i := range cs {
		cs[i] = Candidate{Label: "place", Point: spatial.Point{Lat: 43 + float64(i)/100, Lng: -79}}
	}

	return cs
}

func TestResolverSearch(t *testing.T) {
	p := &fakeProvider{candidates: manyCandidates(8)}
	r := NewResolver(p, ResolverOptions{})

	got := r.Search(context.Background(), "  Toronto ")
	assert.Len(t, got, 5)
	assert.Equal(t, []string{"Toronto, Ontario, Canada"}, p.Queries())
}

func TestResolverSearchShortText(t *testing.T) {
	p := &fakeProvider{candidates: manyCandidates(1)}
	r := NewResolver(p, ResolverOptions{})

	for _, text := range []string{"", "  ", "To", " ab "} {
		got := r.Search(context.Background(), text)
		assert.NotNil(t, got)
		assert.Empty(t, got, "text %q", text)
	}

	assert.Empty(t, p.Queries())
}

func TestResolverDegradesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := &fakeProvider{err: &GeocodingError{Type: ErrorTypeRateLimit, Message: "slow down"}}
	r := NewResolver(p, ResolverOptions{Region: "Canada", Metrics: m})

	assert.Empty(t, r.Search(context.Background(), "Toronto"))
	assert.Nil(t, r.Resolve(context.Background(), "Toronto"))
	assert.Equal(t, []string{"Toronto, Canada", "Toronto, Canada"}, p.Queries())

	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("search", "rate_limit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("resolve", "rate_limit")), 0)
}

func TestResolverResolve(t *testing.T) {
	p := &fakeProvider{candidates: manyCandidates(3)}
	r := NewResolver(p, ResolverOptions{})

	pt := r.Resolve(context.Background(), "100 Queen St W")
	require.NotNil(t, pt)
	assert.Equal(t, manyCandidates(1)[0].Point, *pt)

	assert.Nil(t, r.Resolve(context.Background(), "   "))

	p.candidates = nil
	assert.Nil(t, r.Resolve(context.Background(), "Atlantis"))
}

func TestResolverTimeout(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{}), candidates: manyCandidates(1)}
	r := NewResolver(p, ResolverOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	assert.Nil(t, r.Resolve(context.Background(), "100 Queen St W"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestResolverBoundsInFlight(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{}), candidates: manyCandidates(1)}
	r := NewResolver(p, ResolverOptions{MaxInFlight: 2})

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			r.Search(context.Background(), "Toronto")
		}()
	}

	assert.Eventually(t, func() bool { return p.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(p.block)
	wg.Wait()

	assert.EqualValues(t, 2, p.maxInFlight.Load())
	assert.Len(t, p.Queries(), 6)
}

func TestResolverCanceledContext(t *testing.T) {
	p := &fakeProvider{err: errors.New("unreachable")}
	r := NewResolver(p, ResolverOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, r.Search(ctx, "Toronto"))
	assert.Empty(t, p.Queries())
}
