// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors of the matching pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	GeocodeRequests  *prometheus.CounterVec
	StaleResponses   *prometheus.CounterVec
	PostsCreated     prometheus.Counter
	Claims           *prometheus.CounterVec
	AdvisoryRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zhc_geocode_requests_total",
			Help: "Address provider calls by operation and outcome",
		}, []string{"op", "outcome"}),
		StaleResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zhc_geocode_stale_responses_total",
			Help: "Provider responses discarded because a newer query was issued on the same field",
		}, []string{"op"}),
		PostsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "zhc_donation_posts_created_total",
			Help: "Total number of donation posts created",
		}),
		Claims: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zhc_donation_claims_total",
			Help: "Claim attempts by result",
		}, []string{"result"}),
		AdvisoryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zhc_advisory_requests_total",
			Help: "Advisory collaborator calls by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveGeocode counts a provider call.
func (m *Metrics) ObserveGeocode(op, outcome string) {
	if m == nil {
		return
	}

	m.GeocodeRequests.WithLabelValues(op, outcome).Inc()
}

// IncrementStale counts a discarded stale response.
func (m *Metrics) IncrementStale(op string) {
	if m == nil {
		return
	}

	m.StaleResponses.WithLabelValues(op).Inc()
}

// IncrementPostsCreated increments the posts created counter by 1.
func (m *Metrics) IncrementPostsCreated() {
	if m == nil {
		return
	}

	m.PostsCreated.Inc()
}

// ObserveClaim counts a claim attempt.
func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}

	m.Claims.WithLabelValues(result).Inc()
}

// ObserveAdvisory counts an advisory call.
func (m *Metrics) ObserveAdvisory(outcome string) {
	if m == nil {
		return
	}

	m.AdvisoryRequests.WithLabelValues(outcome).Inc()
}
