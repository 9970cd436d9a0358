// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/zerohunger/connect/spatial"
)

// Candidate is one match offered by an address provider.
type Candidate struct {
	Label string        `json:"label"`
	Point spatial.Point `json:"point"`
}

// Provider looks up free text against an address database.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Search returns up to limit candidates, best first. An empty result
	// with a nil error means the provider found nothing.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// AddressQuery is one text query issued by an input field. Seq is strictly
// increasing per field.
type AddressQuery struct {
	Text     string    `json:"text"`
	Seq      uint64    `json:"seq"`
	IssuedAt time.Time `json:"issued_at"`
}

// ResolvedLocation is the coordinate committed for a field.
type ResolvedLocation struct {
	Label      string        `json:"label"`
	Point      spatial.Point `json:"point"`
	Seq        uint64        `json:"seq"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// GuessName returns the first comma separated segment of a provider label,
// which for business results is usually the place name.
func GuessName(label string) string {
	name, _, _ := strings.Cut(label, ",")

	return strings.TrimSpace(name)
}
