// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package matching turns a vendor's donation into a stored post routed to the
// nearest need points.
package matching

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zerohunger/connect/advisory"
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/needs"
	"github.com/zerohunger/connect/registry"
	"github.com/zerohunger/connect/spatial"
)

// GeneralPool is the target community when no need point is known.
const GeneralPool = "General Pool"

// ErrLocationUnavailable is returned by Submit when the vendor address has no
// committed coordinate.
var ErrLocationUnavailable = errors.New("vendor location unavailable: resolve or select an address first")

// LocationSource supplies the vendor's committed location. *geocode.Field
// implements it.
type LocationSource interface {
	Resolved() (geocode.ResolvedLocation, bool)
}

// FixedLocation is a LocationSource that is always resolved.
type FixedLocation geocode.ResolvedLocation

// Resolved implements LocationSource.
func (l FixedLocation) Resolved() (geocode.ResolvedLocation, bool) {
	return geocode.ResolvedLocation(l), true
}

// Store persists posts.
type Store interface {
	Create(in registry.CreateInput) (*registry.DonationPost, error)
}

// VendorInput is what the vendor typed besides the address.
type VendorInput struct {
	VendorName    string `json:"vendor_name"`
	VendorAddress string `json:"vendor_address"`
	FoodType      string `json:"food_type"`
	Quantity      string `json:"quantity"`
	Expiry        string `json:"expiry"`
	WantAdvice    bool   `json:"advice"`
}

// Submission is the result of a successful Submit.
type Submission struct {
	Post     *registry.DonationPost `json:"post"`
	Matches  []needs.RankedMatch    `json:"matches"`
	Advisory string                 `json:"advisory,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	// Limit is the number of matches kept (5).
	Limit int

	// AdviceTimeout bounds the advisory call (20s).
	AdviceTimeout time.Duration
}

// Pipeline links location, ranking, storage and advice.
type Pipeline struct {
	points  []*needs.NeedPoint
	store   Store
	advisor advisory.Advisor
	opts    Options
}

// New creates a Pipeline over a fixed set of need points. A nil advisor is
// treated as offline.
func New(points []*needs.NeedPoint, store Store, advisor advisory.Advisor, opts Options) *Pipeline {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}

	if opts.AdviceTimeout <= 0 {
		opts.AdviceTimeout = 20 * time.Second
	}

	if advisor == nil {
		advisor = advisory.Offline{}
	}

	return &Pipeline{points: points, store: store, advisor: advisor, opts: opts}
}

// NeedPoints returns the reference need points.
func (p *Pipeline) NeedPoints() []*needs.NeedPoint {
	return p.points
}

// Preview ranks the need points around pt.
func (p *Pipeline) Preview(pt spatial.Point) []needs.RankedMatch {
	return needs.Rank(pt, p.points, p.opts.Limit)
}

// Submit creates a post for the vendor at the location committed in loc. The
// post is stored before advice is requested; advice never fails a Submit.
func (p *Pipeline) Submit(ctx context.Context, loc LocationSource, in VendorInput) (*Submission, error) {
	resolved, ok := loc.Resolved()
	if !ok {
		return nil, ErrLocationUnavailable
	}

	matches := p.Preview(resolved.Point)

	target := GeneralPool
	if len(matches) > 0 {
		target = matches[0].Name
	}

	address := strings.TrimSpace(in.VendorAddress)
	if address == "" {
		address = resolved.Label
	}

	pt := resolved.Point

	post, err := p.store.Create(registry.CreateInput{
		VendorName:      in.VendorName,
		VendorAddress:   address,
		FoodType:        in.FoodType,
		Quantity:        in.Quantity,
		Expiry:          in.Expiry,
		Point:           &pt,
		TargetCommunity: target,
	})
	if err != nil {
		return nil, err
	}

	sub := &Submission{Post: post, Matches: matches}

	if in.WantAdvice {
		sub.Advisory = p.advise(ctx, in.FoodType, in.Quantity, matches)
	}

	return sub, nil
}

// Advise asks for advice on a donation at pt without creating a post.
func (p *Pipeline) Advise(ctx context.Context, pt spatial.Point, foodType, quantity string) string {
	return p.advise(ctx, foodType, quantity, p.Preview(pt))
}

func (p *Pipeline) advise(ctx context.Context, foodType, quantity string, matches []needs.RankedMatch) string {
	ctx, cancel := context.WithTimeout(ctx, p.opts.AdviceTimeout)
	defer cancel()

	start := time.Now()
	text := p.advisor.Advise(ctx, advisory.Request{FoodType: foodType, Quantity: quantity, Nearby: matches})
	log.Printf("advice for %q took %v", foodType, time.Since(start))

	return text
}

// Ask forwards a free-form question to the advisor.
func (p *Pipeline) Ask(ctx context.Context, message string) string {
	ctx, cancel := context.WithTimeout(ctx, p.opts.AdviceTimeout)
	defer cancel()

	return p.advisor.Ask(ctx, message)
}
