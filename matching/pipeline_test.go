// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package matching

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zerohunger/connect/advisory"
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/needs"
	"github.com/zerohunger/connect/registry"
	"github.com/zerohunger/connect/spatial"
)

var vendorPoint = spatial.Point{Lat: 43.6532, Lng: -79.3832}

// northOf returns the point km kilometres due north of ref.
func northOf(ref spatial.Point, km float64) spatial.Point {
	return spatial.Point{Lat: ref.Lat + km/111.19492664455873, Lng: ref.Lng}
}

func testPoints() []*needs.NeedPoint {
	return []*needs.NeedPoint{
		{ID: "a", Name: "A", Point: northOf(vendorPoint, 5.6)},
		{ID: "b", Name: "B", Point: northOf(vendorPoint, 0.3)},
		{ID: "c", Name: "C", Point: northOf(vendorPoint, 1.2)},
	}
}

// recordingAdvisor counts calls and returns a fixed reply.
type recordingAdvisor struct {
	mu    sync.Mutex
	calls []advisory.Request
	reply string
}

func (a *recordingAdvisor) Advise(_ context.Context, req advisory.Request) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, req)

	return a.reply
}

func (a *recordingAdvisor) Ask(context.Context, string) string { return a.reply }

// failingStore rejects every post.
type failingStore struct{ err error }

func (s failingStore) Create(registry.CreateInput) (*registry.DonationPost, error) {
	return nil, s.err
}

// unresolved is a LocationSource with nothing committed.
type unresolved struct{}

func (unresolved) Resolved() (geocode.ResolvedLocation, bool) {
	return geocode.ResolvedLocation{}, false
}

func fixed(pt spatial.Point) FixedLocation {
	return FixedLocation{Label: "12 King St W, Toronto", Point: pt}
}

func TestSubmit(t *testing.T) {
	reg := registry.New(registry.Options{})
	adv := &recordingAdvisor{reply: "Go to B."}
	p := New(testPoints(), reg, adv, Options{})

	sub, err := p.Submit(context.Background(), fixed(vendorPoint), VendorInput{
		VendorName: "Joe's",
		FoodType:   "Bread",
		Quantity:   "20",
		WantAdvice: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C", "A"}, needs.Names(sub.Matches))
	assert.Equal(t, "B", sub.Post.TargetCommunity)
	assert.Equal(t, vendorPoint, sub.Post.Point)
	assert.Equal(t, "12 King St W, Toronto", sub.Post.VendorAddress)
	assert.Equal(t, "Go to B.", sub.Advisory)

	require.Len(t, adv.calls, 1)
	assert.Equal(t, "Bread", adv.calls[0].FoodType)
	assert.Len(t, adv.calls[0].Nearby, 3)

	assert.Len(t, reg.List(), 1)
}

func TestSubmitWithoutLocation(t *testing.T) {
	reg := registry.New(registry.Options{})
	adv := &recordingAdvisor{}
	p := New(testPoints(), reg, adv, Options{})

	sub, err := p.Submit(context.Background(), unresolved{}, VendorInput{FoodType: "Bread", WantAdvice: true})
	require.ErrorIs(t, err, ErrLocationUnavailable)
	assert.Nil(t, sub)
	assert.Empty(t, reg.List())
	assert.Empty(t, adv.calls)
}

func TestSubmitWithoutNeedPoints(t *testing.T) {
	reg := registry.New(registry.Options{})
	p := New(nil, reg, nil, Options{})

	sub, err := p.Submit(context.Background(), fixed(vendorPoint), VendorInput{FoodType: "Soup"})
	require.NoError(t, err)
	assert.Equal(t, GeneralPool, sub.Post.TargetCommunity)
	assert.Empty(t, sub.Matches)
	assert.Empty(t, sub.Advisory)
}

func TestSubmitValidationError(t *testing.T) {
	reg := registry.New(registry.Options{})
	p := New(testPoints(), reg, nil, Options{})

	_, err := p.Submit(context.Background(), fixed(vendorPoint), VendorInput{FoodType: " "})
	require.Error(t, err)
	assert.True(t, registry.IsValidation(err))
	assert.Empty(t, reg.List())
}

func TestSubmitStoreError(t *testing.T) {
	boom := errors.New("boom")
	p := New(testPoints(), failingStore{err: boom}, nil, Options{})

	_, err := p.Submit(context.Background(), fixed(vendorPoint), VendorInput{FoodType: "Soup"})
	assert.ErrorIs(t, err, boom)
}

func TestSubmitOfflineAdvisorKeepsPost(t *testing.T) {
	reg := registry.New(registry.Options{})
	p := New(testPoints(), reg, advisory.Offline{}, Options{})

	sub, err := p.Submit(context.Background(), fixed(vendorPoint), VendorInput{FoodType: "Soup", WantAdvice: true})
	require.NoError(t, err)
	assert.Equal(t, advisory.Unavailable, sub.Advisory)
	assert.Len(t, reg.List(), 1)
}

func TestSubmitFromField(t *testing.T) {
	reg := registry.New(registry.Options{})
	p := New(testPoints(), reg, nil, Options{Limit: 2})

	f := geocode.NewField(nil, geocode.FieldOptions{})
	defer f.Close()

	_, err := p.Submit(context.Background(), f, VendorInput{FoodType: "Soup"})
	require.ErrorIs(t, err, ErrLocationUnavailable)

	f.Select(geocode.Candidate{Label: "Joe's, 12 King St W", Point: vendorPoint})

	sub, err := p.Submit(context.Background(), f, VendorInput{FoodType: "Soup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, needs.Names(sub.Matches))
}

func TestPreviewAndAdvise(t *testing.T) {
	adv := &recordingAdvisor{reply: "ok"}
	p := New(testPoints(), registry.New(registry.Options{}), adv, Options{Limit: 1})

	assert.Equal(t, []string{"B"}, needs.Names(p.Preview(vendorPoint)))
	assert.Equal(t, "ok", p.Advise(context.Background(), vendorPoint, "Soup", "5L"))
	assert.Equal(t, "ok", p.Ask(context.Background(), "hi"))
	require.Len(t, adv.calls, 1)
	assert.Len(t, adv.calls[0].Nearby, 1)
}
