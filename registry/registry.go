// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"cmp"
	"log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zerohunger/connect/metrics"
)

// Options configures a Registry. Zero values take the defaults.
type Options struct {
	// CellResolution is the H3 resolution stored on posts (8).
	CellResolution int

	// Now defaults to time.Now.
	Now func() time.Time

	// NewID defaults to random UUIDs.
	NewID func() string

	Metrics *metrics.Metrics
}

// postState is replaced as a whole so status and claim time change together.
type postState struct {
	status    Status
	claimedAt time.Time
}

type entry struct {
	post  DonationPost
	state atomic.Pointer[postState]
}

func (e *entry) status() Status {
	return e.state.Load().status
}

func (e *entry) snapshot() DonationPost {
	p := e.post
	st := e.state.Load()
	p.Status = st.status

	if st.status == StatusClaimed {
		claimed := st.claimedAt
		p.ClaimedAt = &claimed
	}

	return p
}

// Registry stores donation posts in memory. It is safe for concurrent use;
// claims on distinct posts do not contend.
type Registry struct {
	opts Options

	mu      sync.RWMutex
	byID    map[string]*entry
	entries []*entry

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.CellResolution == 0 {
		opts.CellResolution = 8
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Registry{
		opts: opts,
		byID: make(map[string]*entry),
		subs: make(map[int]chan Event),
	}
}

func validate(in CreateInput) error {
	if in.Point == nil {
		return &ValidationError{Field: "location", Reason: "coordinates are required"}
	}

	if err := in.Point.Validate(); err != nil {
		return &ValidationError{Field: "location", Reason: err.Error()}
	}

	if strings.TrimSpace(in.FoodType) == "" {
		return &ValidationError{Field: "food_type", Reason: "a food description is required"}
	}

	return nil
}

// Create validates in and stores a new available post.
func (r *Registry) Create(in CreateInput) (*DonationPost, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	cell, err := in.Point.Cell(r.opts.CellResolution)
	if err != nil {
		return nil, &ValidationError{Field: "location", Reason: err.Error()}
	}

	vendor := strings.TrimSpace(in.VendorName)
	if vendor == "" {
		vendor = DefaultVendorName
	}

	e := &entry{post: DonationPost{
		VendorName:      vendor,
		VendorAddress:   strings.TrimSpace(in.VendorAddress),
		FoodType:        strings.TrimSpace(in.FoodType),
		Quantity:        strings.TrimSpace(in.Quantity),
		Expiry:          strings.TrimSpace(in.Expiry),
		Point:           *in.Point,
		Cell:            cell,
		CreatedAt:       r.opts.Now(),
		Status:          StatusAvailable,
		TargetCommunity: in.TargetCommunity,
	}}
	e.state.Store(&postState{status: StatusAvailable})

	r.mu.Lock()
	for {
		id := r.opts.NewID()
		if _, taken := r.byID[id]; !taken {
			e.post.ID = id

			break
		}
	}

	r.byID[e.post.ID] = e
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	r.opts.Metrics.IncrementPostsCreated()
	log.Printf("📦 post %s: %q from %s -> %s", e.post.ID, e.post.FoodType, vendor, e.post.TargetCommunity)

	post := e.snapshot()
	r.publish(Event{Kind: EventCreated, Post: post})

	return &post, nil
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id]
}

// Claim moves an available post to claimed. Exactly one of any number of
// concurrent claims on the same post succeeds.
func (r *Registry) Claim(id string) ClaimResult {
	result := r.claim(id)
	r.opts.Metrics.ObserveClaim(result.String())

	return result
}

func (r *Registry) claim(id string) ClaimResult {
	e := r.lookup(id)
	if e == nil {
		return ClaimNotFound
	}

	for {
		cur := e.state.Load()

		next, err := Transition(cur.status, EventClaimed)
		if err != nil {
			return ClaimAlreadyClaimed
		}

		if e.state.CompareAndSwap(cur, &postState{status: next, claimedAt: r.opts.Now()}) {
			break
		}
	}

	log.Printf("🤝 post %s claimed", id)
	r.publish(Event{Kind: EventClaimed, Post: e.snapshot()})

	return ClaimSuccess
}

// Get returns a copy of the post with id.
func (r *Registry) Get(id string) (DonationPost, bool) {
	e := r.lookup(id)
	if e == nil {
		return DonationPost{}, false
	}

	return e.snapshot(), true
}

func (r *Registry) snapshotEntries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.entries)
}

// List returns copies of all posts, newest first. Posts created at the same
// instant are ordered by reverse insertion.
func (r *Registry) List() []DonationPost {
	entries := r.snapshotEntries()

	posts := make([]DonationPost, 0, len(entries))
	for _, e := range slices.Backward(entries) {
		posts = append(posts, e.snapshot())
	}

	slices.SortStableFunc(posts, func(a, b DonationPost) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return posts
}

// Counts returns how many posts are available and claimed.
func (r *Registry) Counts() Counts {
	var c Counts

	for _, e := range r.snapshotEntries() {
		switch e.status() {
		case StatusAvailable:
			c.Available++
		case StatusClaimed:
			c.Claimed++
		}
	}

	return c
}

// CellCount is the number of available posts in one H3 cell.
type CellCount struct {
	Cell  int64 `json:"cell,string"`
	Count int   `json:"count"`
}

// CellCounts aggregates available posts per H3 cell at res, busiest first.
func (r *Registry) CellCounts(res int) ([]CellCount, error) {
	counts := make(map[int64]int)

	for _, e := range r.snapshotEntries() {
		if e.status() != StatusAvailable {
			continue
		}

		cell := e.post.Cell
		if res != r.opts.CellResolution {
			var err error

			cell, err = e.post.Point.Cell(res)
			if err != nil {
				return nil, err
			}
		}

		counts[cell]++
	}

	out := make([]CellCount, 0, len(counts))
	for cell, n := range counts {
		out = append(out, CellCount{Cell: cell, Count: n})
	}

	slices.SortFunc(out, func(a, b CellCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}

		return cmp.Compare(a.Cell, b.Cell)
	})

	return out, nil
}

// Subscribe returns a channel of post events and a function that ends the
// subscription. Events are dropped for subscribers whose buffer is full.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, id)
			r.subMu.Unlock()
			close(ch)
		})
	}
}

func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("⚠️ subscriber %d is full, dropping %s event for %s", id, ev.Kind, ev.Post.ID)
		}
	}
}
