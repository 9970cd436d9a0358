// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/spatial"
	"github.com/zerohunger/connect/utils/textutils"
)

// Lookup is the part of Resolver a Field depends on.
type Lookup interface {
	Search(ctx context.Context, text string) []Candidate
	Resolve(ctx context.Context, text string) *spatial.Point
}

// FieldOptions configures a Field. Zero values take the defaults.
type FieldOptions struct {
	// SearchDelay debounces candidate lookups (300ms).
	SearchDelay time.Duration

	// ResolveDelay debounces coordinate resolution (1s).
	ResolveDelay time.Duration

	// MinResolveLength is the shortest trimmed text that gets resolved (6).
	MinResolveLength int

	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

func (o FieldOptions) withDefaults() FieldOptions {
	if o.SearchDelay <= 0 {
		o.SearchDelay = 300 * time.Millisecond
	}

	if o.ResolveDelay <= 0 {
		o.ResolveDelay = time.Second
	}

	if o.MinResolveLength <= 0 {
		o.MinResolveLength = 6
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

// FieldState is a snapshot of a Field.
type FieldState struct {
	Text       string            `json:"text"`
	Seq        uint64            `json:"seq"`
	Candidates []Candidate       `json:"candidates"`
	Selected   *Candidate        `json:"selected,omitempty"`
	Resolved   *ResolvedLocation `json:"resolved,omitempty"`
}

// Field is one address input. Every edit issues a query with a higher
// sequence number; only responses to the latest query are applied, so a
// slow answer to an old keystroke never overwrites a newer one.
type Field struct {
	lookup Lookup
	opts   FieldOptions

	mu           sync.Mutex
	seq          uint64
	text         string
	candidates   []Candidate
	selected     *Candidate
	resolved     *ResolvedLocation
	ctx          context.Context
	cancel       context.CancelFunc
	searchTimer  *time.Timer
	resolveTimer *time.Timer
	closed       bool

	wg sync.WaitGroup
}

// NewField creates an empty field backed by lookup.
func NewField(lookup Lookup, opts FieldOptions) *Field {
	return &Field{
		lookup:     lookup,
		opts:       opts.withDefaults(),
		candidates: []Candidate{},
	}
}

// Issue records text as the latest query and cancels work for earlier ones.
// It schedules nothing; Input does.
func (f *Field) Issue(text string) AddressQuery {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.issueLocked(text)
}

func (f *Field) issueLocked(text string) AddressQuery {
	f.seq++

	if f.cancel != nil {
		f.cancel()
	}

	// A closed field keeps its canceled context.
	if !f.closed {
		f.ctx, f.cancel = context.WithCancel(context.Background())
	}

	f.text = text

	if f.selected != nil && !textutils.SameLabel(text, f.selected.Label) {
		f.selected = nil
	}

	return AddressQuery{Text: text, Seq: f.seq, IssuedAt: f.opts.Now()}
}

func (f *Field) stopTimersLocked() {
	if f.searchTimer != nil {
		f.searchTimer.Stop()
		f.searchTimer = nil
	}

	if f.resolveTimer != nil {
		f.resolveTimer.Stop()
		f.resolveTimer = nil
	}
}

// Input handles a keystroke: it issues a query and (re)arms the search and
// resolve timers for it.
func (f *Field) Input(text string) AddressQuery {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := f.issueLocked(text)

	f.stopTimersLocked()

	if f.closed {
		return q
	}

	ctx := f.ctx
	f.searchTimer = time.AfterFunc(f.opts.SearchDelay, func() { f.runSearch(ctx, q) })
	f.resolveTimer = time.AfterFunc(f.opts.ResolveDelay, func() { f.runResolve(ctx, q) })

	return q
}

// begin registers a lookup for q if q is still current.
func (f *Field) begin(q AddressQuery) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || q.Seq != f.seq {
		return false
	}

	f.wg.Add(1)

	return true
}

func (f *Field) runSearch(ctx context.Context, q AddressQuery) {
	if !f.begin(q) {
		return
	}
	defer f.wg.Done()

	f.ApplyCandidates(q, f.lookup.Search(ctx, q.Text))
}

func (f *Field) runResolve(ctx context.Context, q AddressQuery) {
	if !f.shouldResolve(q) || !f.begin(q) {
		return
	}
	defer f.wg.Done()

	pt := f.lookup.Resolve(ctx, q.Text)
	if pt == nil {
		return
	}

	f.ApplyResolved(q, *pt)
}

func (f *Field) shouldResolve(q AddressQuery) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selected != nil && textutils.SameLabel(q.Text, f.selected.Label) {
		return false
	}

	return utf8.RuneCountInString(strings.TrimSpace(q.Text)) >= f.opts.MinResolveLength
}

func (f *Field) discard(op string, q AddressQuery) {
	log.Printf("discarding stale %s response for %q (seq %d, latest %d)", op, q.Text, q.Seq, f.seq)
	f.opts.Metrics.IncrementStale(op)
}

// ApplyCandidates stores cs as the candidate list if q is the latest query.
func (f *Field) ApplyCandidates(q AddressQuery, cs []Candidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if q.Seq != f.seq {
		f.discard("search", q)

		return false
	}

	if cs == nil {
		cs = []Candidate{}
	}

	f.candidates = slices.Clone(cs)

	return true
}

// ApplyResolved commits pt for q if q is the latest query.
func (f *Field) ApplyResolved(q AddressQuery, pt spatial.Point) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if q.Seq != f.seq || (f.resolved != nil && q.Seq < f.resolved.Seq) {
		f.discard("resolve", q)

		return false
	}

	f.resolved = &ResolvedLocation{
		Label:      q.Text,
		Point:      pt,
		Seq:        q.Seq,
		ResolvedAt: f.opts.Now(),
	}

	return true
}

// Select commits a candidate picked from the list. Pending lookups are
// dropped and the text becomes the candidate's label.
func (f *Field) Select(c Candidate) AddressQuery {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := f.issueLocked(c.Label)

	f.stopTimersLocked()

	f.selected = &c
	f.candidates = []Candidate{}
	f.resolved = &ResolvedLocation{
		Label:      c.Label,
		Point:      c.Point,
		Seq:        q.Seq,
		ResolvedAt: f.opts.Now(),
	}

	return q
}

// Resolved returns the committed location, if any.
func (f *Field) Resolved() (ResolvedLocation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved == nil {
		return ResolvedLocation{}, false
	}

	return *f.resolved, true
}

// Selected returns the candidate picked by the user while the text still
// matches its label.
func (f *Field) Selected() (Candidate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selected == nil {
		return Candidate{}, false
	}

	return *f.selected, true
}

// Candidates returns a copy of the current candidate list.
func (f *Field) Candidates() []Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.candidates)
}

// Text returns the latest text.
func (f *Field) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.text
}

// State returns a snapshot of the field.
func (f *Field) State() FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := FieldState{
		Text:       f.text,
		Seq:        f.seq,
		Candidates: slices.Clone(f.candidates),
	}

	if f.selected != nil {
		c := *f.selected
		st.Selected = &c
	}

	if f.resolved != nil {
		r := *f.resolved
		st.Resolved = &r
	}

	return st
}

// Close stops the timers, cancels in-flight lookups and waits for them.
func (f *Field) Close() {
	f.mu.Lock()
	f.closed = true
	f.stopTimersLocked()

	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	f.wg.Wait()
}
