// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the matching pipeline over a JSON HTTP API.
package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/matching"
	"github.com/zerohunger/connect/needs"
	"github.com/zerohunger/connect/registry"
	"github.com/zerohunger/connect/spatial"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Pipeline *matching.Pipeline
	Registry *registry.Registry
	Needs    needs.Repository

	// Lookup backs address sessions and /api/geocode/search.
	Lookup geocode.Lookup
	Field  geocode.FieldOptions

	// Gatherer is served at /metrics when set.
	Gatherer prometheus.Gatherer

	// SessionTTL closes sessions idle for longer (30m).
	SessionTTL time.Duration
}

const eventBuffer = 32

type session struct {
	field    *geocode.Field
	lastUsed time.Time
}

// Server holds the address sessions of connected vendors.
type Server struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 30 * time.Minute
	}

	return &Server{deps: deps, sessions: make(map[string]*session)}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/needs", s.listNeeds)
	r.GET("/api/needs/nearby", s.nearbyNeeds)
	r.GET("/api/insecurity/top", s.topInsecurity)
	r.GET("/api/geocode/search", s.geocodeSearch)

	r.POST("/api/sessions", s.createSession)
	r.GET("/api/sessions/:id", s.getSession)
	r.POST("/api/sessions/:id/input", s.sessionInput)
	r.POST("/api/sessions/:id/select", s.sessionSelect)
	r.POST("/api/sessions/:id/submit", s.submit)
	r.DELETE("/api/sessions/:id", s.deleteSession)

	r.GET("/api/posts", s.listPosts)
	r.GET("/api/posts/cells", s.postCells)
	r.GET("/api/posts/events", s.postEvents)
	r.POST("/api/posts/:id/claim", s.claimPost)
	r.GET("/api/stats", s.stats)

	r.POST("/api/assistant", s.assistant)

	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

// Run serves the API on addr until it fails.
func (s *Server) Run(addr string) error {
	stop := make(chan struct{})
	defer close(stop)

	go s.expireSessions(stop)

	log.Printf("🌐 Listening on http://%s", addr)

	return s.Router().Run(addr)
}

// Close ends every session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.field.Close()
	}
}

func (s *Server) expireSessions(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if n := s.expire(now); n > 0 {
				log.Printf("expired %d idle sessions", n)
			}
		}
	}
}

// expire closes sessions idle for longer than the TTL at now.
func (s *Server) expire(now time.Time) int {
	var idle []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.deps.SessionTTL {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.field.Close()
	}

	return len(idle)
}

func (s *Server) session(ctx *gin.Context) (*geocode.Field, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[ctx.Param("id")]
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})

		return nil, false
	}

	sess.lastUsed = time.Now()

	return sess.field, true
}

func queryInt(ctx *gin.Context, name string, def int) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})

		return 0, false
	}

	return n, true
}

func queryPoint(ctx *gin.Context) (spatial.Point, bool) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)

	if errLat != nil || errLng != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})

		return spatial.Point{}, false
	}

	pt := spatial.Point{Lat: lat, Lng: lng}
	if err := pt.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return spatial.Point{}, false
	}

	return pt, true
}

/////////////////////////////////////////
/// Need points

func (s *Server) listNeeds(ctx *gin.Context) {
	points := needs.Filter(s.deps.Pipeline.NeedPoints(), ctx.Query("q"))
	if points == nil {
		points = []*needs.NeedPoint{}
	}

	ctx.JSON(http.StatusOK, points)
}

func (s *Server) nearbyNeeds(ctx *gin.Context) {
	pt, ok := queryPoint(ctx)
	if !ok {
		return
	}

	limit, ok := queryInt(ctx, "limit", 5)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, needs.Rank(pt, s.deps.Pipeline.NeedPoints(), limit))
}

func (s *Server) topInsecurity(ctx *gin.Context) {
	n, ok := queryInt(ctx, "n", 3)
	if !ok {
		return
	}

	stats, err := s.deps.Needs.TopInsecurity(n)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, stats)
}

func (s *Server) geocodeSearch(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.deps.Lookup.Search(ctx.Request.Context(), ctx.Query("q")))
}

/////////////////////////////////////////
/// Address sessions

func (s *Server) createSession(ctx *gin.Context) {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &session{
		field:    geocode.NewField(s.deps.Lookup, s.deps.Field),
		lastUsed: time.Now(),
	}
	s.mu.Unlock()

	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) getSession(ctx *gin.Context) {
	field, ok := s.session(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, field.State())
}

type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) sessionInput(ctx *gin.Context) {
	field, ok := s.session(ctx)
	if !ok {
		return
	}

	var req inputRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	ctx.JSON(http.StatusAccepted, field.Input(req.Text))
}

type selectRequest struct {
	Label string   `json:"label" binding:"required"`
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
}

func (s *Server) sessionSelect(ctx *gin.Context) {
	field, ok := s.session(ctx)
	if !ok {
		return
	}

	var req selectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "label, lat and lng are required"})

		return
	}

	pt := spatial.Point{Lat: *req.Lat, Lng: *req.Lng}
	if err := pt.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	field.Select(geocode.Candidate{Label: req.Label, Point: pt})
	ctx.JSON(http.StatusOK, field.State())
}

func (s *Server) submit(ctx *gin.Context) {
	field, ok := s.session(ctx)
	if !ok {
		return
	}

	var in matching.VendorInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	if strings.TrimSpace(in.VendorName) == "" {
		if c, ok := field.Selected(); ok {
			in.VendorName = geocode.GuessName(c.Label)
		}
	}

	sub, err := s.deps.Pipeline.Submit(ctx.Request.Context(), field, in)

	switch {
	case err == nil:
		ctx.JSON(http.StatusCreated, sub)
	case errors.Is(err, matching.ErrLocationUnavailable):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case registry.IsValidation(err):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) deleteSession(ctx *gin.Context) {
	s.mu.Lock()
	sess, ok := s.sessions[ctx.Param("id")]
	delete(s.sessions, ctx.Param("id"))
	s.mu.Unlock()

	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})

		return
	}

	sess.field.Close()
	ctx.Status(http.StatusNoContent)
}

/////////////////////////////////////////
/// Posts

func (s *Server) listPosts(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.deps.Registry.List())
}

// postEvents streams registry changes as server-sent events, starting with a
// snapshot of every post.
func (s *Server) postEvents(ctx *gin.Context) {
	events, cancel := s.deps.Registry.Subscribe(eventBuffer)
	defer cancel()

	ctx.SSEvent("snapshot", s.deps.Registry.List())
	ctx.Writer.Flush()

	done := ctx.Request.Context().Done()

	ctx.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}

			ctx.SSEvent(string(ev.Kind), ev.Post)

			return true
		case <-done:
			return false
		}
	})
}

func (s *Server) claimPost(ctx *gin.Context) {
	id := ctx.Param("id")

	switch s.deps.Registry.Claim(id) {
	case registry.ClaimSuccess:
		post, _ := s.deps.Registry.Get(id)
		ctx.JSON(http.StatusOK, post)
	case registry.ClaimNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	case registry.ClaimAlreadyClaimed:
		ctx.JSON(http.StatusConflict, gin.H{"error": "post already claimed"})
	}
}

func (s *Server) postCells(ctx *gin.Context) {
	res, ok := queryInt(ctx, "res", needs.CellResolution)
	if !ok {
		return
	}

	cells, err := s.deps.Registry.CellCounts(res)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, cells)
}

type statsResponse struct {
	Posts         registry.Counts         `json:"posts"`
	NeedPoints    int                     `json:"need_points"`
	TopInsecurity []*needs.InsecurityStat `json:"top_insecurity"`
}

func (s *Server) stats(ctx *gin.Context) {
	top, err := s.deps.Needs.TopInsecurity(3)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, statsResponse{
		Posts:         s.deps.Registry.Counts(),
		NeedPoints:    len(s.deps.Pipeline.NeedPoints()),
		TopInsecurity: top,
	})
}

/////////////////////////////////////////
/// Assistant

type assistantRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) assistant(ctx *gin.Context) {
	var req assistantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reply": s.deps.Pipeline.Ask(ctx.Request.Context(), req.Message)})
}
