// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package advisory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/needs"
	"google.golang.org/api/option"
)

func nearby() []needs.RankedMatch {
	return []needs.RankedMatch{
		{NeedPoint: &needs.NeedPoint{Name: "Daily Bread"}, DistanceKm: 1.23},
		{NeedPoint: &needs.NeedPoint{Name: "North York Harvest"}, DistanceKm: 7.9},
	}
}

func TestAdvicePrompt(t *testing.T) {
	p := advicePrompt(Request{FoodType: "Bagels", Quantity: "3 dozen", Nearby: nearby()})

	assert.Contains(t, p, "Restaurant's available food: Bagels")
	assert.Contains(t, p, "Quantity: 3 dozen")
	assert.Contains(t, p, "Daily Bread (1.2km away), North York Harvest (7.9km away)")
	assert.Contains(t, p, "under 50 words")
}

func TestOffline(t *testing.T) {
	a := New(context.Background(), "", GeminiOptions{})

	assert.Equal(t, Unavailable, a.Advise(context.Background(), Request{FoodType: "Soup"}))
	assert.Equal(t, ChatOffline, a.Ask(context.Background(), "hi"))
}

// fakeGemini answers generateContent calls with reply, or fails with status.
func fakeGemini(t *testing.T, status int, reply string, prompts chan<- string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)

			return
		}

		body, _ := io.ReadAll(r.Body)
		if prompts != nil {
			prompts <- string(body)
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"code": 500, "message": "boom"}}`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": reply}},
				}},
			},
		})
	}))
}

func newTestGemini(t *testing.T, srv *httptest.Server, m *metrics.Metrics) *Gemini {
	t.Helper()

	g, err := NewGemini(context.Background(), "test-key", GeminiOptions{
		Timeout: 2 * time.Second,
		Metrics: m,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	})
	require.NoError(t, err)

	return g
}

func TestGeminiAdvise(t *testing.T) {
	prompts := make(chan string, 1)
	srv := fakeGemini(t, http.StatusOK, "  Drop the bagels at Daily Bread before 5pm. ", prompts)
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := newTestGemini(t, srv, m)

	got := g.Advise(context.Background(), Request{FoodType: "Bagels", Quantity: "3 dozen", Nearby: nearby()})
	assert.Equal(t, "Drop the bagels at Daily Bread before 5pm.", got)
	assert.Contains(t, <-prompts, "Bagels")
	assert.InDelta(t, 1, testutil.ToFloat64(m.AdvisoryRequests.WithLabelValues("ok")), 0)
}

func TestGeminiAdviseFailure(t *testing.T) {
	srv := fakeGemini(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	g := newTestGemini(t, srv, nil)

	assert.Equal(t, Failed, g.Advise(context.Background(), Request{FoodType: "Soup"}))
	assert.Equal(t, ChatFailed, g.Ask(context.Background(), "hello"))
}

func TestGeminiEmptyReply(t *testing.T) {
	srv := fakeGemini(t, http.StatusOK, "", nil)
	defer srv.Close()

	g := newTestGemini(t, srv, nil)

	assert.Equal(t, NoSuggestion, g.Advise(context.Background(), Request{FoodType: "Soup"}))
	assert.Equal(t, ChatEmpty, g.Ask(context.Background(), "hello"))
}

func TestGeminiAsk(t *testing.T) {
	prompts := make(chan string, 1)
	srv := fakeGemini(t, http.StatusOK, "Call ahead before dropping off.", prompts)
	defer srv.Close()

	g := newTestGemini(t, srv, nil)

	assert.Equal(t, "Call ahead before dropping off.", g.Ask(context.Background(), "Where do I bring soup?"))
	assert.Contains(t, <-prompts, "Where do I bring soup?")
}
