// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package advisory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zerohunger/connect/metrics"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used for advice.
const DefaultModel = "gemini-2.5-flash"

// GeminiOptions configures a Gemini advisor.
type GeminiOptions struct {
	// Model defaults to DefaultModel.
	Model string

	// Timeout bounds one generation call (15s).
	Timeout time.Duration

	Metrics *metrics.Metrics

	// ClientOptions are passed to the API client after the key.
	ClientOptions []option.ClientOption
}

// Gemini asks the Generative Language API for advice.
type Gemini struct {
	svc     *generativelanguage.Service
	model   string
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewGemini creates a Gemini advisor authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey string, opts GeminiOptions) (*Gemini, error) {
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts.ClientOptions...)

	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating generative language client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Gemini{svc: svc, model: model, timeout: timeout, metrics: opts.Metrics}, nil
}

// New returns a Gemini advisor, or Offline when apiKey is empty or the
// client cannot be built.
func New(ctx context.Context, apiKey string, opts GeminiOptions) Advisor {
	if apiKey == "" {
		log.Println("GEMINI_API_KEY is not set; donation advice is disabled")

		return Offline{}
	}

	g, err := NewGemini(ctx, apiKey, opts)
	if err != nil {
		log.Printf("⚠️ %v; donation advice is disabled", err)

		return Offline{}
	}

	return g
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}

		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}

		break
	}

	return strings.TrimSpace(b.String()), nil
}

// Advise implements Advisor.
func (g *Gemini) Advise(ctx context.Context, req Request) string {
	text, err := g.generate(ctx, advicePrompt(req))
	if err != nil {
		log.Printf("⚠️ gemini advice failed: %v", err)
		g.metrics.ObserveAdvisory("error")

		return Failed
	}

	if text == "" {
		g.metrics.ObserveAdvisory("empty")

		return NoSuggestion
	}

	g.metrics.ObserveAdvisory("ok")

	return text
}

// Ask implements Advisor.
func (g *Gemini) Ask(ctx context.Context, message string) string {
	text, err := g.generate(ctx, chatPrompt(message))
	if err != nil {
		log.Printf("⚠️ gemini chat failed: %v", err)

		return ChatFailed
	}

	if text == "" {
		return ChatEmpty
	}

	return text
}
