// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package advisory produces short free-text donation advice. Advice is
// best-effort: every failure becomes a fixed sentence, never an error.
package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/zerohunger/connect/needs"
)

// Fixed replies returned instead of errors.
const (
	Unavailable  = "AI Service Unavailable: API Key not configured."
	Failed       = "Unable to generate AI suggestion at this time."
	NoSuggestion = "No suggestion available."

	ChatOffline = "I am offline right now (API Key missing)."
	ChatFailed  = "Error connecting to AI."
	ChatEmpty   = "I didn't understand that."
)

// Request describes a donation to advise on.
type Request struct {
	FoodType string
	Quantity string
	Nearby   []needs.RankedMatch
}

// Advisor is the advisory collaborator.
type Advisor interface {
	// Advise returns a short suggestion for routing the donation.
	Advise(ctx context.Context, req Request) string
	// Ask answers a free-form question from a vendor or visitor.
	Ask(ctx context.Context, message string) string
}

// Offline is the Advisor used when no API key is configured.
type Offline struct{}

// Advise implements Advisor.
func (Offline) Advise(context.Context, Request) string { return Unavailable }

// Ask implements Advisor.
func (Offline) Ask(context.Context, string) string { return ChatOffline }

func bankContext(nearby []needs.RankedMatch) string {
	parts := make([]string, 0, len(nearby))
	for _, m := range nearby {
		parts = append(parts, fmt.Sprintf("%s (%.1fkm away)", m.Name, m.DistanceKm))
	}

	return strings.Join(parts, ", ")
}

func advicePrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are an AI assistant for a food donation platform.\n")
	b.WriteString("Your goal is to help restaurants donate surplus food efficiently to nearby food banks or shelters.\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Only suggest actions related to food redistribution to real shelters/food banks.\n")
	b.WriteString("- Prioritize recommendations based on proximity and capacity of the food banks.\n")
	b.WriteString("- Provide practical advice, e.g., packaging, transport, timing.\n")
	b.WriteString("- Do NOT invent features, buttons, or UI elements.\n")
	b.WriteString("- Keep the response concise (under 50 words).\n\n")
	fmt.Fprintf(&b, "Restaurant's available food: %s\n", req.FoodType)
	fmt.Fprintf(&b, "Quantity: %s\n", req.Quantity)
	fmt.Fprintf(&b, "Nearby food banks: %s\n\n", bankContext(req.Nearby))
	b.WriteString("Provide the best actionable advice for donating this food (keep response under 50 words).\n")

	return b.String()
}

func chatPrompt(message string) string {
	return "You are a helpful assistant for the \"ZeroHunger Connect\" app.\n" +
		"Your goal is to help restaurants donate food and help people find food banks.\n" +
		"User asks: " + message + "\n" +
		"Answer concisely and helpfully."
}
