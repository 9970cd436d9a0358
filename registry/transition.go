// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"
)

// EventKind is something that happens to a post.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventClaimed EventKind = "claimed"
)

// ErrInvalidTransition is returned by Transition for a rejected event.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition applies ev to a post in state from. It is the only place the
// post lifecycle is defined.
func Transition(from Status, ev EventKind) (Status, error) {
	switch {
	case from == StatusAvailable && ev == EventClaimed:
		return StatusClaimed, nil
	default:
		return from, fmt.Errorf("%w: %s on %s post", ErrInvalidTransition, ev, from)
	}
}

// Event is published to subscribers after a post changes. Post is a copy.
type Event struct {
	Kind EventKind    `json:"kind"`
	Post DonationPost `json:"post"`
}
