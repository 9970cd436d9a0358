// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry keeps the donation posts of the running process and
// arbitrates claims on them.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/zerohunger/connect/spatial"
)

// Status of a donation post.
type Status uint32

const (
	// StatusAvailable posts can be claimed.
	StatusAvailable Status = iota
	// StatusClaimed posts are terminal.
	StatusClaimed
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusClaimed:
		return "claimed"
	default:
		return fmt.Sprintf("Status(%d)", uint32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "available":
		*s = StatusAvailable
	case "claimed":
		*s = StatusClaimed
	default:
		return fmt.Errorf("unknown status %q", text)
	}

	return nil
}

// DefaultVendorName is used when a post is created without a vendor name.
const DefaultVendorName = "Restaurant"

// DonationPost is an offer of surplus food.
type DonationPost struct {
	ID              string        `json:"id"`
	VendorName      string        `json:"vendor_name"`
	VendorAddress   string        `json:"vendor_address"`
	FoodType        string        `json:"food_type"`
	Quantity        string        `json:"quantity"`
	Expiry          string        `json:"expiry,omitempty"`
	Point           spatial.Point `json:"point"`
	Cell            int64         `json:"cell,string"`
	CreatedAt       time.Time     `json:"created_at"`
	ClaimedAt       *time.Time    `json:"claimed_at,omitempty"`
	Status          Status        `json:"status"`
	TargetCommunity string        `json:"target_community"`
}

// CreateInput holds the fields a vendor provides. Point is nil when the
// address never resolved.
type CreateInput struct {
	VendorName      string
	VendorAddress   string
	FoodType        string
	Quantity        string
	Expiry          string
	Point           *spatial.Point
	TargetCommunity string
}

// ValidationError rejects a post before it is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError

	return errors.As(err, &vErr)
}

// ClaimResult is the outcome of a claim attempt.
type ClaimResult int

const (
	ClaimSuccess ClaimResult = iota
	ClaimNotFound
	ClaimAlreadyClaimed
)

func (r ClaimResult) String() string {
	switch r {
	case ClaimSuccess:
		return "success"
	case ClaimNotFound:
		return "not_found"
	case ClaimAlreadyClaimed:
		return "already_claimed"
	default:
		return fmt.Sprintf("ClaimResult(%d)", int(r))
	}
}

// Counts summarises the posts by status.
type Counts struct {
	Available int `json:"available"`
	Claimed   int `json:"claimed"`
}

// Total number of posts.
func (c Counts) Total() int {
	return c.Available + c.Claimed
}
