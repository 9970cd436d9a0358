// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package textutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerASCIIFolding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  Spaces  ", "spaces"},
		{"Montréal,   Québec", "montreal, quebec"},
		{"Crème Brûlée", "creme brulee"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, LowerASCIIFolding(tc.input))
		})
	}
}

func TestSameLabel(t *testing.T) {
	assert.True(t, SameLabel("100 Queen St W, Toronto", "100 queen st w,  toronto "))
	assert.True(t, SameLabel("Lévis", "levis"))
	assert.False(t, SameLabel("100 Queen St", "100 King St"))
}

func TestAnyToStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
		ok       bool
	}{
		{"nil", nil, nil, true},
		{"[]string", []string{"a", "b"}, []string{"a", "b"}, true},
		{"[]any", []any{"a", "b"}, []string{"a", "b"}, true},
		{"[]any mixed", []any{"a", 1}, nil, false},
		{"not a slice", 42, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := AnyToStringSlice(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{-1234567, "-1,234,567"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatInt(tc.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
