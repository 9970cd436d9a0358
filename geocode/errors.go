// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GeocodingError is a provider failure. The resolver degrades every
// GeocodingError to an empty result; callers never see it.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies geocoding failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit provider throttled us.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded quota exhausted or key rejected.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout request deadline exceeded.
	ErrorTypeTimeout
	// ErrorTypeNotFound no match for the query.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest malformed request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError transport failure or upstream unavailable.
	ErrorTypeNetworkError
	// ErrorTypeCanceled the query was superseded.
	ErrorTypeCanceled
	// ErrorTypeDecode unreadable response.
	ErrorTypeDecode
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeQuotaExceeded:  "quota_exceeded",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeInvalidRequest: "invalid_request",
	ErrorTypeNetworkError:   "network",
	ErrorTypeCanceled:       "canceled",
	ErrorTypeDecode:         "decode",
}

func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// TypeOf returns the ErrorType of err, classifying plain errors on the fly.
func TypeOf(err error) ErrorType {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type
	}

	return Classify(err).Type
}

// IsRateLimitError reports whether err is a throttling failure.
func IsRateLimitError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether err is a quota failure.
func IsQuotaExceededError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether err is a deadline failure.
func IsTimeoutError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// Classify wraps a transport level error into a GeocodingError.
func Classify(err error) *GeocodingError {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr
	}

	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return &GeocodingError{Type: ErrorTypeCanceled, Message: "query canceled", Err: err}
	case IsTimeoutError(err), errors.As(err, &netErr) && netErr.Timeout():
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
	case errors.As(err, &netErr):
		return &GeocodingError{Type: ErrorTypeNetworkError, Message: "network error", Err: err}
	default:
		return &GeocodingError{Type: ErrorTypeUnknown, Message: "geocoding failed", Err: err}
	}
}

// ClassifyHTTPError maps an HTTP status to a GeocodingError.
func ClassifyHTTPError(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &GeocodingError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: "quota exceeded or access denied",
		}
	case http.StatusBadRequest:
		return &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusNotFound:
		return &GeocodingError{
			Type:    ErrorTypeNotFound,
			Message: "location not found",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
