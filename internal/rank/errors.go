// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPool signals that filtering or retrieval left no candidates.
	// It is reported as Response.Empty and never returned from Rank.
	ErrEmptyPool = errors.New("empty candidate pool")

	// ErrCatalogUnavailable is returned when no catalog snapshot is loaded.
	ErrCatalogUnavailable = errors.New("catalog snapshot unavailable")

	// ErrLatencyBudgetExceeded marks a stage that started after its cutoff.
	ErrLatencyBudgetExceeded = errors.New("latency budget exceeded")

	// ErrSessionNotFound is returned by session stores for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError reports malformed top-level input. It is fatal for the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DataUnavailableError reports a lookup miss for a referenced id. The affected
// item is excluded (or the profile defaulted) and the request continues.
type DataUnavailableError struct {
	// Kind is the data source: "item", "user", "embedding" or "static_feature".
	Kind string
	Key  string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s %q unavailable", e.Kind, e.Key)
}

// ModelUnavailableError reports a head or encoder that could not be invoked.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model %s unavailable", e.Model)
	}
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// LatencyBudgetError records which stage was cut and by how much.
type LatencyBudgetError struct {
	Stage   string
	Elapsed time.Duration
	Cutoff  time.Duration
}

func (e *LatencyBudgetError) Error() string {
	return fmt.Sprintf("%s skipped: elapsed %s exceeds cutoff %s", e.Stage, e.Elapsed, e.Cutoff)
}

// Is makes errors.Is(err, ErrLatencyBudgetExceeded) succeed.
func (e *LatencyBudgetError) Is(target error) bool {
	return target == ErrLatencyBudgetExceeded
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
