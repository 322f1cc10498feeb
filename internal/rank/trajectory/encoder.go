// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package trajectory encodes the ordered cart into a fixed-size vector
// capturing the meal being built, and caches it per cart version.
package trajectory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/tomtom215/addonrail/internal/rank/storage"
)

// ErrDimensionMismatch is returned when a step embedding does not match the
// encoder input dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Step is one encoder input: a cart line's embedding and quantity.
type Step struct {
	Embedding []float32
	Quantity  int
}

// Encoder turns an ordered cart into a trajectory vector. Implementations
// must be order-sensitive and safe for concurrent use.
type Encoder interface {
	// Encode returns a vector of length Dim().
	Encode(ctx context.Context, steps []Step) ([]float64, error)

	// Dim returns the output dimension.
	Dim() int
}

// RecurrentEncoder is an Elman recurrence h_t = tanh(Wx x_t + Wh h_{t-1} + b)
// over quantity-scaled cart embeddings. The final hidden state is the output.
// It is immutable after construction.
type RecurrentEncoder struct {
	state storage.EncoderState
}

var _ Encoder = (*RecurrentEncoder)(nil)

// NewRecurrentEncoder validates the weights and returns an encoder.
//
//nolint:gocritic // hugeParam: state is copied so the encoder owns its weights
func NewRecurrentEncoder(state storage.EncoderState) (*RecurrentEncoder, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder state: %w", err)
	}
	return &RecurrentEncoder{state: state}, nil
}

// Dim returns the hidden dimension.
func (e *RecurrentEncoder) Dim() int {
	return e.state.HiddenDim
}

// InputDim returns the expected embedding dimension.
func (e *RecurrentEncoder) InputDim() int {
	return e.state.InputDim
}

// Encode runs the recurrence over steps in order. An empty cart encodes to
// the zero vector.
func (e *RecurrentEncoder) Encode(ctx context.Context, steps []Step) ([]float64, error) {
	s := &e.state
	h := make([]float64, s.HiddenDim)
	next := make([]float64, s.HiddenDim)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(step.Embedding) != s.InputDim {
			return nil, fmt.Errorf("step %d: got %d, want %d: %w", i, len(step.Embedding), s.InputDim, ErrDimensionMismatch)
		}
		scale := float64(step.Quantity)
		if scale < 1 {
			scale = 1
		}

		for r := 0; r < s.HiddenDim; r++ {
			acc := s.B[r]
			wx := s.Wx[r]
			for c, x := range step.Embedding {
				acc += wx[c] * float64(x) * scale
			}
			wh := s.Wh[r]
			for c, hv := range h {
				acc += wh[c] * hv
			}
			next[r] = math.Tanh(acc)
		}
		h, next = next, h
	}
	return h, nil
}

// InitState returns small random weights for bootstrapping a deployment that
// has no trained encoder artifact yet. The result is deterministic per seed.
func InitState(inputDim, hiddenDim int, seed int64) storage.EncoderState {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // weights, not secrets
	scaleX := 1 / math.Sqrt(float64(inputDim))
	scaleH := 1 / math.Sqrt(float64(hiddenDim))

	st := storage.EncoderState{
		InputDim:  inputDim,
		HiddenDim: hiddenDim,
		Wx:        make([][]float64, hiddenDim),
		Wh:        make([][]float64, hiddenDim),
		B:         make([]float64, hiddenDim),
	}
	for r := 0; r < hiddenDim; r++ {
		st.Wx[r] = make([]float64, inputDim)
		for c := range st.Wx[r] {
			st.Wx[r][c] = (rng.Float64()*2 - 1) * scaleX
		}
		st.Wh[r] = make([]float64, hiddenDim)
		for c := range st.Wh[r] {
			st.Wh[r][c] = (rng.Float64()*2 - 1) * scaleH * 0.5
		}
	}
	return st
}
