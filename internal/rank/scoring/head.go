// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/storage"
)

// Head predicts one objective from a feature record.
type Head interface {
	Name() string
	Predict(ctx context.Context, f rank.Features) (float64, error)
}

// Explainer is implemented by heads that can attribute a prediction to
// individual features. Contributions are in the head's pre-link space.
type Explainer interface {
	Contributions(f rank.Features) map[string]float64
}

// LinearHead is an artifact-backed linear model with a logistic or identity
// link. It is immutable and safe for concurrent use.
type LinearHead struct {
	name     string
	logistic bool
	bias     float64
	names    []string
	weights  []float64
}

var (
	_ Head      = (*LinearHead)(nil)
	_ Explainer = (*LinearHead)(nil)
)

// NewLinearHead builds a head from its stored state.
//
//nolint:gocritic // hugeParam: state is copied so the head owns its weights
func NewLinearHead(state storage.HeadState) (*LinearHead, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(state.Weights))
	for n := range state.Weights {
		names = append(names, n)
	}
	sort.Strings(names)

	weights := make([]float64, len(names))
	for i, n := range names {
		w := state.Weights[n]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("head %s: weight %s is not finite", state.Name, n)
		}
		weights[i] = w
	}

	return &LinearHead{
		name:     state.Name,
		logistic: state.Link == storage.LinkLogistic,
		bias:     state.Bias,
		names:    names,
		weights:  weights,
	}, nil
}

// Name returns the head name.
func (h *LinearHead) Name() string {
	return h.name
}

// Predict returns link(bias + w·x). Missing features count as 0.
func (h *LinearHead) Predict(_ context.Context, f rank.Features) (float64, error) {
	z := h.bias
	for i, n := range h.names {
		z += h.weights[i] * f[n]
	}
	if h.logistic {
		return sigmoid(z), nil
	}
	return z, nil
}

// Contributions returns w_i * x_i for every non-zero term.
func (h *LinearHead) Contributions(f rank.Features) map[string]float64 {
	out := make(map[string]float64, len(h.names))
	for i, n := range h.names {
		if v := h.weights[i] * f[n]; v != 0 {
			out[n] = v
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// BuildHeads turns stored head states into heads keyed by name.
func BuildHeads(states map[string]*storage.HeadState) (map[string]Head, error) {
	out := make(map[string]Head, len(states))
	for name, st := range states {
		if st == nil {
			continue
		}
		h, err := NewLinearHead(*st)
		if err != nil {
			return nil, fmt.Errorf("build head %s: %w", name, err)
		}
		out[name] = h
	}
	return out, nil
}
