// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package retrieval selects candidates from the eligible pool by exact inner
// product against a query vector built from the cart and the meal context.
//
// Pools are small (tens of items), so every pool embedding is scored; there
// is no approximate index. Results are deterministic: ties on similarity are
// broken by item id.
package retrieval

import (
	"context"
	"sort"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Retriever implements rank.Retriever.
type Retriever struct {
	cfg rank.RetrievalConfig
}

var _ rank.Retriever = (*Retriever)(nil)

// New creates a retriever.
func New(cfg rank.RetrievalConfig) *Retriever {
	return &Retriever{cfg: cfg}
}

// Retrieve scores every pool item against the turn's query vector and
// returns the top-k. Items without an embedding and items already in the
// cart are excluded.
func (r *Retriever) Retrieve(ctx context.Context, t *rank.Turn, pool []*rank.Item) (rank.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return rank.RetrievalResult{}, err
	}
	if len(pool) == 0 {
		return rank.RetrievalResult{NoCandidates: true}, nil
	}

	var result rank.RetrievalResult
	embedded := make([]*rank.Item, 0, len(pool))
	dim := 0
	for _, it := range pool {
		if t.InCart(it.ID) {
			continue
		}
		if len(it.Embedding) == 0 {
			result.Missing = append(result.Missing, &rank.DataUnavailableError{Kind: "embedding", Key: it.ID})
			continue
		}
		if dim == 0 {
			dim = len(it.Embedding)
		}
		if len(it.Embedding) != dim {
			result.Missing = append(result.Missing, &rank.DataUnavailableError{Kind: "embedding", Key: it.ID})
			continue
		}
		embedded = append(embedded, it)
	}
	if len(embedded) == 0 {
		result.NoCandidates = true
		return result, nil
	}

	query := r.Query(t, embedded, dim)

	candidates := make([]*rank.Candidate, len(embedded))
	for i, it := range embedded {
		candidates[i] = &rank.Candidate{
			Item:       it,
			Similarity: dot(query, it.Embedding),
			Features:   make(rank.Features, 64),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Item.ID < candidates[j].Item.ID
	})

	k := r.cfg.TopK
	if r.cfg.MaxCandidates > 0 && k > r.cfg.MaxCandidates {
		k = r.cfg.MaxCandidates
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result.Candidates = candidates
	return result, nil
}

// Query builds the query vector: a recency-decayed, quantity-weighted mean
// of cart embeddings blended with the meal-period popularity centroid of the
// pool. An empty cart uses the context term alone.
func (r *Retriever) Query(t *rank.Turn, pool []*rank.Item, dim int) []float64 {
	cart := make([]float64, dim)
	var cartWeight float64
	n := len(t.Lines)
	for i, l := range t.Lines {
		if len(l.Item.Embedding) != dim {
			continue
		}
		w := float64(l.Quantity) * pow(r.cfg.RecencyDecay, n-1-i)
		for d, v := range l.Item.Embedding {
			cart[d] += w * float64(v)
		}
		cartWeight += w
	}

	ctxVec := make([]float64, dim)
	var ctxWeight float64
	for _, it := range pool {
		w := it.PopularityFor(t.MealPeriod)
		if w <= 0 {
			continue
		}
		for d, v := range it.Embedding {
			ctxVec[d] += w * float64(v)
		}
		ctxWeight += w
	}

	query := make([]float64, dim)
	if cartWeight == 0 {
		if ctxWeight == 0 {
			return query
		}
		for d := range query {
			query[d] = ctxVec[d] / ctxWeight
		}
		return query
	}

	for d := range query {
		query[d] = r.cfg.CartWeight * cart[d] / cartWeight
		if ctxWeight > 0 {
			query[d] += r.cfg.ContextWeight * ctxVec[d] / ctxWeight
		}
	}
	return query
}

func dot(q []float64, v []float32) float64 {
	var s float64
	for i, x := range v {
		s += q[i] * float64(x)
	}
	return s
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
