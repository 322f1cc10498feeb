// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package storage

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
)

// Artifact names.
const (
	ArtifactEmbeddings = "item_embeddings"
	ArtifactEncoder    = "trajectory_encoder"
	ArtifactHeadPrefix = "head_"
)

// HeadArtifact returns the artifact name of a scoring head.
func HeadArtifact(head string) string {
	return ArtifactHeadPrefix + head
}

// EmbeddingTable maps item ids to their embedding vectors.
type EmbeddingTable struct {
	Dim     int
	Vectors map[string][]float32
}

// Validate checks every vector has the declared dimension.
func (t *EmbeddingTable) Validate() error {
	if t.Dim < 1 {
		return fmt.Errorf("embedding dim must be at least 1, got %d", t.Dim)
	}
	for id, v := range t.Vectors {
		if len(v) != t.Dim {
			return fmt.Errorf("embedding %s has dim %d, want %d", id, len(v), t.Dim)
		}
	}
	return nil
}

// EncoderState holds the weights of the recurrent trajectory encoder.
// Wx is HiddenDim x InputDim, Wh is HiddenDim x HiddenDim.
type EncoderState struct {
	InputDim  int
	HiddenDim int
	Wx        [][]float64
	Wh        [][]float64
	B         []float64
}

// Validate checks the matrix shapes.
func (s *EncoderState) Validate() error {
	if s.InputDim < 1 || s.HiddenDim < 1 {
		return fmt.Errorf("encoder dims must be positive, got input=%d hidden=%d", s.InputDim, s.HiddenDim)
	}
	if len(s.Wx) != s.HiddenDim || len(s.Wh) != s.HiddenDim || len(s.B) != s.HiddenDim {
		return fmt.Errorf("encoder matrices must have %d rows", s.HiddenDim)
	}
	for i := 0; i < s.HiddenDim; i++ {
		if len(s.Wx[i]) != s.InputDim {
			return fmt.Errorf("wx row %d has %d columns, want %d", i, len(s.Wx[i]), s.InputDim)
		}
		if len(s.Wh[i]) != s.HiddenDim {
			return fmt.Errorf("wh row %d has %d columns, want %d", i, len(s.Wh[i]), s.HiddenDim)
		}
	}
	return nil
}

// Link functions for linear heads.
const (
	LinkLogistic = "logistic"
	LinkIdentity = "identity"
)

// HeadState holds a linear head: output = link(bias + sum(weights[f] * x[f])).
type HeadState struct {
	Name    string
	Link    string
	Bias    float64
	Weights map[string]float64
}

// Validate checks the head definition.
func (s *HeadState) Validate() error {
	if s.Name == "" {
		return errors.New("head name is required")
	}
	if s.Link != LinkLogistic && s.Link != LinkIdentity {
		return fmt.Errorf("head %s: unknown link %q", s.Name, s.Link)
	}
	return nil
}

// Bundle is the set of artifacts the ranking pipeline consumes.
type Bundle struct {
	Embeddings *EmbeddingTable
	Encoder    *EncoderState
	Heads      map[string]*HeadState

	// Versions records the loaded version per artifact.
	Versions map[string]int

	// Missing lists artifacts with no stored version.
	Missing []string
}

// LoadBundle loads the latest version of every artifact. Absent artifacts
// are listed in Missing; a present artifact that fails to load or validate
// is an error.
func LoadBundle(ctx context.Context, s *Store, heads []string) (*Bundle, error) {
	b := &Bundle{
		Heads:    make(map[string]*HeadState, len(heads)),
		Versions: make(map[string]int, len(heads)+2),
	}

	var errs []error
	load := func(name string, target any, validate func() error) bool {
		meta, err := s.Load(ctx, name, 0, target)
		if errors.Is(err, ErrArtifactNotFound) {
			b.Missing = append(b.Missing, name)
			return false
		}
		if err == nil {
			err = validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", name, err))
			return false
		}
		b.Versions[name] = meta.Version
		return true
	}

	var emb EmbeddingTable
	if load(ArtifactEmbeddings, &emb, emb.Validate) {
		b.Embeddings = &emb
	}

	var enc EncoderState
	if load(ArtifactEncoder, &enc, enc.Validate) {
		b.Encoder = &enc
	}

	for _, h := range heads {
		var hs HeadState
		if load(HeadArtifact(h), &hs, hs.Validate) {
			b.Heads[h] = &hs
		}
	}

	sort.Strings(b.Missing)
	return b, errors.Join(errs...)
}

// Register gob types for serialization.
//
//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(EmbeddingTable{})
	gob.Register(EncoderState{})
	gob.Register(HeadState{})
	gob.Register(Metadata{})
	gob.Register(storedFile{})
}
