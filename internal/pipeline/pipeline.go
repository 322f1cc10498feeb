// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package pipeline assembles the ranking engine from its stages and keeps
// the swappable parts (catalog, embeddings, encoder, heads, static features)
// current.
//
// New builds every stage from one rank.Config. Reload re-reads the artifact
// directory and the catalog source and installs whatever changed; the
// artifact refresh service calls it on an interval and the admin reload
// endpoint calls it on demand. Requests in flight keep the versions they
// started with.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/catalog"
	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/features"
	"github.com/tomtom215/addonrail/internal/rank/filters"
	"github.com/tomtom215/addonrail/internal/rank/position"
	"github.com/tomtom215/addonrail/internal/rank/postrank"
	"github.com/tomtom215/addonrail/internal/rank/retrieval"
	"github.com/tomtom215/addonrail/internal/rank/scoring"
	"github.com/tomtom215/addonrail/internal/rank/storage"
	"github.com/tomtom215/addonrail/internal/rank/trajectory"
	"github.com/tomtom215/addonrail/internal/session"
)

// bootstrapSeed seeds the encoder used until a trained encoder is published.
const bootstrapSeed = 42

// Deps are the collaborators New needs. Catalog and Sessions are required.
type Deps struct {
	Catalog  *catalog.Store
	Sessions session.Store

	// Artifacts is the model artifact store. Without it the pipeline runs
	// on the default heads and a bootstrap encoder.
	Artifacts *storage.Store

	// FeatureSource overlays externally computed item features. Optional.
	FeatureSource features.Source

	// Observer receives stage timings. Optional.
	Observer rank.Observer

	// BreakerHook is told about head breaker transitions. Optional.
	BreakerHook scoring.StateHook

	// Clock replaces the wall clock. Optional.
	Clock func() time.Time
}

// Pipeline owns the engine and its swappable stages.
type Pipeline struct {
	Engine     *rank.Engine
	Catalog    *catalog.Store
	Sessions   session.Store
	Filters    *filters.Chain
	Static     *features.StaticStore
	Trajectory *trajectory.Adapter
	Scorer     *scoring.Scorer
	PostRank   *postrank.Processor

	artifacts *storage.Store
	logger    zerolog.Logger

	reloadMu     sync.Mutex
	headVersions map[string]int
	lastReload   ReloadReport
}

// ReloadReport describes what a Reload changed.
type ReloadReport struct {
	CatalogVersion    int64          `json:"catalog_version"`
	EmbeddingsVersion int            `json:"embeddings_version"`
	EncoderVersion    int            `json:"encoder_version"`
	HeadVersions      map[string]int `json:"head_versions"`
	MissingArtifacts  []string       `json:"missing_artifacts,omitempty"`
	Changed           []string       `json:"changed,omitempty"`
	At                time.Time      `json:"at"`
}

// New builds the pipeline. No artifacts are loaded until Reload.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func New(cfg *rank.Config, deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = rank.DefaultConfig()
	}
	if deps.Catalog == nil {
		return nil, errors.New("pipeline: catalog store is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("pipeline: session store is required")
	}

	heads, err := scoring.BuildHeads(scoring.DefaultHeadStates())
	if err != nil {
		return nil, fmt.Errorf("build default heads: %w", err)
	}

	var scorerOpts []scoring.Option
	if deps.BreakerHook != nil {
		scorerOpts = append(scorerOpts, scoring.WithStateHook(deps.BreakerHook))
	}

	p := &Pipeline{
		Catalog:      deps.Catalog,
		Sessions:     deps.Sessions,
		Filters:      filters.NewChain(cfg.Filters),
		Static:       features.NewStaticStore(deps.FeatureSource, logger),
		Trajectory:   trajectory.NewAdapter(nil, cfg.Trajectory, logger),
		Scorer:       scoring.NewScorer(cfg.Scoring, nil, heads, logger, scorerOpts...),
		PostRank:     postrank.New(cfg.PostRank, cfg.Position.OutputWidth, cfg.Retrieval.MaxCandidates, logger),
		artifacts:    deps.Artifacts,
		logger:       logger.With().Str("component", "pipeline").Logger(),
		headVersions: make(map[string]int),
	}

	comp := rank.Components{
		Catalog:    deps.Catalog,
		Sessions:   deps.Sessions,
		Filters:    p.Filters,
		Retriever:  retrieval.New(cfg.Retrieval),
		Trajectory: p.Trajectory,
		Features:   features.NewAssembler(cfg.Features, p.Static, logger),
		Scorer:     p.Scorer,
		PostRanker: p.PostRank,
		Positioner: position.New(cfg.Position, logger),
		Observer:   deps.Observer,
	}

	var opts []rank.Option
	if deps.Clock != nil {
		opts = append(opts, rank.WithClock(deps.Clock))
	}
	p.Engine, err = rank.NewEngine(cfg, comp, logger, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Reload refreshes the catalog (when the store has a loader), installs new
// artifact versions and rebuilds the static feature snapshot. A failing
// source leaves the previous versions in place; the errors are joined.
func (p *Pipeline) Reload(ctx context.Context) (ReloadReport, error) {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	var errs []error
	var changed []string

	before := p.Catalog.Current()
	if err := p.Catalog.Refresh(ctx); err != nil && !errors.Is(err, catalog.ErrNoLoader) {
		errs = append(errs, err)
	}

	var missing []string
	if p.artifacts != nil {
		ch, miss, err := p.reloadArtifacts(ctx)
		changed = append(changed, ch...)
		missing = miss
		if err != nil {
			errs = append(errs, err)
		}
	}

	if p.Trajectory.Version() == 0 && p.Trajectory.Dim() == 0 {
		installed, err := p.bootstrapEncoder()
		if err != nil {
			errs = append(errs, err)
		} else if installed {
			changed = append(changed, storage.ArtifactEncoder)
		}
	}

	cat := p.Catalog.Current()
	if cat != nil && cat != before {
		changed = append(changed, "catalog")
	}
	if cat != nil {
		if err := p.Static.Refresh(ctx, cat); err != nil {
			errs = append(errs, fmt.Errorf("refresh static features: %w", err))
		}
	}

	report := ReloadReport{
		EmbeddingsVersion: p.Catalog.EmbeddingsVersion(),
		EncoderVersion:    p.Trajectory.Version(),
		HeadVersions:      p.copyHeadVersions(),
		MissingArtifacts:  missing,
		Changed:           changed,
		At:                time.Now(),
	}
	if cat != nil {
		report.CatalogVersion = cat.Version
	}
	p.lastReload = report

	if len(changed) > 0 {
		p.logger.Info().
			Strs("changed", changed).
			Int64("catalog_version", report.CatalogVersion).
			Int("encoder_version", report.EncoderVersion).
			Msg("pipeline reloaded")
	}
	return report, errors.Join(errs...)
}

// LastReload returns the report of the most recent Reload.
func (p *Pipeline) LastReload() ReloadReport {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()
	return p.lastReload
}

// Ready reports whether the pipeline can serve requests.
func (p *Pipeline) Ready() error {
	if p.Catalog.Current() == nil {
		return rank.ErrCatalogUnavailable
	}
	if p.Static.Current() == nil {
		return errors.New("static features not loaded")
	}
	return nil
}

func (p *Pipeline) reloadArtifacts(ctx context.Context) (changed, missing []string, err error) {
	if err := p.artifacts.Rescan(); err != nil {
		return nil, nil, fmt.Errorf("rescan artifacts: %w", err)
	}
	bundle, loadErr := storage.LoadBundle(ctx, p.artifacts, rank.HeadNames)
	if bundle == nil {
		return nil, nil, loadErr
	}

	if bundle.Embeddings != nil {
		v := bundle.Versions[storage.ArtifactEmbeddings]
		if v != p.Catalog.EmbeddingsVersion() {
			p.Catalog.SetEmbeddings(v, bundle.Embeddings.Vectors)
			changed = append(changed, storage.ArtifactEmbeddings)
		}
	}

	if bundle.Encoder != nil {
		v := bundle.Versions[storage.ArtifactEncoder]
		if v != p.Trajectory.Version() {
			enc, err := trajectory.NewRecurrentEncoder(*bundle.Encoder)
			if err != nil {
				loadErr = errors.Join(loadErr, err)
			} else {
				p.Trajectory.SetEncoder(enc, v)
				changed = append(changed, storage.ArtifactEncoder)
			}
		}
	}

	if ch, err := p.installHeads(bundle); err != nil {
		loadErr = errors.Join(loadErr, err)
	} else {
		changed = append(changed, ch...)
	}

	return changed, bundle.Missing, loadErr
}

// installHeads swaps in the head set when any head artifact changed. Heads
// without an artifact keep their defaults.
func (p *Pipeline) installHeads(bundle *storage.Bundle) ([]string, error) {
	var changed []string
	for _, name := range rank.HeadNames {
		if _, ok := bundle.Heads[name]; !ok {
			continue
		}
		if v := bundle.Versions[storage.HeadArtifact(name)]; v != p.headVersions[name] {
			changed = append(changed, storage.HeadArtifact(name))
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	states := scoring.DefaultHeadStates()
	for name, st := range bundle.Heads {
		states[name] = st
	}
	heads, err := scoring.BuildHeads(states)
	if err != nil {
		return nil, err
	}

	version := 0
	for name := range bundle.Heads {
		v := bundle.Versions[storage.HeadArtifact(name)]
		p.headVersions[name] = v
		if v > version {
			version = v
		}
	}
	p.Scorer.SetHeads(heads, version)
	return changed, nil
}

// bootstrapEncoder installs a seeded encoder sized to the catalog embeddings
// so trajectory features exist before a trained encoder is published. The
// hidden size matches the embedding size so traj_affinity is defined.
func (p *Pipeline) bootstrapEncoder() (bool, error) {
	cat := p.Catalog.Current()
	if cat == nil {
		return false, nil
	}
	dim := 0
	for _, it := range cat.Items() {
		if len(it.Embedding) > 0 {
			dim = len(it.Embedding)
			break
		}
	}
	if dim == 0 {
		return false, nil
	}
	enc, err := trajectory.NewRecurrentEncoder(trajectory.InitState(dim, dim, bootstrapSeed))
	if err != nil {
		return false, fmt.Errorf("bootstrap encoder: %w", err)
	}
	p.Trajectory.SetEncoder(enc, 0)
	return true, nil
}

func (p *Pipeline) copyHeadVersions() map[string]int {
	out := make(map[string]int, len(p.headVersions))
	for k, v := range p.headVersions {
		out[k] = v
	}
	return out
}
