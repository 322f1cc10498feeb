// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// WeightStore receives hot-reloaded weights. scoring.WeightStore satisfies it.
type WeightStore interface {
	Get() rank.WeightSet
	Set(ws rank.WeightSet) (int64, error)
}

// LoadWeights reads a YAML weight set from path. Keys missing from the file
// keep their value from base.
//
//nolint:gocritic // hugeParam: base is copied into the koanf layer anyway
func LoadWeights(path string, base rank.WeightSet) (rank.WeightSet, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(base, "koanf"), nil); err != nil {
		return rank.WeightSet{}, fmt.Errorf("failed to load base weights: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return rank.WeightSet{}, fmt.Errorf("failed to load weights file %s: %w", path, err)
	}
	var ws rank.WeightSet
	if err := k.Unmarshal("", &ws); err != nil {
		return rank.WeightSet{}, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if err := ws.Validate(); err != nil {
		return rank.WeightSet{}, fmt.Errorf("invalid weights in %s: %w", path, err)
	}
	return ws, nil
}

// WatchWeights applies path to store now and again on every change to the
// file. A change that fails to parse or validate is logged and ignored. The
// returned function stops watching.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WatchWeights(path string, store WeightStore, logger zerolog.Logger) (func() error, error) {
	logger = logger.With().Str("component", "weights_watcher").Str("path", path).Logger()

	apply := func() error {
		ws, err := LoadWeights(path, store.Get())
		if err != nil {
			return err
		}
		version, err := store.Set(ws)
		if err != nil {
			return err
		}
		logger.Info().Int64("version", version).Msg("Scoring weights applied")
		return nil
	}

	if err := apply(); err != nil {
		return nil, err
	}

	provider := file.Provider(path)
	err := provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Weights watcher error")
			return
		}
		if err := apply(); err != nil {
			logger.Warn().Err(err).Msg("Ignoring weights change")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return provider.Unwatch, nil
}
