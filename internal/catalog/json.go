// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/addonrail/internal/rank"
)

// jsonSnapshot is the on-disk layout of a JSON catalog file.
type jsonSnapshot struct {
	Restaurants []*rank.Restaurant  `json:"restaurants"`
	Items       []*rank.Item        `json:"items"`
	Users       []*rank.UserProfile `json:"users"`
}

// JSONLoader reads a catalog snapshot from one JSON file.
type JSONLoader struct {
	path string
}

var _ Loader = (*JSONLoader)(nil)

// NewJSONLoader creates a loader for the file at path.
func NewJSONLoader(path string) *JSONLoader {
	return &JSONLoader{path: path}
}

// Load reads and decodes the file.
func (l *JSONLoader) Load(ctx context.Context) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}

	var snap jsonSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.path, err)
	}
	for _, it := range snap.Items {
		normalizeItem(it)
	}
	return &Data{Restaurants: snap.Restaurants, Items: snap.Items, Users: snap.Users}, nil
}

// WriteJSON writes data in the layout JSONLoader reads.
func WriteJSON(path string, data *Data) error {
	raw, err := json.MarshalIndent(jsonSnapshot{
		Restaurants: data.Restaurants,
		Items:       data.Items,
		Users:       data.Users,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// normalizeItem fills fields derivable from others.
func normalizeItem(it *rank.Item) {
	if it == nil {
		return
	}
	if it.Category == rank.CategoryCombo || len(it.ComboComponents) > 0 {
		it.IsCombo = true
	}
	if it.Diet == "" {
		it.Diet = rank.DietClassVeg
		if it.HasTag(rank.TagMeat) || it.HasTag(rank.TagEgg) {
			it.Diet = rank.DietClassNonVeg
		}
	}
}
