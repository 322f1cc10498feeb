// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package features

import "github.com/tomtom215/addonrail/internal/rank"

const defaultAffinity = 0.3

// affinity[cart category][candidate category] is how well a candidate
// complements an item already in the cart.
var affinity = map[rank.Category]map[rank.Category]float64{
	rank.CategoryMain: {
		rank.CategoryBread: 0.9, rank.CategoryRice: 0.85, rank.CategorySide: 0.7,
		rank.CategoryBeverage: 0.6, rank.CategoryDessert: 0.5, rank.CategoryAppetizer: 0.4,
		rank.CategorySoup: 0.4, rank.CategoryMain: 0.2, rank.CategoryCombo: 0.05,
	},
	rank.CategoryBread: {
		rank.CategoryMain: 0.8, rank.CategorySide: 0.5, rank.CategoryBeverage: 0.4,
		rank.CategoryDessert: 0.3, rank.CategoryBread: 0.15, rank.CategoryRice: 0.1,
	},
	rank.CategoryRice: {
		rank.CategoryMain: 0.85, rank.CategorySide: 0.7, rank.CategoryBeverage: 0.5,
		rank.CategoryDessert: 0.4, rank.CategoryBread: 0.1, rank.CategoryRice: 0.05,
	},
	rank.CategorySide: {
		rank.CategoryMain: 0.6, rank.CategoryBeverage: 0.5, rank.CategoryBread: 0.4,
		rank.CategorySide: 0.15,
	},
	rank.CategoryAppetizer: {
		rank.CategoryBeverage: 0.7, rank.CategoryMain: 0.6, rank.CategorySide: 0.4,
		rank.CategoryAppetizer: 0.2,
	},
	rank.CategoryBeverage: {
		rank.CategoryAppetizer: 0.5, rank.CategoryDessert: 0.4, rank.CategoryMain: 0.4,
		rank.CategoryBeverage: 0.05,
	},
	rank.CategoryDessert: {
		rank.CategoryBeverage: 0.4, rank.CategoryDessert: 0.05,
	},
	rank.CategorySoup: {
		rank.CategoryMain: 0.6, rank.CategoryAppetizer: 0.5, rank.CategoryBread: 0.4,
		rank.CategorySoup: 0.05,
	},
	rank.CategoryCombo: {
		rank.CategoryBeverage: 0.7, rank.CategoryDessert: 0.6, rank.CategorySide: 0.5,
		rank.CategoryAppetizer: 0.4, rank.CategoryBread: 0.2, rank.CategoryMain: 0.1,
		rank.CategoryRice: 0.1, rank.CategoryCombo: 0.02,
	},
}

// Affinity returns the pairing affinity between a cart category and a
// candidate category.
func Affinity(cart, candidate rank.Category) float64 {
	if row, ok := affinity[cart]; ok {
		if v, ok := row[candidate]; ok {
			return v
		}
	}
	return defaultAffinity
}

// CartPairingScore averages the affinity of the candidate over the cart lines.
// An empty cart scores 0.
func CartPairingScore(t *rank.Turn, candidate rank.Category) float64 {
	if len(t.Lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range t.Lines {
		sum += Affinity(l.Item.Category, candidate)
	}
	return sum / float64(len(t.Lines))
}
