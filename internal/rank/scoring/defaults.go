// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package scoring

import (
	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/features"
	"github.com/tomtom215/addonrail/internal/rank/storage"
)

// DefaultHeadStates returns hand-set heads used until trained artifacts are
// published. They encode the obvious priors: fill the meal's gaps, pair
// well with the cart, stay near the cart's price level.
func DefaultHeadStates() map[string]*storage.HeadState {
	return map[string]*storage.HeadState{
		rank.HeadAccept: {
			Name: rank.HeadAccept,
			Link: storage.LinkLogistic,
			Bias: -1.2,
			Weights: map[string]float64{
				features.PairingScore:       1.6,
				features.FillsGap:           0.9,
				features.ItemAddonRate:      1.5,
				features.ItemMealPopularity: 0.8,
				features.ItemBestseller:     0.3,
				features.Similarity:         0.6,
				features.TrajAffinity:       0.4,
				features.SeasonalWeight:     0.3,
				features.PriceAnchorRatio:   -0.5,
			},
		},
		rank.HeadAOV: {
			Name: rank.HeadAOV,
			Link: storage.LinkIdentity,
			Bias: 10,
			Weights: map[string]float64{
				features.ItemPrice:    0.7,
				features.PairingScore: 40,
				features.D2DClosesGap: 25,
				features.FillsGap:     15,
			},
		},
		rank.HeadAbandon: {
			Name: rank.HeadAbandon,
			Link: storage.LinkLogistic,
			Bias: -2,
			Weights: map[string]float64{
				features.AbandonmentRisk:       2.5,
				features.ConsecutiveRejections: 0.2,
				features.PriceAnchorRatio:      0.8,
				features.ItemPrepTime:          0.03,
			},
		},
		rank.HeadTiming: {
			Name: rank.HeadTiming,
			Link: storage.LinkLogistic,
			Bias: 0.5,
			Weights: map[string]float64{
				features.ItemPrepTime: -0.06,
				features.FillsGap:     0.4,
				features.CartStage:    0.2,
			},
		},
		rank.HeadAnchor: {
			Name: rank.HeadAnchor,
			Link: storage.LinkLogistic,
			Bias: -1,
			Weights: map[string]float64{
				features.PairingScore:   1.2,
				features.ItemPopularity: 1,
				features.ItemBestseller: 0.6,
				features.FillsGap:       0.7,
				features.D2DClosesGap:   0.3,
			},
		},
	}
}
