// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

// DiscountGap is the distance from the cart value to the next reward.
type DiscountGap struct {
	// Threshold is the nearest threshold strictly above the cart value.
	Threshold DiscountThreshold

	// Gap is Threshold.MinOrder minus the cart value. Always positive.
	Gap float64

	// Proximity is 1 - Gap/Threshold.MinOrder, in [0, 1).
	Proximity float64
}

// NextThreshold returns the nearest reward threshold strictly above the cart
// value. ok is false when every threshold is already reached.
func NextThreshold(r *Restaurant, cartValue float64) (gap DiscountGap, ok bool) {
	if r == nil {
		return DiscountGap{}, false
	}
	for _, th := range r.Thresholds() {
		if th.MinOrder <= cartValue {
			continue
		}
		if !ok || th.MinOrder < gap.Threshold.MinOrder {
			gap.Threshold = th
			ok = true
		}
	}
	if !ok {
		return DiscountGap{}, false
	}
	gap.Gap = gap.Threshold.MinOrder - cartValue
	gap.Proximity = Clamp01(1 - gap.Gap/gap.Threshold.MinOrder)
	return gap, true
}

// Overshoot returns price / gap, or 0 when gap is not positive.
func (g DiscountGap) Overshoot(price float64) float64 {
	if g.Gap <= 0 {
		return 0
	}
	return price / g.Gap
}
