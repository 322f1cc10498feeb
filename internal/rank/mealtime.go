// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"strconv"
	"time"
)

// PeakMode selects the weight set used by the scorer.
type PeakMode int

const (
	// PeakOff uses the default weights.
	PeakOff PeakMode = iota

	// PeakLunch upweights timing and low prep time.
	PeakLunch

	// PeakDinner upweights AOV and premium complements.
	PeakDinner

	// PeakLateNight upweights low-price impulse items.
	PeakLateNight
)

// String returns the string representation of the peak mode.
func (m PeakMode) String() string {
	switch m {
	case PeakLunch:
		return "lunch"
	case PeakDinner:
		return "dinner"
	case PeakLateNight:
		return "late_night"
	default:
		return "off"
	}
}

// PeakModeAt returns the peak mode for the given local time.
func PeakModeAt(t time.Time, cfg PeakConfig) PeakMode {
	h := t.Hour()
	switch {
	case cfg.Lunch.Contains(h):
		return PeakLunch
	case cfg.Dinner.Contains(h):
		return PeakDinner
	case cfg.LateNight.Contains(h):
		return PeakLateNight
	default:
		return PeakOff
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
