// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"fmt"
	"strings"
	"time"
)

// DietMode is the session dietary toggle.
type DietMode int

const (
	// DietUnset means no explicit toggle.
	DietUnset DietMode = iota

	// DietVeg hard-filters to vegetarian items.
	DietVeg

	// DietVegan hard-filters to vegan items.
	DietVegan

	// DietNonVeg is an explicit "no restriction" toggle.
	DietNonVeg
)

// String returns the string representation of the diet mode.
func (m DietMode) String() string {
	switch m {
	case DietVeg:
		return "veg"
	case DietVegan:
		return "vegan"
	case DietNonVeg:
		return "non-veg"
	default:
		return "unset"
	}
}

// ParseDietMode parses a toggle value. Empty input yields DietUnset.
func ParseDietMode(s string) (DietMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unset", "none":
		return DietUnset, nil
	case "veg", "vegetarian":
		return DietVeg, nil
	case "vegan":
		return DietVegan, nil
	case "non-veg", "nonveg", "non_veg":
		return DietNonVeg, nil
	default:
		return DietUnset, fmt.Errorf("unknown diet mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m DietMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *DietMode) UnmarshalText(text []byte) error {
	parsed, err := ParseDietMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DietSource records which rule produced a DietDecision.
type DietSource string

// Diet decision sources, in priority order.
const (
	DietSourceToggle DietSource = "toggle"
	DietSourceVegDay DietSource = "veg_day"
	DietSourceCart   DietSource = "cart_inference"
	DietSourceNone   DietSource = "none"
)

// DietDecision is the effective dietary handling for one request.
type DietDecision struct {
	// Mode is the hard filter mode. Only DietVeg and DietVegan filter.
	Mode DietMode

	// Source is the rule that decided Mode.
	Source DietSource

	// SoftVeg is set when an all-veg cart suggests, but does not enforce, veg items.
	SoftVeg bool
}

// HardFilter reports whether the decision removes items from the pool.
func (d DietDecision) HardFilter() bool {
	return d.Mode == DietVeg || d.Mode == DietVegan
}

// Allows reports whether the item passes the hard diet filter.
func (d DietDecision) Allows(it *Item) bool {
	switch d.Mode {
	case DietVeg:
		return it.IsVegetarian()
	case DietVegan:
		return it.IsVegan()
	default:
		return true
	}
}

// ResolveDiet resolves the effective diet mode with the priority
// toggle > profile veg day > cart composition. A profile veg day is
// equivalent to a manual veg toggle.
func ResolveDiet(toggle DietMode, profile *UserProfile, now time.Time, cartItems []*Item) DietDecision {
	if toggle != DietUnset {
		return DietDecision{Mode: toggle, Source: DietSourceToggle}
	}

	if profile != nil && profile.IsVegDay(now.Weekday()) {
		return DietDecision{Mode: DietVeg, Source: DietSourceVegDay}
	}

	if len(cartItems) == 0 {
		return DietDecision{Mode: DietUnset, Source: DietSourceNone}
	}

	for _, it := range cartItems {
		if !it.IsVegetarian() {
			return DietDecision{Mode: DietUnset, Source: DietSourceCart}
		}
	}
	return DietDecision{Mode: DietUnset, Source: DietSourceCart, SoftVeg: true}
}
