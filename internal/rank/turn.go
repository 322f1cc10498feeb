// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"time"
)

// ResolvedLine is a cart line joined with its catalog item.
type ResolvedLine struct {
	CartLine
	Item *Item
}

// Turn is the explicit per-request context passed through every stage.
// It is built once by the Engine and is read-only for the stages.
type Turn struct {
	// Request is the validated request.
	Request Request

	// Session is a snapshot of the session state at the start of the turn.
	Session SessionState

	// Catalog is the snapshot used for the whole request.
	Catalog *Catalog

	// Restaurant is the restaurant being ranked.
	Restaurant *Restaurant

	// User is the profile, or a zero-value profile when unknown.
	User *UserProfile

	// Lines are the cart lines whose items resolved, in cart order.
	Lines []ResolvedLine

	// Diet is the resolved dietary decision.
	Diet DietDecision

	// Now is the request time.
	Now time.Time

	// MealPeriod is the meal period used for popularity and time-of-day rules.
	MealPeriod MealPeriod

	// Peak is the peak-hour mode.
	Peak PeakMode

	// CartValue is the sum of price times quantity over resolved lines.
	CartValue float64

	// Version is the cart version.
	Version CartVersion

	// IdleTime is the time since the last cart addition.
	IdleTime time.Duration

	// Risk is the abandonment-risk composite for this turn.
	Risk float64

	// Missing collects DataUnavailableErrors for referenced ids.
	Missing []error

	cartIDs map[string]struct{}
}

// NewTurn builds a Turn. Unknown cart items are excluded from Lines and
// recorded in Missing, but their ids still count for dedup.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func NewTurn(req Request, session SessionState, catalog *Catalog, restaurant *Restaurant, now time.Time) *Turn {
	t := &Turn{
		Request:    req,
		Session:    session,
		Catalog:    catalog,
		Restaurant: restaurant,
		Now:        now,
		Version:    ComputeCartVersion(req.Cart),
		cartIDs:    make(map[string]struct{}, len(req.Cart)),
	}

	for _, l := range req.Cart {
		t.cartIDs[l.ItemID] = struct{}{}
		it, ok := catalog.Item(l.ItemID)
		if !ok {
			t.Missing = append(t.Missing, &DataUnavailableError{Kind: "item", Key: l.ItemID})
			continue
		}
		t.Lines = append(t.Lines, ResolvedLine{CartLine: l, Item: it})
		t.CartValue += it.Price * float64(l.Quantity)
	}

	if u, ok := catalog.User(req.UserID); ok {
		t.User = u
	} else {
		t.User = &UserProfile{ID: req.UserID}
		if req.UserID != "" {
			t.Missing = append(t.Missing, &DataUnavailableError{Kind: "user", Key: req.UserID})
		}
	}

	t.MealPeriod = req.MealPeriod
	if t.MealPeriod == "" {
		t.MealPeriod = MealPeriodAt(now)
	}

	return t
}

// InCart reports whether the item id is already in the cart.
func (t *Turn) InCart(itemID string) bool {
	_, ok := t.cartIDs[itemID]
	return ok
}

// CartItems returns the resolved cart items in order.
func (t *Turn) CartItems() []*Item {
	out := make([]*Item, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = l.Item
	}
	return out
}

// TotalQuantity returns the total cart quantity over resolved lines.
func (t *Turn) TotalQuantity() int {
	total := 0
	for _, l := range t.Lines {
		total += l.Quantity
	}
	return total
}

// AvgItemPrice returns the quantity-weighted average item price, or 0 for an empty cart.
func (t *Turn) AvgItemPrice() float64 {
	q := t.TotalQuantity()
	if q == 0 {
		return 0
	}
	return t.CartValue / float64(q)
}

// FirstItem returns the earliest-added resolved item, or nil.
func (t *Turn) FirstItem() *Item {
	if len(t.Lines) == 0 {
		return nil
	}
	return t.Lines[0].Item
}

// ComboLines returns the resolved lines that are combos.
func (t *Turn) ComboLines() []ResolvedLine {
	var out []ResolvedLine
	for _, l := range t.Lines {
		if l.Item.IsCombo {
			out = append(out, l)
		}
	}
	return out
}

// SubcategoryQuantities counts cart quantity per subcategory, expanding combos
// into their component subcategories.
func (t *Turn) SubcategoryQuantities() map[string]int {
	out := make(map[string]int)
	for _, l := range t.Lines {
		if l.Item.IsCombo && len(l.Item.ComboComponents) > 0 {
			for _, sub := range l.Item.ComboComponents {
				out[sub] += l.Quantity
			}
			continue
		}
		out[l.Item.Subcategory] += l.Quantity
	}
	return out
}

// CategoryQuantities counts cart quantity per category after combo decomposition.
func (t *Turn) CategoryQuantities() map[Category]int {
	out := make(map[Category]int)
	for _, l := range t.Lines {
		if l.Item.IsCombo && len(l.Item.ComboComponents) > 0 {
			for _, sub := range l.Item.ComboComponents {
				if cat, ok := t.Catalog.CategoryOf(sub); ok {
					out[cat] += l.Quantity
				}
			}
			continue
		}
		out[l.Item.Category] += l.Quantity
	}
	return out
}

// EffectiveCategories returns the set of categories present after combo decomposition.
func (t *Turn) EffectiveCategories() map[Category]bool {
	out := make(map[Category]bool)
	for cat, q := range t.CategoryQuantities() {
		if q > 0 {
			out[cat] = true
		}
	}
	return out
}
