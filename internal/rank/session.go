// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"time"
)

// CartVersion identifies one exact cart sequence.
type CartVersion struct {
	Length int
	Hash   string
}

// String returns "length:hash".
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (v CartVersion) String() string {
	return strconv.Itoa(v.Length) + ":" + v.Hash
}

// ComputeCartVersion hashes the ordered cart. Reordering, quantity changes
// and additions all yield a new version.
func ComputeCartVersion(lines []CartLine) CartVersion {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l.ItemID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(l.Quantity)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(l.Seq)))
		h.Write([]byte{'\n'})
	}
	return CartVersion{Length: len(lines), Hash: hex.EncodeToString(h.Sum(nil))[:16]}
}

// ShownItem is one item of the last rail shown to the session.
type ShownItem struct {
	ItemID   string   `json:"item_id"`
	Category Category `json:"category"`
}

// SessionState is the per-session mutable state. It is only mutated inside
// SessionStore.Do, which serializes access per session.
type SessionState struct {
	SessionID             string           `json:"session_id"`
	UserID                string           `json:"user_id"`
	RestaurantID          string           `json:"restaurant_id"`
	Cart                  []CartLine       `json:"cart"`
	CartVersion           string           `json:"cart_version"`
	DietToggle            DietMode         `json:"diet_toggle"`
	IgnoreCounters        map[Category]int `json:"ignore_counters"`
	ConsecutiveRejections int              `json:"consecutive_rejections"`
	LastAdditionAt        time.Time        `json:"last_addition_at"`
	AbandonmentRisk       float64          `json:"abandonment_risk"`
	LastShown             []ShownItem      `json:"last_shown,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewSessionState creates an empty session.
func NewSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:      sessionID,
		IgnoreCounters: make(map[Category]int),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Snapshot returns a deep copy safe to read outside the session lock.
func (s *SessionState) Snapshot() SessionState {
	cp := *s
	cp.Cart = append([]CartLine(nil), s.Cart...)
	cp.LastShown = append([]ShownItem(nil), s.LastShown...)
	cp.IgnoreCounters = make(map[Category]int, len(s.IgnoreCounters))
	for k, v := range s.IgnoreCounters {
		cp.IgnoreCounters[k] = v
	}
	return cp
}

// IgnoreCount returns the consecutive-ignore counter for a category.
func (s *SessionState) IgnoreCount(cat Category) int {
	return s.IgnoreCounters[cat]
}

// SyncCart records the cart of the current turn. A cart that grew counts as
// an addition at now.
func (s *SessionState) SyncCart(lines []CartLine, now time.Time) {
	if cartQuantity(lines) > cartQuantity(s.Cart) || len(lines) > len(s.Cart) {
		s.LastAdditionAt = now
	}
	s.Cart = append(s.Cart[:0:0], lines...)
	s.CartVersion = ComputeCartVersion(lines).String()
	s.UpdatedAt = now
}

// RecordShown stores the rail shown in this turn.
func (s *SessionState) RecordShown(slots []RankedSlot) {
	shown := make([]ShownItem, 0, len(slots))
	for _, sl := range slots {
		shown = append(shown, ShownItem{ItemID: sl.ItemID, Category: sl.Category})
	}
	s.LastShown = shown
}

// ApplyFeedback updates fatigue and rejection counters from the items the
// user accepted since the last rail. Shown categories with no accepted item
// are incremented; any category with an accepted item resets to zero.
// categoryOf resolves accepted items that were not part of the shown rail.
func (s *SessionState) ApplyFeedback(accepted []string, categoryOf func(itemID string) (Category, bool), now time.Time) {
	if s.IgnoreCounters == nil {
		s.IgnoreCounters = make(map[Category]int)
	}

	shownCats := make(map[Category]struct{}, len(s.LastShown))
	shownByID := make(map[string]Category, len(s.LastShown))
	for _, sh := range s.LastShown {
		shownCats[sh.Category] = struct{}{}
		shownByID[sh.ItemID] = sh.Category
	}

	acceptedCats := make(map[Category]struct{}, len(accepted))
	for _, id := range accepted {
		if cat, ok := shownByID[id]; ok {
			acceptedCats[cat] = struct{}{}
			continue
		}
		if categoryOf != nil {
			if cat, ok := categoryOf(id); ok {
				acceptedCats[cat] = struct{}{}
			}
		}
	}

	for cat := range shownCats {
		if _, ok := acceptedCats[cat]; ok {
			continue
		}
		s.IgnoreCounters[cat]++
	}
	for cat := range acceptedCats {
		s.IgnoreCounters[cat] = 0
	}

	switch {
	case len(accepted) > 0:
		s.ConsecutiveRejections = 0
		s.LastAdditionAt = now
	case len(s.LastShown) > 0:
		s.ConsecutiveRejections++
	}

	s.LastShown = nil
	s.UpdatedAt = now
}

// AbandonmentRisk combines consecutive rejections and idle time into [0, 1].
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func AbandonmentRisk(rejections int, idle time.Duration, cfg RiskConfig) float64 {
	rej := math.Min(float64(rejections)/float64(cfg.RejectionSaturation), 1)
	idl := 0.0
	if idle > 0 {
		idl = math.Min(float64(idle)/float64(cfg.IdleSaturation), 1)
	}
	return Clamp01(cfg.RejectionWeight*rej + cfg.IdleWeight*idl)
}

// Clamp01 clamps v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func cartQuantity(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}
