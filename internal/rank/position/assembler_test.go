// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package position

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/features"
	"github.com/tomtom215/addonrail/internal/testinfra"
)

func testCatalog() *rank.Catalog {
	return testinfra.Catalog(
		testinfra.NewItem("I090", "Family Feast", rank.CategoryMain, "platter", 400),
		testinfra.NewItem("I091", "Masala Fries", rank.CategorySide, "fries", 60),
	)
}

// cands builds candidates with the given scores and anchor outputs.
func cands(cat *rank.Catalog, spec ...any) []*rank.Candidate {
	var out []*rank.Candidate
	for i := 0; i+2 < len(spec); i += 3 {
		it := testinfra.MustItems(cat, spec[i].(string))[0]
		out = append(out, &rank.Candidate{
			Item:     it,
			Score:    spec[i+1].(float64),
			Heads:    rank.HeadScores{Anchor: spec[i+2].(float64)},
			Features: rank.Features{},
		})
	}
	return out
}

func slotIDs(slots []rank.RankedSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.ItemID
	}
	return out
}

func newAssembler() *Assembler {
	return New(rank.DefaultConfig().Position, zerolog.Nop())
}

func TestAssemble_OvershootNotForced(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})
	turn.CartValue = 250 // gap of 49 to the 299 threshold

	slots, override := newAssembler().Assemble(turn, cands(cat,
		"I090", 0.9, 0.1,
		"I032", 0.5, 0.1,
	), false)

	if override {
		t.Error("₹400 item with gap 49 triggered the override")
	}
	if got := slotIDs(slots); len(got) != 2 || got[0] != "I032" || got[1] != "I090" {
		t.Errorf("slots = %v, want I090 moved to the back", got)
	}
}

func TestAssemble_GapCloserForced(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})
	turn.CartValue = 250

	slots, override := newAssembler().Assemble(turn, cands(cat,
		"I090", 0.9, 0.9,
		"I091", 0.8, 0.1,
		"I040", 0.7, 0.1,
		"I032", 0.6, 0.1,
	), false)

	if !override {
		t.Fatal("₹60 item with gap 49 was not forced")
	}
	got := slotIDs(slots)
	want := []string{"I091", "I040", "I032", "I090"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
	if slots[0].Explanation != "Add Masala Fries to unlock 10% off!" {
		t.Errorf("explanation = %q", slots[0].Explanation)
	}
	for _, s := range slots[1:] {
		if s.Explanation != "" {
			t.Errorf("slot %d has explanation %q", s.Position, s.Explanation)
		}
	}
}

func TestAssemble_AnchorFirstWithoutUrgency(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	// Empty cart: the nearest threshold is 199 away, proximity 0.
	turn := testinfra.NewTurn(cat, nil)

	slots, override := newAssembler().Assemble(turn, cands(cat,
		"I040", 0.9, 0.2,
		"I050", 0.8, 0.9,
		"I020", 0.7, 0.5,
	), false)

	if override {
		t.Error("override without urgency")
	}
	got := slotIDs(slots)
	want := []string{"I050", "I040", "I020"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
	if slots[0].Explanation == "" {
		t.Error("position 1 has no explanation")
	}
	for i, s := range slots {
		if s.Position != i+1 {
			t.Errorf("slot %d has position %d", i, s.Position)
		}
	}
}

func TestAssemble_RiskRaisesUrgency(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	list := func() []*rank.Candidate {
		return cands(cat,
			"I040", 0.9, 0.9,
			"I053", 0.8, 0.1,
		)
	}

	// Cart 199, next threshold 299: proximity 0.67, urgency 0.47 without risk.
	calm := testinfra.NewTurn(cat, []string{"I003"})
	slots, override := newAssembler().Assemble(calm, list(), false)
	if override || slots[0].ItemID != "I040" {
		t.Errorf("calm session: override=%v first=%s, want anchor I040", override, slots[0].ItemID)
	}

	risky := testinfra.NewTurn(cat, []string{"I003"}, testinfra.WithRisk(1, 5*time.Minute))
	slots, override = newAssembler().Assemble(risky, list(), false)
	if !override || slots[0].ItemID != "I053" {
		t.Errorf("risky session: override=%v first=%s, want forced I053", override, slots[0].ItemID)
	}
}

func TestAssemble_DegradedKeepsOrder(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})
	turn.CartValue = 250

	in := cands(cat,
		"I090", 0.9, 0.1,
		"I040", 0.8, 0.9,
		"I091", 0.7, 0.1,
	)
	slots, override := newAssembler().Assemble(turn, in, true)
	if override {
		t.Error("degraded path applied the override")
	}
	got := slotIDs(slots)
	want := []string{"I090", "I040", "I091"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("slots = %v, want input order %v", got, want)
	}
	if slots[0].Explanation == "" {
		t.Error("degraded position 1 has no explanation")
	}
}

func TestAssemble_TruncatesToWidth(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	var spec []any
	items := []string{"I010", "I011", "I013", "I020", "I021", "I022", "I023", "I030", "I031", "I032", "I040", "I041", "I050", "I051"}
	for i, id := range items {
		spec = append(spec, id, 1-float64(i)*0.01, 0.1)
	}
	slots, _ := newAssembler().Assemble(testinfra.NewTurn(cat, nil), cands(cat, spec...), false)
	if len(slots) != 10 {
		t.Fatalf("len = %d, want 10", len(slots))
	}
	if slots[9].Position != 10 {
		t.Errorf("last position = %d, want 10", slots[9].Position)
	}

	empty, _ := newAssembler().Assemble(testinfra.NewTurn(cat, nil), nil, false)
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty input = %v, want empty non-nil slice", empty)
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})

	tests := []struct {
		name          string
		item          string
		contributions map[string]float64
		features      rank.Features
		want          string
	}{
		{"beverage gap", "I040", map[string]float64{features.FillsGap: 0.5, features.PairingScore: 0.3}, nil, "Complete your meal with a drink!"},
		{"dessert gap", "I050", map[string]float64{features.GapDessert: 0.4}, nil, "Finish with something sweet!"},
		{"pairing", "I020", map[string]float64{features.PairingScore: 0.6, features.FillsGap: -0.1}, nil, "Pairs well with your Paneer Butter Masala"},
		{"negative dominates", "I020", map[string]float64{features.ItemBestseller: 0.1, features.ItemAddonRate: -0.7}, nil, "Often added to orders like yours"},
		{"discount", "I040", map[string]float64{features.D2DClosesGap: 0.8}, nil, "Just ₹50 more for 10% off"},
		{"meal popularity", "I040", map[string]float64{features.ItemMealPopularity: 0.8}, nil, "Popular for dinner"},
		{"no contributions with gap", "I040", nil, rank.Features{features.FillsGap: 1}, "Complete your meal with a drink!"},
		{"no contributions", "I035", nil, nil, defaultExplanation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &rank.Candidate{
				Item:          testinfra.MustItems(cat, tt.item)[0],
				Contributions: tt.contributions,
				Features:      tt.features,
			}
			if got := Explain(turn, c); got != tt.want {
				t.Errorf("Explain() = %q, want %q", got, tt.want)
			}
		})
	}
}
