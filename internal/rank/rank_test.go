// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"math"
	"testing"
	"time"
)

func TestResolveDiet(t *testing.T) {
	t.Parallel()

	wednesday := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	vegDayUser := &UserProfile{ID: "U1", VegDays: []time.Weekday{time.Wednesday}}
	plainUser := &UserProfile{ID: "U2"}

	paneer := &Item{ID: "A", Diet: DietClassVeg, Contains: []string{TagDairy}}
	chicken := &Item{ID: "B", Diet: DietClassNonVeg, Contains: []string{TagMeat}}

	tests := []struct {
		name     string
		toggle   DietMode
		user     *UserProfile
		cart     []*Item
		wantMode DietMode
		wantSrc  DietSource
		wantSoft bool
	}{
		{"toggle wins over veg day", DietNonVeg, vegDayUser, []*Item{chicken}, DietNonVeg, DietSourceToggle, false},
		{"vegan toggle", DietVegan, plainUser, nil, DietVegan, DietSourceToggle, false},
		{"veg day acts as toggle", DietUnset, vegDayUser, []*Item{chicken}, DietVeg, DietSourceVegDay, false},
		{"empty cart no filter", DietUnset, plainUser, nil, DietUnset, DietSourceNone, false},
		{"non-veg in cart", DietUnset, plainUser, []*Item{paneer, chicken}, DietUnset, DietSourceCart, false},
		{"all veg cart prefers veg", DietUnset, plainUser, []*Item{paneer}, DietUnset, DietSourceCart, true},
		{"unknown user", DietUnset, nil, []*Item{paneer}, DietUnset, DietSourceCart, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveDiet(tt.toggle, tt.user, wednesday, tt.cart)
			if got.Mode != tt.wantMode || got.Source != tt.wantSrc || got.SoftVeg != tt.wantSoft {
				t.Errorf("ResolveDiet() = %+v, want mode=%s source=%s soft=%v", got, tt.wantMode, tt.wantSrc, tt.wantSoft)
			}
		})
	}
}

func TestDietDecision_Allows(t *testing.T) {
	t.Parallel()

	// "untagged veg" is a veg_flag=true catalog row.
	items := map[string]*Item{
		"vegan":        {Diet: DietClassVegan},
		"dairy":        {Diet: DietClassVeg, Contains: []string{TagDairy}},
		"honey":        {Diet: DietClassVeg, Contains: []string{TagHoney}},
		"egg":          {Diet: DietClassNonVeg, Contains: []string{TagEgg}},
		"meat":         {Diet: DietClassNonVeg, Contains: []string{TagMeat}},
		"tagged":       {Diet: DietClassVeg, Contains: []string{TagEgg}},
		"untagged veg": {Diet: DietClassVeg, Name: "Mango Lassi"},
		"vegan honey":  {Diet: DietClassVegan, Contains: []string{TagHoney}},
	}
	tests := []struct {
		mode DietMode
		want map[string]bool
	}{
		{DietVeg, map[string]bool{"vegan": true, "dairy": true, "honey": true, "egg": false, "meat": false, "tagged": false, "untagged veg": true, "vegan honey": true}},
		{DietVegan, map[string]bool{"vegan": true, "dairy": false, "honey": false, "egg": false, "meat": false, "tagged": false, "untagged veg": false, "vegan honey": false}},
		{DietUnset, map[string]bool{"vegan": true, "dairy": true, "honey": true, "egg": true, "meat": true, "tagged": true, "untagged veg": true, "vegan honey": true}},
	}
	for _, tt := range tests {
		d := DietDecision{Mode: tt.mode}
		for name, want := range tt.want {
			if got := d.Allows(items[name]); got != want {
				t.Errorf("%s allows %s = %v, want %v", tt.mode, name, got, want)
			}
		}
	}
}

func TestParseDietMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]DietMode{"": DietUnset, "VEG": DietVeg, " vegan ": DietVegan, "non_veg": DietNonVeg} {
		got, err := ParseDietMode(in)
		if err != nil || got != want {
			t.Errorf("ParseDietMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDietMode("pescatarian"); err == nil {
		t.Error("ParseDietMode() accepted an unknown mode")
	}

	var m DietMode
	if err := m.UnmarshalText([]byte("vegan")); err != nil || m != DietVegan {
		t.Errorf("UnmarshalText() = %v, %v", m, err)
	}
}

func TestNextThreshold(t *testing.T) {
	t.Parallel()

	r := &Restaurant{
		FreeDeliveryMin: 199,
		Discounts: []DiscountThreshold{
			{Kind: ThresholdFreeItem, MinOrder: 399, FreeItem: "Free Dessert"},
			{Kind: ThresholdPercentage, MinOrder: 299, DiscountPct: 10},
		},
	}

	tests := []struct {
		name      string
		cartValue float64
		wantMin   float64
		wantKind  ThresholdKind
		wantOK    bool
	}{
		{"empty cart", 0, 199, ThresholdFreeDelivery, true},
		{"below free delivery", 150, 199, ThresholdFreeDelivery, true},
		{"exactly at threshold moves on", 199, 299, ThresholdPercentage, true},
		{"between", 300, 399, ThresholdFreeItem, true},
		{"all reached", 450, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, ok := NextThreshold(r, tt.cartValue)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if g.Threshold.MinOrder != tt.wantMin || g.Threshold.Kind != tt.wantKind {
				t.Errorf("threshold = %+v, want %s at %v", g.Threshold, tt.wantKind, tt.wantMin)
			}
			if g.Gap != tt.wantMin-tt.cartValue {
				t.Errorf("gap = %v, want %v", g.Gap, tt.wantMin-tt.cartValue)
			}
			if g.Proximity < 0 || g.Proximity >= 1 {
				t.Errorf("proximity = %v, want [0, 1)", g.Proximity)
			}
		})
	}

	if _, ok := NextThreshold(nil, 10); ok {
		t.Error("NextThreshold(nil) reported a threshold")
	}
}

func TestDiscountGap_Overshoot(t *testing.T) {
	t.Parallel()

	g := DiscountGap{Gap: 49}
	if r := g.Overshoot(400); r < 8.1 || r > 8.2 {
		t.Errorf("Overshoot(400) = %f, want about 8.16", r)
	}
	if r := g.Overshoot(60); r < 1.2 || r > 1.25 {
		t.Errorf("Overshoot(60) = %f, want about 1.22", r)
	}
	if r := (DiscountGap{}).Overshoot(60); r != 0 {
		t.Errorf("Overshoot with zero gap = %f, want 0", r)
	}
}

func TestThresholdLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		th   DiscountThreshold
		want string
	}{
		{DiscountThreshold{Kind: ThresholdPercentage, DiscountPct: 12.5}, "12.5% off"},
		{DiscountThreshold{Kind: ThresholdFreeItem, FreeItem: "Free Dessert"}, "Free Dessert"},
		{DiscountThreshold{Kind: ThresholdFreeItem}, "a free item"},
		{DiscountThreshold{Kind: ThresholdFreeDelivery}, "free delivery"},
	}
	for _, tt := range tests {
		if got := tt.th.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestComputeCartVersion(t *testing.T) {
	t.Parallel()

	a := []CartLine{{ItemID: "I1", Quantity: 1, Seq: 1}, {ItemID: "I2", Quantity: 1, Seq: 2}}
	reordered := []CartLine{{ItemID: "I2", Quantity: 1, Seq: 1}, {ItemID: "I1", Quantity: 1, Seq: 2}}
	more := []CartLine{{ItemID: "I1", Quantity: 2, Seq: 1}, {ItemID: "I2", Quantity: 1, Seq: 2}}

	va := ComputeCartVersion(a)
	if va != ComputeCartVersion(append([]CartLine(nil), a...)) {
		t.Error("same cart produced different versions")
	}
	if va == ComputeCartVersion(reordered) {
		t.Error("reordered cart produced the same version")
	}
	if va == ComputeCartVersion(more) {
		t.Error("quantity change produced the same version")
	}
	if va.Length != 2 {
		t.Errorf("Length = %d, want 2", va.Length)
	}
}

func TestSessionState_ApplyFeedback(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	s := NewSessionState("s1", now)
	s.LastShown = []ShownItem{
		{ItemID: "I040", Category: CategoryBeverage},
		{ItemID: "I050", Category: CategoryDessert},
		{ItemID: "I020", Category: CategoryBread},
	}

	// Nothing accepted: every shown category is ignored once.
	s.ApplyFeedback(nil, nil, now)
	for _, c := range []Category{CategoryBeverage, CategoryDessert, CategoryBread} {
		if s.IgnoreCount(c) != 1 {
			t.Errorf("ignore[%s] = %d, want 1", c, s.IgnoreCount(c))
		}
	}
	if s.ConsecutiveRejections != 1 {
		t.Errorf("ConsecutiveRejections = %d, want 1", s.ConsecutiveRejections)
	}
	if s.LastShown != nil {
		t.Error("LastShown not cleared")
	}

	// Dessert accepted: dessert resets, the others keep counting.
	s.LastShown = []ShownItem{
		{ItemID: "I040", Category: CategoryBeverage},
		{ItemID: "I050", Category: CategoryDessert},
	}
	later := now.Add(time.Minute)
	s.ApplyFeedback([]string{"I050"}, nil, later)
	if s.IgnoreCount(CategoryDessert) != 0 || s.IgnoreCount(CategoryBeverage) != 2 || s.IgnoreCount(CategoryBread) != 1 {
		t.Errorf("counters = %v", s.IgnoreCounters)
	}
	if s.ConsecutiveRejections != 0 || !s.LastAdditionAt.Equal(later) {
		t.Errorf("rejections=%d lastAddition=%v", s.ConsecutiveRejections, s.LastAdditionAt)
	}

	// An accepted item outside the rail resolves through categoryOf.
	s.LastShown = []ShownItem{{ItemID: "I040", Category: CategoryBeverage}}
	s.ApplyFeedback([]string{"I041"}, func(string) (Category, bool) { return CategoryBeverage, true }, later)
	if s.IgnoreCount(CategoryBeverage) != 0 {
		t.Errorf("ignore[beverage] = %d, want reset to 0", s.IgnoreCount(CategoryBeverage))
	}

	// Feedback with nothing shown changes no rejection count.
	s.ApplyFeedback(nil, nil, later)
	if s.ConsecutiveRejections != 0 {
		t.Errorf("ConsecutiveRejections = %d, want 0 when no rail was shown", s.ConsecutiveRejections)
	}
}

func TestSessionState_SyncCartAndSnapshot(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	s := NewSessionState("s1", t0)
	s.SyncCart([]CartLine{{ItemID: "I1", Quantity: 1, Seq: 1}}, t0)
	if !s.LastAdditionAt.Equal(t0) {
		t.Error("growing cart not recorded as addition")
	}

	t1 := t0.Add(time.Minute)
	s.SyncCart([]CartLine{{ItemID: "I1", Quantity: 1, Seq: 1}}, t1)
	if !s.LastAdditionAt.Equal(t0) {
		t.Error("unchanged cart recorded as addition")
	}

	s.IgnoreCounters[CategoryDessert] = 2
	snap := s.Snapshot()
	snap.IgnoreCounters[CategoryDessert] = 9
	snap.Cart[0].Quantity = 7
	if s.IgnoreCounters[CategoryDessert] != 2 || s.Cart[0].Quantity != 1 {
		t.Error("Snapshot shares state with the session")
	}
}

func TestAbandonmentRisk(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().Risk
	if r := AbandonmentRisk(0, 0, cfg); r != 0 {
		t.Errorf("fresh session risk = %f, want 0", r)
	}
	if r := AbandonmentRisk(100, time.Hour, cfg); math.Abs(r-1) > 1e-9 {
		t.Errorf("saturated risk = %f, want 1", r)
	}
	mid := AbandonmentRisk(2, 0, cfg)
	if want := cfg.RejectionWeight * 2 / float64(cfg.RejectionSaturation); math.Abs(mid-want) > 1e-9 {
		t.Errorf("risk = %f, want %f", mid, want)
	}
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want float64 }{{-1, 0}, {0.4, 0.4}, {3, 1}, {math.NaN(), 0}}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPeakModeAt(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().Peak
	tests := []struct {
		hour int
		want PeakMode
	}{
		{9, PeakOff},
		{12, PeakLunch},
		{14, PeakLunch},
		{15, PeakOff},
		{20, PeakDinner},
		{23, PeakLateNight},
		{2, PeakLateNight},
		{4, PeakOff},
	}
	for _, tt := range tests {
		got := PeakModeAt(time.Date(2026, 3, 4, tt.hour, 0, 0, 0, time.UTC), cfg)
		if got != tt.want {
			t.Errorf("PeakModeAt(%02d:00) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestMealPeriodAt(t *testing.T) {
	t.Parallel()

	tests := map[int]MealPeriod{7: MealBreakfast, 10: MealBreakfast, 11: MealLunch, 16: MealLateNight, 19: MealDinner, 23: MealLateNight, 3: MealLateNight}
	for hour, want := range tests {
		if got := MealPeriodAt(time.Date(2026, 3, 4, hour, 30, 0, 0, time.UTC)); got != want {
			t.Errorf("MealPeriodAt(%02d:30) = %s, want %s", hour, got, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"output width too small", func(c *Config) { c.Position.OutputWidth = 5 }},
		{"output width too large", func(c *Config) { c.Position.OutputWidth = 11 }},
		{"too many candidates", func(c *Config) { c.Retrieval.MaxCandidates = 500 }},
		{"negative weight", func(c *Config) { c.Scoring.Weights.Lunch.Timing = -0.1 }},
		{"bad soft veg mode", func(c *Config) { c.Scoring.SoftVeg.Mode = "maybe" }},
		{"cutoffs out of order", func(c *Config) { c.Degradation.PostRankCutoff = 10 * time.Millisecond }},
		{"zero fatigue threshold", func(c *Config) { c.Filters.FatigueThreshold = 0 }},
		{"overshoot below one", func(c *Config) { c.Position.MaxOvershoot = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() returned nil")
			}
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PostRank.Disabled = []string{"diversity"}
	cp := cfg.Clone()
	cp.Filters.Saturation.Caps["rice"] = 99
	cp.PostRank.Disabled[0] = "margin_cap"

	if cfg.Filters.Saturation.Caps["rice"] == 99 || cfg.PostRank.Disabled[0] != "diversity" {
		t.Error("Clone() shares maps or slices with the original")
	}
}
