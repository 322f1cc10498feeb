// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"fmt"
	"time"
)

// Config contains all tuning for the ranking pipeline.
type Config struct {
	// Filters configures the eligibility chain.
	Filters FilterConfig `koanf:"filters" json:"filters"`

	// Retrieval configures query construction and top-k.
	Retrieval RetrievalConfig `koanf:"retrieval" json:"retrieval"`

	// Features configures dynamic feature computation.
	Features FeatureConfig `koanf:"features" json:"features"`

	// Trajectory configures the trajectory vector cache.
	Trajectory TrajectoryConfig `koanf:"trajectory" json:"trajectory"`

	// Scoring configures the head combination.
	Scoring ScoringConfig `koanf:"scoring" json:"scoring"`

	// PostRank configures the business rules.
	PostRank PostRankConfig `koanf:"postrank" json:"postrank"`

	// Position configures rail assembly and distance-to-discount.
	Position PositionConfig `koanf:"position" json:"position"`

	// Risk configures the abandonment-risk composite.
	Risk RiskConfig `koanf:"risk" json:"risk"`

	// Peak configures the peak-hour windows.
	Peak PeakConfig `koanf:"peak" json:"peak"`

	// Degradation configures the latency budget.
	Degradation DegradationConfig `koanf:"degradation" json:"degradation"`
}

// FilterConfig contains parameters for the filter chain.
type FilterConfig struct {
	// MinMarginPct is the margin floor for Availability/Margin.
	// Default: 10.
	MinMarginPct float64 `koanf:"min_margin_pct" json:"min_margin_pct"`

	// Disabled lists stage names switched off by configuration.
	Disabled []string `koanf:"disabled" json:"disabled,omitempty"`

	// FatigueThreshold is the consecutive-ignore count that hides a category.
	// Default: 3.
	FatigueThreshold int `koanf:"fatigue_threshold" json:"fatigue_threshold"`

	// Saturation configures quantity caps.
	Saturation SaturationConfig `koanf:"saturation" json:"saturation"`
}

// IsDisabled reports whether the named stage is disabled.
func (c *FilterConfig) IsDisabled(stage string) bool {
	for _, s := range c.Disabled {
		if s == stage {
			return true
		}
	}
	return false
}

// SaturationConfig contains quantity-saturation caps.
type SaturationConfig struct {
	// Caps maps subcategory or category names to a cart quantity cap.
	// Subcategory keys take precedence over category keys.
	Caps map[string]int `koanf:"caps" json:"caps"`

	// DefaultCap applies to subcategories with no explicit cap.
	// Default: 3.
	DefaultCap int `koanf:"default_cap" json:"default_cap"`

	// GroupOrderThreshold is the total quantity above which caps scale.
	// Default: 5.
	GroupOrderThreshold int `koanf:"group_order_threshold" json:"group_order_threshold"`

	// GroupScaleFactor multiplies the proportional cap scaling.
	// Default: 1.0.
	GroupScaleFactor float64 `koanf:"group_scale_factor" json:"group_scale_factor"`
}

// RetrievalConfig contains parameters for candidate retrieval.
type RetrievalConfig struct {
	// TopK is the number of candidates returned. Default: 50.
	TopK int `koanf:"top_k" json:"top_k"`

	// MaxCandidates is the hard cap on candidates reaching the scorer. Default: 200.
	MaxCandidates int `koanf:"max_candidates" json:"max_candidates"`

	// CartWeight weighs the cart centroid in the query. Default: 0.8.
	CartWeight float64 `koanf:"cart_weight" json:"cart_weight"`

	// ContextWeight weighs the meal-period popularity centroid. Default: 0.2.
	ContextWeight float64 `koanf:"context_weight" json:"context_weight"`

	// RecencyDecay discounts older cart lines per step back. Default: 0.85.
	RecencyDecay float64 `koanf:"recency_decay" json:"recency_decay"`
}

// FeatureConfig contains parameters for dynamic features.
type FeatureConfig struct {
	// SummerMonths are the months with the beverage uplift.
	SummerMonths []int `koanf:"summer_months" json:"summer_months"`

	// WinterMonths are the months with the dessert uplift.
	WinterMonths []int `koanf:"winter_months" json:"winter_months"`

	// SummerBeverageWeight is the seasonal weight for beverages in summer. Default: 1.25.
	SummerBeverageWeight float64 `koanf:"summer_beverage_weight" json:"summer_beverage_weight"`

	// WinterDessertWeight is the seasonal weight for desserts in winter. Default: 1.15.
	WinterDessertWeight float64 `koanf:"winter_dessert_weight" json:"winter_dessert_weight"`
}

// TrajectoryConfig contains parameters for the trajectory cache.
type TrajectoryConfig struct {
	// CacheSize is the maximum number of cached vectors. Default: 10000.
	CacheSize int `koanf:"cache_size" json:"cache_size"`

	// CacheTTL is how long a cached vector stays valid. Default: 30m.
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl"`
}

// ScoreWeights are the coefficients of the business-score formula.
type ScoreWeights struct {
	Accept  float64 `koanf:"accept" json:"accept"`
	AOV     float64 `koanf:"aov" json:"aov"`
	Abandon float64 `koanf:"abandon" json:"abandon"`
	Timing  float64 `koanf:"timing" json:"timing"`
	Anchor  float64 `koanf:"anchor" json:"anchor"`
}

// Validate checks the weights are finite and non-negative.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w ScoreWeights) Validate() error {
	for name, v := range w.ToMap() {
		if v < 0 || v > 10 {
			return fmt.Errorf("weight %s must be between 0 and 10, got %f", name, v)
		}
	}
	return nil
}

// ToMap returns the weights keyed by head name.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w ScoreWeights) ToMap() map[string]float64 {
	return map[string]float64{
		HeadAccept:  w.Accept,
		HeadAOV:     w.AOV,
		HeadAbandon: w.Abandon,
		HeadTiming:  w.Timing,
		HeadAnchor:  w.Anchor,
	}
}

// WeightSet holds the default weights and the peak-mode alternates.
type WeightSet struct {
	Default   ScoreWeights `koanf:"default" json:"default"`
	Lunch     ScoreWeights `koanf:"lunch" json:"lunch"`
	Dinner    ScoreWeights `koanf:"dinner" json:"dinner"`
	LateNight ScoreWeights `koanf:"late_night" json:"late_night"`
}

// For returns the weights for a peak mode.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (s WeightSet) For(mode PeakMode) ScoreWeights {
	switch mode {
	case PeakLunch:
		return s.Lunch
	case PeakDinner:
		return s.Dinner
	case PeakLateNight:
		return s.LateNight
	default:
		return s.Default
	}
}

// Validate checks all weight sets.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (s WeightSet) Validate() error {
	sets := map[string]ScoreWeights{"default": s.Default, "lunch": s.Lunch, "dinner": s.Dinner, "late_night": s.LateNight}
	for name, w := range sets {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// BonusConfig contains peak-mode score bonuses.
type BonusConfig struct {
	// LowPrepMins is the prep time at or under which the lunch bonus applies. Default: 15.
	LowPrepMins int `koanf:"low_prep_mins" json:"low_prep_mins"`

	// LowPrep is the lunch low-prep bonus. Default: 0.05.
	LowPrep float64 `koanf:"low_prep" json:"low_prep"`

	// PremiumPrice is the price at or above which a complement is premium. Default: 199.
	PremiumPrice float64 `koanf:"premium_price" json:"premium_price"`

	// PremiumComplement is the dinner premium-complement bonus. Default: 0.05.
	PremiumComplement float64 `koanf:"premium_complement" json:"premium_complement"`

	// ImpulsePrice is the price at or under which an item is an impulse buy. Default: 99.
	ImpulsePrice float64 `koanf:"impulse_price" json:"impulse_price"`

	// Impulse is the late-night impulse bonus. Default: 0.05.
	Impulse float64 `koanf:"impulse" json:"impulse"`
}

// Soft veg handling modes.
const (
	SoftVegTiebreak = "tiebreak"
	SoftVegBoost    = "boost"
)

// SoftVegConfig decides how an all-veg cart influences ordering.
type SoftVegConfig struct {
	// Mode is "tiebreak" (veg first among equal scores) or "boost". Default: tiebreak.
	Mode string `koanf:"mode" json:"mode"`

	// Boost is added to veg candidates in boost mode. Default: 0.03.
	Boost float64 `koanf:"boost" json:"boost"`
}

// BreakerConfig configures the per-head circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failures that open a breaker. Default: 5.
	FailureThreshold uint32 `koanf:"failure_threshold" json:"failure_threshold"`

	// Timeout is how long a breaker stays open. Default: 30s.
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// MaxRequests is the half-open probe count. Default: 1.
	MaxRequests uint32 `koanf:"max_requests" json:"max_requests"`
}

// ScoringConfig contains parameters for the multi-objective scorer.
type ScoringConfig struct {
	// Weights are the default and peak-mode weight sets.
	Weights WeightSet `koanf:"weights" json:"weights"`

	// AOVNormalizer divides the AOV head output before clamping to [0,1]. Default: 200.
	AOVNormalizer float64 `koanf:"aov_normalizer" json:"aov_normalizer"`

	// NeutralValue is used for a head that failed. Default: 0.5.
	NeutralValue float64 `koanf:"neutral_value" json:"neutral_value"`

	// HeadTimeout bounds one head evaluation over all candidates. Default: 10ms.
	HeadTimeout time.Duration `koanf:"head_timeout" json:"head_timeout"`

	// Bonuses are the peak-mode bonuses.
	Bonuses BonusConfig `koanf:"bonuses" json:"bonuses"`

	// SoftVeg decides soft veg preference handling.
	SoftVeg SoftVegConfig `koanf:"soft_veg" json:"soft_veg"`

	// Breaker configures the per-head breakers.
	Breaker BreakerConfig `koanf:"breaker" json:"breaker"`
}

// PostRankConfig contains parameters for the business rules.
type PostRankConfig struct {
	// MaxPerSubcategory caps items per subcategory. Default: 2.
	MaxPerSubcategory int `koanf:"max_per_subcategory" json:"max_per_subcategory"`

	// PriceShockPct is the allowed deviation from the cart's average item price. Default: 0.30.
	PriceShockPct float64 `koanf:"price_shock_pct" json:"price_shock_pct"`

	// UltraHighMarginPct is the margin at or above which an item counts as ultra-high. Default: 55.
	UltraHighMarginPct float64 `koanf:"ultra_high_margin_pct" json:"ultra_high_margin_pct"`

	// MarginCapShare is the maximum share of ultra-high-margin items. Default: 0.30.
	MarginCapShare float64 `koanf:"margin_cap_share" json:"margin_cap_share"`

	// Disabled lists rule names switched off by configuration.
	Disabled []string `koanf:"disabled" json:"disabled,omitempty"`
}

// IsDisabled reports whether the named rule is disabled.
func (c *PostRankConfig) IsDisabled(rule string) bool {
	for _, s := range c.Disabled {
		if s == rule {
			return true
		}
	}
	return false
}

// PositionConfig contains parameters for rail assembly.
type PositionConfig struct {
	// OutputWidth is the rail length, 8 to 10. Default: 10.
	OutputWidth int `koanf:"output_width" json:"output_width"`

	// ProximityWeight weighs closeness to the threshold in urgency. Default: 0.7.
	ProximityWeight float64 `koanf:"proximity_weight" json:"proximity_weight"`

	// RiskWeight weighs abandonment risk in urgency. Default: 0.3.
	RiskWeight float64 `koanf:"risk_weight" json:"risk_weight"`

	// UrgencyThreshold enables the position-1 override. Default: 0.5.
	UrgencyThreshold float64 `koanf:"urgency_threshold" json:"urgency_threshold"`

	// MaxOvershoot is the largest price/gap ratio eligible for the override. Default: 1.8.
	MaxOvershoot float64 `koanf:"max_overshoot" json:"max_overshoot"`
}

// RiskConfig contains parameters for the abandonment-risk composite.
type RiskConfig struct {
	RejectionWeight     float64       `koanf:"rejection_weight" json:"rejection_weight"`
	IdleWeight          float64       `koanf:"idle_weight" json:"idle_weight"`
	RejectionSaturation int           `koanf:"rejection_saturation" json:"rejection_saturation"`
	IdleSaturation      time.Duration `koanf:"idle_saturation" json:"idle_saturation"`
}

// Window is an hour range [Start, End). End below Start wraps past midnight.
type Window struct {
	Start int `koanf:"start" json:"start"`
	End   int `koanf:"end" json:"end"`
}

// Contains reports whether the hour falls inside the window.
func (w Window) Contains(hour int) bool {
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// PeakConfig contains the peak-hour windows.
type PeakConfig struct {
	Lunch     Window `koanf:"lunch" json:"lunch"`
	Dinner    Window `koanf:"dinner" json:"dinner"`
	LateNight Window `koanf:"late_night" json:"late_night"`
}

// DegradationConfig contains the latency budget.
type DegradationConfig struct {
	// Enabled turns budget checks on. Default: true.
	Enabled bool `koanf:"enabled" json:"enabled"`

	// Deadline is the latency target. Default: 40ms.
	Deadline time.Duration `koanf:"deadline" json:"deadline"`

	// ScoringCutoff is the elapsed time after which scoring is skipped. Default: 25ms.
	ScoringCutoff time.Duration `koanf:"scoring_cutoff" json:"scoring_cutoff"`

	// PostRankCutoff is the elapsed time after which post-ranking is skipped. Default: 35ms.
	PostRankCutoff time.Duration `koanf:"post_rank_cutoff" json:"post_rank_cutoff"`

	// Alarm is the latency that triggers a warning. Default: 250ms.
	Alarm time.Duration `koanf:"alarm" json:"alarm"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Filters: FilterConfig{
			MinMarginPct:     10,
			FatigueThreshold: 3,
			Saturation: SaturationConfig{
				Caps: map[string]int{
					"rice":     3,
					"bread":    4,
					"beverage": 3,
					"dessert":  2,
					"main":     3,
				},
				DefaultCap:          3,
				GroupOrderThreshold: 5,
				GroupScaleFactor:    1.0,
			},
		},
		Retrieval: RetrievalConfig{
			TopK:          50,
			MaxCandidates: 200,
			CartWeight:    0.8,
			ContextWeight: 0.2,
			RecencyDecay:  0.85,
		},
		Features: FeatureConfig{
			SummerMonths:         []int{4, 5, 6},
			WinterMonths:         []int{11, 12, 1},
			SummerBeverageWeight: 1.25,
			WinterDessertWeight:  1.15,
		},
		Trajectory: TrajectoryConfig{
			CacheSize: 10000,
			CacheTTL:  30 * time.Minute,
		},
		Scoring: ScoringConfig{
			Weights: WeightSet{
				Default:   ScoreWeights{Accept: 0.30, AOV: 0.30, Abandon: 0.20, Timing: 0.10, Anchor: 0.10},
				Lunch:     ScoreWeights{Accept: 0.25, AOV: 0.20, Abandon: 0.20, Timing: 0.25, Anchor: 0.10},
				Dinner:    ScoreWeights{Accept: 0.25, AOV: 0.40, Abandon: 0.15, Timing: 0.10, Anchor: 0.10},
				LateNight: ScoreWeights{Accept: 0.35, AOV: 0.15, Abandon: 0.20, Timing: 0.10, Anchor: 0.20},
			},
			AOVNormalizer: 200,
			NeutralValue:  0.5,
			HeadTimeout:   10 * time.Millisecond,
			Bonuses: BonusConfig{
				LowPrepMins:       15,
				LowPrep:           0.05,
				PremiumPrice:      199,
				PremiumComplement: 0.05,
				ImpulsePrice:      99,
				Impulse:           0.05,
			},
			SoftVeg: SoftVegConfig{Mode: SoftVegTiebreak, Boost: 0.03},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
				MaxRequests:      1,
			},
		},
		PostRank: PostRankConfig{
			MaxPerSubcategory:  2,
			PriceShockPct:      0.30,
			UltraHighMarginPct: 55,
			MarginCapShare:     0.30,
		},
		Position: PositionConfig{
			OutputWidth:      10,
			ProximityWeight:  0.7,
			RiskWeight:       0.3,
			UrgencyThreshold: 0.5,
			MaxOvershoot:     1.8,
		},
		Risk: RiskConfig{
			RejectionWeight:     0.6,
			IdleWeight:          0.4,
			RejectionSaturation: 5,
			IdleSaturation:      5 * time.Minute,
		},
		Peak: PeakConfig{
			Lunch:     Window{Start: 12, End: 15},
			Dinner:    Window{Start: 19, End: 23},
			LateNight: Window{Start: 23, End: 4},
		},
		Degradation: DegradationConfig{
			Enabled:        true,
			Deadline:       40 * time.Millisecond,
			ScoringCutoff:  25 * time.Millisecond,
			PostRankCutoff: 35 * time.Millisecond,
			Alarm:          250 * time.Millisecond,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Filters.MinMarginPct < 0 || c.Filters.MinMarginPct > 100 {
		return fmt.Errorf("filters.min_margin_pct must be between 0 and 100, got %f", c.Filters.MinMarginPct)
	}
	if c.Filters.FatigueThreshold < 1 {
		return fmt.Errorf("filters.fatigue_threshold must be at least 1, got %d", c.Filters.FatigueThreshold)
	}
	if c.Filters.Saturation.DefaultCap < 1 {
		return fmt.Errorf("filters.saturation.default_cap must be at least 1, got %d", c.Filters.Saturation.DefaultCap)
	}
	for key, v := range c.Filters.Saturation.Caps {
		if v < 1 {
			return fmt.Errorf("filters.saturation.caps.%s must be at least 1, got %d", key, v)
		}
	}
	if c.Filters.Saturation.GroupOrderThreshold < 1 {
		return fmt.Errorf("filters.saturation.group_order_threshold must be at least 1, got %d", c.Filters.Saturation.GroupOrderThreshold)
	}
	if c.Filters.Saturation.GroupScaleFactor <= 0 {
		return fmt.Errorf("filters.saturation.group_scale_factor must be positive, got %f", c.Filters.Saturation.GroupScaleFactor)
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxCandidates < 1 || c.Retrieval.MaxCandidates > 200 {
		return fmt.Errorf("retrieval.max_candidates must be between 1 and 200, got %d", c.Retrieval.MaxCandidates)
	}
	if c.Retrieval.CartWeight < 0 || c.Retrieval.ContextWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative, got cart=%f context=%f", c.Retrieval.CartWeight, c.Retrieval.ContextWeight)
	}
	if c.Retrieval.RecencyDecay <= 0 || c.Retrieval.RecencyDecay > 1 {
		return fmt.Errorf("retrieval.recency_decay must be in (0, 1], got %f", c.Retrieval.RecencyDecay)
	}

	if c.Trajectory.CacheSize < 1 {
		return fmt.Errorf("trajectory.cache_size must be at least 1, got %d", c.Trajectory.CacheSize)
	}

	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Scoring.AOVNormalizer <= 0 {
		return fmt.Errorf("scoring.aov_normalizer must be positive, got %f", c.Scoring.AOVNormalizer)
	}
	if c.Scoring.NeutralValue < 0 || c.Scoring.NeutralValue > 1 {
		return fmt.Errorf("scoring.neutral_value must be between 0 and 1, got %f", c.Scoring.NeutralValue)
	}
	if c.Scoring.SoftVeg.Mode != SoftVegTiebreak && c.Scoring.SoftVeg.Mode != SoftVegBoost {
		return fmt.Errorf("scoring.soft_veg.mode must be %q or %q, got %q", SoftVegTiebreak, SoftVegBoost, c.Scoring.SoftVeg.Mode)
	}
	if c.Scoring.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("scoring.breaker.failure_threshold must be at least 1, got %d", c.Scoring.Breaker.FailureThreshold)
	}

	if c.PostRank.MaxPerSubcategory < 1 {
		return fmt.Errorf("postrank.max_per_subcategory must be at least 1, got %d", c.PostRank.MaxPerSubcategory)
	}
	if c.PostRank.PriceShockPct <= 0 {
		return fmt.Errorf("postrank.price_shock_pct must be positive, got %f", c.PostRank.PriceShockPct)
	}
	if c.PostRank.MarginCapShare < 0 || c.PostRank.MarginCapShare > 1 {
		return fmt.Errorf("postrank.margin_cap_share must be between 0 and 1, got %f", c.PostRank.MarginCapShare)
	}

	if c.Position.OutputWidth < 8 || c.Position.OutputWidth > 10 {
		return fmt.Errorf("position.output_width must be between 8 and 10, got %d", c.Position.OutputWidth)
	}
	if c.Position.MaxOvershoot < 1 {
		return fmt.Errorf("position.max_overshoot must be at least 1, got %f", c.Position.MaxOvershoot)
	}

	if c.Risk.RejectionSaturation < 1 || c.Risk.IdleSaturation <= 0 {
		return fmt.Errorf("risk saturation values must be positive")
	}

	d := c.Degradation
	if d.Enabled && (d.ScoringCutoff <= 0 || d.PostRankCutoff < d.ScoringCutoff || d.Deadline < d.PostRankCutoff) {
		return fmt.Errorf("degradation cutoffs must satisfy 0 < scoring_cutoff <= post_rank_cutoff <= deadline, got %s/%s/%s",
			d.ScoringCutoff, d.PostRankCutoff, d.Deadline)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c

	out.Filters.Disabled = append([]string(nil), c.Filters.Disabled...)
	out.Filters.Saturation.Caps = make(map[string]int, len(c.Filters.Saturation.Caps))
	for k, v := range c.Filters.Saturation.Caps {
		out.Filters.Saturation.Caps[k] = v
	}
	out.Features.SummerMonths = append([]int(nil), c.Features.SummerMonths...)
	out.Features.WinterMonths = append([]int(nil), c.Features.WinterMonths...)
	out.PostRank.Disabled = append([]string(nil), c.PostRank.Disabled...)

	return &out
}
