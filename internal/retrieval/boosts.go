package retrieval

import (
	"math"

	"github.com/oneiron-dev/oneiron-helix/internal/codec"
)

// SignalLookup resolves the external Retrieval Index row fields
// apply_signal_boosts consumes (spec.md §4.C's "contract-visible"
// row): salience, confidence, and age in days. The core never writes
// these rows; each field is a lookup callback so the caller owns the
// row's storage.
type SignalLookup struct {
	Salience   func(codec.ID) (float64, bool)
	Confidence func(codec.ID) (float64, bool)
	AgeDays    func(codec.ID) (float64, bool)
}

// BoostConfig enables or disables each signal independently. A
// disabled signal contributes 1.0, same as a missing one (spec.md
// §4.F).
type BoostConfig struct {
	EnableSalience   bool
	EnableConfidence bool
	EnableDecay      bool
	// HalfLifeDays is the decay half-life; a supplemented signal source
	// (SPEC_FULL.md §3) grounded on the reference codebase's
	// pkg/decay package, reused here as the half-life of the decay factor
	// 0.5^(age_days/half_life_days) rather than a separate decay engine.
	// It does not affect the salience factor.
	HalfLifeDays float64
}

// ApplySignalBoosts computes final = rrf · salience · confidence ·
// 0.5^(age_days/half_life_days), defaulting any missing or
// flag-disabled signal to 1.0, and re-sorts descending.
func ApplySignalBoosts(results []Fused, cfg BoostConfig, lookup SignalLookup) []Fused {
	boosted := make([]Fused, len(results))
	for i, r := range results {
		salience := 1.0
		if cfg.EnableSalience && lookup.Salience != nil {
			if v, ok := lookup.Salience(r.ID); ok {
				salience = v
			}
		}
		confidence := 1.0
		if cfg.EnableConfidence && lookup.Confidence != nil {
			if v, ok := lookup.Confidence(r.ID); ok {
				confidence = v
			}
		}
		decay := 1.0
		if cfg.EnableDecay && lookup.AgeDays != nil && cfg.HalfLifeDays > 0 {
			if age, ok := lookup.AgeDays(r.ID); ok {
				decay = math.Pow(0.5, age/cfg.HalfLifeDays)
			}
		}
		boosted[i] = Fused{ID: r.ID, Score: r.Score * salience * confidence * decay}
	}
	sortFusedDescending(boosted)
	return boosted
}
