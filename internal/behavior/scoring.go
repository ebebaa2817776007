package behavior

import (
	"strings"

	"github.com/mirelet/veldt/internal/catalog"
)

// ScoringFunc returns one factor's raw contribution for a candidate
// activity. Contributions are multiplied by the factor's configured
// weight and summed with the candidate's base weight.
type ScoringFunc func(a *catalog.Activity, ctx *EvalContext) float64

// ScoringRegistry maps factor names to contribution functions.
type ScoringRegistry struct {
	entries map[string]registryEntry[ScoringFunc]
}

// NewScoringRegistry returns an empty registry.
func NewScoringRegistry() *ScoringRegistry {
	return &ScoringRegistry{entries: make(map[string]registryEntry[ScoringFunc])}
}

// Register adds or replaces a scoring factor. Returns false when the
// factor already existed.
func (r *ScoringRegistry) Register(name string, fn ScoringFunc, paramSchema map[string]any) bool {
	_, existed := r.entries[name]
	r.entries[name] = registryEntry[ScoringFunc]{fn: fn, paramSchema: paramSchema}
	return !existed
}

// Has reports whether a factor is registered.
func (r *ScoringRegistry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// defaultFactorWeights are the engine fallbacks when a world's scoring
// config does not weight a factor.
var defaultFactorWeights = map[string]float64{
	"activity_preference": 1.0,
	"category_preference": 0.8,
	"trait_compat":        0.5,
	"mood_compat":         0.5,
	"relationship_bonus":  0.4,
	"urgency":             1.2,
	"inertia":             0.3,
	"archetype_affinity":  0.6,
	"behavior_profile":    0.6,
	"trait_effects":       0.5,
}

// FactorWeight resolves a factor's weight from world scoring config,
// falling back to the engine default, then 1.0 for externally registered
// factors with no default.
func FactorWeight(cfg catalog.ScoringConfig, name string) float64 {
	if w, ok := cfg.Weights[name]; ok {
		return w
	}
	if w, ok := defaultFactorWeights[name]; ok {
		return w
	}
	return 1.0
}

// Score sums every registered factor's weighted contribution for one
// candidate activity.
func (r *ScoringRegistry) Score(a *catalog.Activity, cfg catalog.ScoringConfig, ctx *EvalContext) float64 {
	total := 0.0
	for name, entry := range r.entries {
		total += FactorWeight(cfg, name) * entry.fn(a, ctx)
	}
	return total
}

// restoresPrefix tags activities with the stat axis they replenish, e.g.
// "restores:energy". The urgency factor reads it.
const restoresPrefix = "restores:"

// registerBuiltinScoring installs the stock scoring factors. The last
// three are feature-flagged by the world catalog and contribute zero when
// their flag is off or their source data is absent.
func registerBuiltinScoring(r *ScoringRegistry) int {
	added := 0
	reg := func(name string, fn ScoringFunc) {
		if r.Register(name, fn, nil) {
			added++
		}
	}

	// Direct per-activity preference from the merged preference layers.
	reg("activity_preference", func(a *catalog.Activity, ctx *EvalContext) float64 {
		v, _ := prefNumber(ctx.Preferences, "activities", a.ID)
		return v
	})

	// Per-category preference.
	reg("category_preference", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if a.Category == "" {
			return 0
		}
		v, _ := prefNumber(ctx.Preferences, "categories", a.Category)
		return v
	})

	// Personality traits matching activity tags contribute their value.
	reg("trait_compat", func(a *catalog.Activity, ctx *EvalContext) float64 {
		total := 0.0
		for _, tag := range a.Tags {
			if v, ok := ctx.Personality[tag]; ok {
				total += v
			}
		}
		return total
	})

	// Mood axis in [-1,1]: energetic activities ride a good mood, restful
	// ones a bad one.
	reg("mood_compat", func(a *catalog.Activity, ctx *EvalContext) float64 {
		mood := ctx.Stat("mood", 0)
		switch {
		case a.HasTag("energetic"):
			return mood
		case a.HasTag("restful"):
			return -mood
		default:
			return 0
		}
	})

	// Social activities score with average relationship sentiment.
	reg("relationship_bonus", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if !a.HasTag("social") || len(ctx.Relationships) == 0 {
			return 0
		}
		total := 0.0
		for _, v := range ctx.Relationships {
			total += v
		}
		return total / float64(len(ctx.Relationships))
	})

	// An activity tagged "restores:<axis>" grows more attractive as the
	// axis depletes.
	reg("urgency", func(a *catalog.Activity, ctx *EvalContext) float64 {
		total := 0.0
		for _, tag := range a.Tags {
			if axis, ok := strings.CutPrefix(tag, restoresPrefix); ok {
				total += 1 - ctx.Stat(axis, 1)
			}
		}
		return total
	})

	// Continuing what the agent just finished beats thrashing between
	// activities every decision.
	reg("inertia", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if ctx.State != nil && ctx.State.LastFinished() == a.ID {
			return 1
		}
		return 0
	})

	// Archetype affinity for the activity's category.
	reg("archetype_affinity", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if !ctx.FeatureEnabled("personality_scoring") || ctx.Archetype == nil {
			return 0
		}
		return ctx.Archetype.Affinities[a.Category]
	})

	// Active behavior profiles modify by activity id and category.
	reg("behavior_profile", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if !ctx.FeatureEnabled("behavior_profiles") {
			return 0
		}
		total := 0.0
		for _, p := range ctx.Profiles {
			total += p.Modifiers[a.ID] + p.Modifiers[a.Category]
		}
		return total
	})

	// Trait-derived modifiers computed upstream from personality data.
	reg("trait_effects", func(a *catalog.Activity, ctx *EvalContext) float64 {
		if !ctx.FeatureEnabled("trait_effects") {
			return 0
		}
		return ctx.TraitModifiers[a.Category] + ctx.TraitModifiers[a.ID]
	})

	return added
}
