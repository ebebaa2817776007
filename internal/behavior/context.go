package behavior

import (
	"math/rand"

	"github.com/mirelet/veldt/internal/catalog"
)

// SecondsPerDay is the length of the simulated day.
const SecondsPerDay = 86400

// EvalContext is the snapshot of world/session/agent state a single
// decision evaluates against. Augmentations sourced from optional
// subsystems (stats, archetypes, profiles, trait modifiers) degrade to
// neutral when absent; a nil map or nil pointer is always valid.
type EvalContext struct {
	WorldID   string
	AgentID   string
	WorldTime float64
	Tier      string

	// Stats is the numeric axis snapshot from the stat engine.
	Stats map[string]float64

	// Flags are the session's boolean flags; Preferences the merged
	// preference layers (routine < agent < session).
	Flags       map[string]bool
	Preferences map[string]any

	// Personality traits, resolved archetype, and active behavior
	// profiles. Each is feature-flagged by the world catalog.
	Personality    map[string]float64
	Archetype      *catalog.Archetype
	Profiles       []catalog.BehaviorProfile
	TraitModifiers map[string]float64

	// Features mirrors the world's feature flags.
	Features map[string]bool

	// Relationships maps target agent ids to affinity in [-1, 1],
	// sourced from the agent's session record. Read by the
	// relationship-threshold condition and relationship scoring; the
	// adjust_relationship effect writes through to the record.
	Relationships map[string]float64

	// LocationType is where the agent currently is, when known.
	LocationType string

	// State is the agent's behavior sub-state; Record its full session
	// entry (inventory, xp). Effects mutate through these.
	State  *NPCState
	Record *NPCRecord

	// SessionFlags allows effects like set_flag to reach session state.
	SessionFlags *SessionFlags

	// EmitEvent, when set, receives world-event effects and other
	// notable occurrences for the journal.
	EmitEvent func(category, description string)

	// EnqueueJob, when set, parks a generation-job request for the
	// scheduler to move onto the external queue under its job budget.
	EnqueueJob func(kind string, payload map[string]any)

	// Rand drives stochastic conditions and weighted selection. Owned by
	// the scheduler so tests can seed it.
	Rand *rand.Rand
}

// TimeOfDay returns world time folded into seconds-of-day.
func (c *EvalContext) TimeOfDay() float64 {
	t := c.WorldTime - float64(int64(c.WorldTime/SecondsPerDay))*SecondsPerDay
	if t < 0 {
		t += SecondsPerDay
	}
	return t
}

// Stat returns a stat axis value, or the fallback when the axis is absent.
func (c *EvalContext) Stat(axis string, fallback float64) float64 {
	if v, ok := c.Stats[axis]; ok {
		return v
	}
	return fallback
}

// FeatureEnabled reports a world feature flag.
func (c *EvalContext) FeatureEnabled(name string) bool {
	return c.Features[name]
}

// Emit forwards to EmitEvent when wired.
func (c *EvalContext) Emit(category, description string) {
	if c.EmitEvent != nil {
		c.EmitEvent(category, description)
	}
}

// Float returns a uniform float in [0,1) from the context's rand source,
// falling back to the global source when none was injected.
func (c *EvalContext) Float() float64 {
	if c.Rand != nil {
		return c.Rand.Float64()
	}
	return rand.Float64()
}

// MergePreferences layers preference maps with later layers overriding
// identically-keyed earlier ones. The merge is shallow: a later "foo" map
// replaces an earlier "foo" map wholesale.
func MergePreferences(layers ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// prefNumber digs a numeric preference out of a nested preference map,
// e.g. prefNumber(prefs, "activities", "rest"). Returns (0, false) when
// any step is missing or non-numeric.
func prefNumber(prefs map[string]any, group, key string) (float64, bool) {
	raw, ok := prefs[group]
	if !ok {
		return 0, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}
	return toFloat(m[key])
}

// toFloat coerces the numeric types YAML and JSON decoding produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
