// Package catalog defines the designer-authored behavior catalogs a world
// carries: routine graphs, activities, and scoring configuration. Catalog
// data is immutable once loaded: the engine reads it, never writes it.
package catalog

// NodeType enumerates the kinds of routine graph nodes.
type NodeType string

const (
	NodeTimeSlot NodeType = "time_slot"
	NodeDecision NodeType = "decision"
	NodeActivity NodeType = "activity"
)

// World is a simulated environment definition: its behavior catalog plus
// scheduler metadata. Read-only to the engine during a tick.
type World struct {
	ID   string         `yaml:"id" json:"id"`
	Name string         `yaml:"name" json:"name"`
	Meta map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"` // includes the "simulation" scheduler config

	FeatureFlags map[string]bool `yaml:"feature_flags,omitempty" json:"feature_flags,omitempty"`

	Routines   map[string]*RoutineGraph `yaml:"routines,omitempty" json:"routines,omitempty"`
	Activities map[string]*Activity     `yaml:"activities,omitempty" json:"activities,omitempty"`
	Scoring    ScoringConfig            `yaml:"scoring,omitempty" json:"scoring,omitempty"`

	// Archetypes and behavior profiles feed the feature-flagged scoring
	// factors. Both are optional; absence degrades to neutral scoring.
	Archetypes map[string]Archetype       `yaml:"archetypes,omitempty" json:"archetypes,omitempty"`
	Profiles   map[string]BehaviorProfile `yaml:"behavior_profiles,omitempty" json:"behavior_profiles,omitempty"`
}

// Routine returns the routine graph for the given id, or nil.
func (w *World) Routine(id string) *RoutineGraph {
	if w == nil || id == "" {
		return nil
	}
	return w.Routines[id]
}

// Activity returns the activity for the given id, or nil when the id is
// absent from the catalog. Unknown ids are a skip condition, never fatal.
func (w *World) Activity(id string) *Activity {
	if w == nil || id == "" {
		return nil
	}
	return w.Activities[id]
}

// FeatureEnabled reports whether a world feature flag is set.
func (w *World) FeatureEnabled(name string) bool {
	if w == nil {
		return false
	}
	return w.FeatureFlags[name]
}

// SimulationConfig returns the raw scheduler config from world metadata,
// or nil when the world carries none.
func (w *World) SimulationConfig() map[string]any {
	if w == nil || w.Meta == nil {
		return nil
	}
	raw, ok := w.Meta["simulation"]
	if !ok {
		return nil
	}
	cfg, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return cfg
}

// RoutineGraph is a decision graph for one routine. Node order is
// significant: when several nodes qualify at once, the first in
// declaration order wins. Edges are informational only.
type RoutineGraph struct {
	ID    string        `yaml:"id" json:"id"`
	Nodes []RoutineNode `yaml:"nodes" json:"nodes"`
	Edges []Edge        `yaml:"edges,omitempty" json:"edges,omitempty"`

	// DefaultPreferences seed the preference merge at lowest precedence.
	DefaultPreferences map[string]any `yaml:"default_preferences,omitempty" json:"default_preferences,omitempty"`
}

// Edge links two nodes. Currently carried through but not interpreted.
type Edge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// TimeRange is a [Start, End) window in seconds-of-day. Start > End means
// the window wraps midnight.
type TimeRange struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

// Contains reports whether a seconds-of-day value falls in the range,
// handling the midnight wraparound case.
func (r TimeRange) Contains(timeOfDay float64) bool {
	if r.Start > r.End {
		return timeOfDay >= r.Start || timeOfDay < r.End
	}
	return timeOfDay >= r.Start && timeOfDay < r.End
}

// RoutineNode is one node of a routine graph.
type RoutineNode struct {
	ID       string   `yaml:"id" json:"id"`
	NodeType NodeType `yaml:"node_type" json:"node_type"`

	// TimeRangeSeconds qualifies time_slot nodes.
	TimeRangeSeconds *TimeRange `yaml:"time_range_seconds,omitempty" json:"time_range_seconds,omitempty"`

	// DecisionConditions qualify decision nodes; all must hold.
	DecisionConditions []Condition `yaml:"decision_conditions,omitempty" json:"decision_conditions,omitempty"`

	PreferredActivities []PreferredActivity `yaml:"preferred_activities,omitempty" json:"preferred_activities,omitempty"`
}

// PreferredActivity is a candidate entry on a routine node.
type PreferredActivity struct {
	ActivityID string      `yaml:"activity_id" json:"activity_id"`
	Weight     float64     `yaml:"weight" json:"weight"`
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Condition is a data-driven predicate, dispatched by kind through the
// condition registry.
type Condition struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Effect is a data-driven mutation, dispatched by kind through the effect
// registry when an activity starts.
type Effect struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Activity is a catalog entry an agent can perform.
type Activity struct {
	ID                 string   `yaml:"id" json:"id"`
	Category           string   `yaml:"category,omitempty" json:"category,omitempty"`
	LocationType       string   `yaml:"location_type,omitempty" json:"location_type,omitempty"`
	Tags               []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Effects            []Effect `yaml:"effects,omitempty" json:"effects,omitempty"`
	MinDurationSeconds float64  `yaml:"min_duration_seconds" json:"min_duration_seconds"`
}

// HasTag reports whether the activity carries the given tag.
func (a *Activity) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoringConfig holds the per-world scoring factor weights. Missing
// factors fall back to engine defaults.
type ScoringConfig struct {
	Weights map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
}

// Archetype is a personality template referenced by agents. Affinities
// map activity categories to score modifiers.
type Archetype struct {
	Name       string             `yaml:"name" json:"name"`
	Affinities map[string]float64 `yaml:"affinities,omitempty" json:"affinities,omitempty"`
	Traits     map[string]float64 `yaml:"traits,omitempty" json:"traits,omitempty"`
}

// BehaviorProfile is a named, activatable bundle of scoring modifiers.
// Sessions list their active profiles under session flags.
type BehaviorProfile struct {
	Name      string             `yaml:"name" json:"name"`
	Modifiers map[string]float64 `yaml:"modifiers,omitempty" json:"modifiers,omitempty"` // activity id or category → modifier
}
