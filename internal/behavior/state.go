// Package behavior turns a world's routine catalogs into concrete activity
// choices: condition evaluation, weighted scoring, effect application, and
// the per-agent runtime sub-state those decisions read and write.
package behavior

import "encoding/json"

// MaxActivityHistory bounds the per-agent finished-activity ring.
const MaxActivityHistory = 10

// NPCKeyPrefix namespaces agent entries inside session flags.
const NPCKeyPrefix = "npc:"

// ActivityRecord is one finished activity in an agent's history.
type ActivityRecord struct {
	ActivityID     string  `json:"activityId"`
	EndedAtSeconds float64 `json:"endedAtSeconds"`
}

// NPCState is the per-agent behavior runtime state. It lives under session
// flags, is created on the first decision, and is only ever overwritten,
// never deleted.
type NPCState struct {
	CurrentActivityID        string           `json:"currentActivityId,omitempty"`
	StateTags                []string         `json:"stateTags,omitempty"`
	LastActivities           []ActivityRecord `json:"lastActivities,omitempty"`
	ActivityStartedAtSeconds *float64         `json:"activityStartedAtSeconds,omitempty"`
	NextDecisionAtSeconds    float64          `json:"nextDecisionAtSeconds,omitempty"`
	LastSimulatedAtSeconds   float64          `json:"lastSimulatedAtSeconds,omitempty"`
	LastSimulatedTier        string           `json:"lastSimulatedTier,omitempty"`
}

// FinishActivity closes the current activity at the given world time,
// appending it to the bounded history (oldest dropped first). No-op when
// nothing is in progress.
func (s *NPCState) FinishActivity(worldTime float64) {
	if s.CurrentActivityID == "" {
		return
	}
	s.LastActivities = append(s.LastActivities, ActivityRecord{
		ActivityID:     s.CurrentActivityID,
		EndedAtSeconds: worldTime,
	})
	if len(s.LastActivities) > MaxActivityHistory {
		s.LastActivities = s.LastActivities[len(s.LastActivities)-MaxActivityHistory:]
	}
	s.CurrentActivityID = ""
	s.ActivityStartedAtSeconds = nil
}

// StartActivity marks an activity as in progress. The start timestamp is
// only stamped when this is a genuinely new activity; re-choosing the one
// just finished does not reset it if already set.
func (s *NPCState) StartActivity(activityID string, worldTime float64) {
	if s.CurrentActivityID != activityID || s.ActivityStartedAtSeconds == nil {
		t := worldTime
		s.ActivityStartedAtSeconds = &t
	}
	s.CurrentActivityID = activityID
}

// LastFinished returns the most recently finished activity id, or "".
func (s *NPCState) LastFinished() string {
	if len(s.LastActivities) == 0 {
		return ""
	}
	return s.LastActivities[len(s.LastActivities)-1].ActivityID
}

// HasTag reports whether a state tag is present.
func (s *NPCState) HasTag(tag string) bool {
	for _, t := range s.StateTags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a state tag if absent.
func (s *NPCState) AddTag(tag string) {
	if !s.HasTag(tag) {
		s.StateTags = append(s.StateTags, tag)
	}
}

// RemoveTag drops a state tag if present.
func (s *NPCState) RemoveTag(tag string) {
	for i, t := range s.StateTags {
		if t == tag {
			s.StateTags = append(s.StateTags[:i], s.StateTags[i+1:]...)
			return
		}
	}
}

// NPCRecord is everything a session holds for one agent: the behavior
// state plus effect-mutated belongings and session-level preference
// overrides.
type NPCRecord struct {
	State         NPCState           `json:"state"`
	Inventory     map[string]int     `json:"inventory,omitempty"`
	XP            float64            `json:"xp,omitempty"`
	Relationships map[string]float64 `json:"relationships,omitempty"` // affinity per target id, effect-mutated
	Overrides     map[string]any     `json:"overrides,omitempty"`     // session preference overrides, highest precedence
}

// AdjustRelationship shifts the agent's affinity toward a target, clamped
// to [-1, 1].
func (r *NPCRecord) AdjustRelationship(target string, delta float64) {
	if r.Relationships == nil {
		r.Relationships = make(map[string]float64)
	}
	v := r.Relationships[target] + delta
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	r.Relationships[target] = v
}

// SessionFlags is the mutable keyed state a session carries. The known
// behavior sub-state is strongly typed; Extra is the open side channel for
// unrelated subsystems that also write into the same session.
type SessionFlags struct {
	NPCs           map[string]*NPCRecord      `json:"npcs,omitempty"`
	Bools          map[string]bool            `json:"bools,omitempty"`
	ActiveProfiles []string                   `json:"activeProfiles,omitempty"`
	Extra          map[string]json.RawMessage `json:"extra,omitempty"`
}

// NPC returns the record for an agent id, creating it on first use.
func (f *SessionFlags) NPC(agentID string) *NPCRecord {
	if f.NPCs == nil {
		f.NPCs = make(map[string]*NPCRecord)
	}
	key := NPCKeyPrefix + agentID
	rec, ok := f.NPCs[key]
	if !ok {
		rec = &NPCRecord{}
		f.NPCs[key] = rec
	}
	return rec
}

// SetBool sets a session boolean flag.
func (f *SessionFlags) SetBool(name string, v bool) {
	if f.Bools == nil {
		f.Bools = make(map[string]bool)
	}
	f.Bools[name] = v
}
