// Package tiers defines the simulation-frequency tier contract. The real
// classifier is an external collaborator; the engine only depends on the
// Classifier interface and ships a simple interval-based default so a
// world is runnable out of the box.
package tiers

import (
	"github.com/mirelet/veldt/internal/behavior"
	"github.com/mirelet/veldt/internal/catalog"
)

// Tier names an agent's simulation-frequency bucket.
type Tier string

const (
	Detailed Tier = "detailed"
	Active   Tier = "active"
	Ambient  Tier = "ambient"
	Dormant  Tier = "dormant"
)

// Order is the scheduler's iteration order: most detailed first, so the
// per-tick budget favors the agents players are most likely to notice.
func Order() []Tier {
	return []Tier{Detailed, Active, Ambient, Dormant}
}

// Candidate identifies one agent of one session, with its behavior state
// when it has been simulated before.
type Candidate struct {
	SessionID string
	AgentID   string
	State     *behavior.NPCState // nil until first simulated
}

// Classifier buckets the agents due for a decision this tick. Must be
// safe to call with zero candidates. Implementations are expected to
// respect the budget, though the scheduler enforces it again.
type Classifier interface {
	Classify(world *catalog.World, candidates []Candidate, worldTime float64, budget int) map[Tier][]Candidate
}

// IntervalClassifier is the default: an agent is due when its next
// decision time has arrived (or it has never been simulated), and its
// tier follows how recently it was last touched.
type IntervalClassifier struct {
	// Boundaries in world-seconds since last simulation. Zero values
	// fall back to the defaults below.
	DetailedWithin float64
	ActiveWithin   float64
	AmbientWithin  float64
}

const (
	defaultDetailedWithin = 120
	defaultActiveWithin   = 600
	defaultAmbientWithin  = 3600
)

// Classify implements Classifier.
func (c IntervalClassifier) Classify(world *catalog.World, candidates []Candidate, worldTime float64, budget int) map[Tier][]Candidate {
	detailed := c.DetailedWithin
	if detailed <= 0 {
		detailed = defaultDetailedWithin
	}
	active := c.ActiveWithin
	if active <= 0 {
		active = defaultActiveWithin
	}
	ambient := c.AmbientWithin
	if ambient <= 0 {
		ambient = defaultAmbientWithin
	}

	out := make(map[Tier][]Candidate)
	taken := 0
	for _, cand := range candidates {
		if budget > 0 && taken >= budget {
			break
		}
		tier := Active // never-simulated agents start active
		if cand.State != nil {
			if worldTime < cand.State.NextDecisionAtSeconds {
				continue // not due yet
			}
			switch idle := worldTime - cand.State.LastSimulatedAtSeconds; {
			case idle <= detailed:
				tier = Detailed
			case idle <= active:
				tier = Active
			case idle <= ambient:
				tier = Ambient
			default:
				tier = Dormant
			}
		}
		out[tier] = append(out[tier], cand)
		taken++
	}
	return out
}
