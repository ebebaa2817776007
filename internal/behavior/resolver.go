package behavior

import (
	"log/slog"

	"github.com/mirelet/veldt/internal/catalog"
)

// Resolver runs the routine-resolution pipeline: active node → candidate
// activities → scored, feasible candidates → weighted choice.
type Resolver struct {
	Registries *Registries
}

// NewResolver wires a resolver to a bootstrapped registry set.
func NewResolver(reg *Registries) *Resolver {
	return &Resolver{Registries: reg}
}

// Candidate is an activity that survived catalog lookup and its entry
// conditions, carrying the authored base weight.
type Candidate struct {
	Activity   *catalog.Activity
	BaseWeight float64
}

// Scored is a candidate with its final selection weight.
type Scored struct {
	Activity *catalog.Activity
	Weight   float64
}

// ChooseActivity resolves one activity for an agent, or (nil, false) when
// there is nothing to do. That is a normal outcome, not an error.
func (r *Resolver) ChooseActivity(w *catalog.World, routineID string, ctx *EvalContext) (*catalog.Activity, bool) {
	if routineID == "" {
		return nil, false
	}
	graph := w.Routine(routineID)
	if graph == nil {
		slog.Warn("routine not found in world catalog",
			"world", w.ID, "agent", ctx.AgentID, "routine", routineID)
		return nil, false
	}

	node := r.FindActiveNode(graph, ctx)
	if node == nil {
		return nil, false
	}

	candidates := r.CollectCandidates(w, node, ctx)
	scored := r.ScoreAndFilter(candidates, w.Scoring, ctx)
	return chooseWeighted(scored, ctx)
}

// FindActiveNode scans the graph's nodes in declaration order and returns
// the first that qualifies at the current world time. Declaration order is
// the only tie-break; authored content relies on it.
func (r *Resolver) FindActiveNode(g *catalog.RoutineGraph, ctx *EvalContext) *catalog.RoutineNode {
	timeOfDay := ctx.TimeOfDay()
	for i := range g.Nodes {
		node := &g.Nodes[i]
		switch node.NodeType {
		case catalog.NodeTimeSlot:
			if node.TimeRangeSeconds != nil && node.TimeRangeSeconds.Contains(timeOfDay) {
				return node
			}
		case catalog.NodeDecision:
			if r.Registries.Conditions.EvalAll(node.DecisionConditions, ctx) {
				return node
			}
		case catalog.NodeActivity:
			return node
		}
	}
	return nil
}

// CollectCandidates filters a node's preferred activities: entries whose
// activity id is absent from the catalog are logged and skipped, entries
// whose conditions fail are skipped silently.
func (r *Resolver) CollectCandidates(w *catalog.World, node *catalog.RoutineNode, ctx *EvalContext) []Candidate {
	var out []Candidate
	for _, pref := range node.PreferredActivities {
		activity := w.Activity(pref.ActivityID)
		if activity == nil {
			slog.Warn("preferred activity missing from catalog",
				"world", w.ID, "node", node.ID, "activity", pref.ActivityID)
			continue
		}
		if !r.Registries.Conditions.EvalAll(pref.Conditions, ctx) {
			continue
		}
		out = append(out, Candidate{Activity: activity, BaseWeight: pref.Weight})
	}
	return out
}

// ScoreAndFilter combines each candidate's base weight with the weighted
// scoring factor contributions and drops infeasible (non-positive)
// results.
func (r *Resolver) ScoreAndFilter(candidates []Candidate, cfg catalog.ScoringConfig, ctx *EvalContext) []Scored {
	var out []Scored
	for _, c := range candidates {
		weight := c.BaseWeight + r.Registries.Scoring.Score(c.Activity, cfg, ctx)
		if weight <= 0 {
			continue
		}
		out = append(out, Scored{Activity: c.Activity, Weight: weight})
	}
	return out
}

// chooseWeighted performs weighted random selection. Empty and
// zero-total-weight sets deterministically choose nothing.
func chooseWeighted(scored []Scored, ctx *EvalContext) (*catalog.Activity, bool) {
	total := 0.0
	for _, s := range scored {
		total += s.Weight
	}
	if total <= 0 {
		return nil, false
	}

	roll := ctx.Float() * total
	for _, s := range scored {
		roll -= s.Weight
		if roll < 0 {
			return s.Activity, true
		}
	}
	// Floating-point edge: the roll landed exactly on total.
	return scored[len(scored)-1].Activity, true
}
