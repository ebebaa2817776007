package behavior

import (
	"math/rand"
	"testing"

	"github.com/mirelet/veldt/internal/catalog"
)

// testWorld builds a small catalog: a day routine with a night slot that
// wraps midnight, a work slot, and a fall-through activity node.
func testWorld() *catalog.World {
	return &catalog.World{
		ID: "hamlet",
		Activities: map[string]*catalog.Activity{
			"sleep": {ID: "sleep", Category: "recovery", Tags: []string{"restores:energy"}, MinDurationSeconds: 3600},
			"work":  {ID: "work", Category: "labor", MinDurationSeconds: 1800},
			"idle":  {ID: "idle", Category: "leisure", MinDurationSeconds: 600},
		},
		Routines: map[string]*catalog.RoutineGraph{
			"villager_day": {
				ID: "villager_day",
				Nodes: []catalog.RoutineNode{
					{
						ID:               "night",
						NodeType:         catalog.NodeTimeSlot,
						TimeRangeSeconds: &catalog.TimeRange{Start: 79200, End: 21600},
						PreferredActivities: []catalog.PreferredActivity{
							{ActivityID: "sleep", Weight: 5},
						},
					},
					{
						ID:               "work_hours",
						NodeType:         catalog.NodeTimeSlot,
						TimeRangeSeconds: &catalog.TimeRange{Start: 28800, End: 61200},
						PreferredActivities: []catalog.PreferredActivity{
							{ActivityID: "work", Weight: 3},
						},
					},
					{
						ID:       "fallback",
						NodeType: catalog.NodeActivity,
						PreferredActivities: []catalog.PreferredActivity{
							{ActivityID: "idle", Weight: 1},
						},
					},
				},
			},
		},
	}
}

func testCtx(worldTime float64) *EvalContext {
	return &EvalContext{
		WorldID:   "hamlet",
		AgentID:   "npc-1",
		WorldTime: worldTime,
		Rand:      rand.New(rand.NewSource(1)),
	}
}

func TestTimeSlotWrapsMidnight(t *testing.T) {
	w := testWorld()
	r := NewResolver(bootstrapped(t))
	g := w.Routine("villager_day")

	for _, tc := range []struct {
		worldTime float64
		wantNode  string
	}{
		{82800, "night"},      // 23:00
		{3600, "night"},       // 01:00
		{43200, "work_hours"}, // 12:00
		{25200, "fallback"},   // 07:00, between slots
	} {
		node := r.FindActiveNode(g, testCtx(tc.worldTime))
		if node == nil {
			t.Fatalf("time %v: no active node", tc.worldTime)
		}
		if node.ID != tc.wantNode {
			t.Fatalf("time %v: active node %q, want %q", tc.worldTime, node.ID, tc.wantNode)
		}
	}
}

func TestFirstMatchingNodeWinsInDeclarationOrder(t *testing.T) {
	r := NewResolver(bootstrapped(t))
	g := &catalog.RoutineGraph{
		ID: "overlap",
		Nodes: []catalog.RoutineNode{
			{ID: "first", NodeType: catalog.NodeTimeSlot, TimeRangeSeconds: &catalog.TimeRange{Start: 0, End: 86400}},
			{ID: "second", NodeType: catalog.NodeTimeSlot, TimeRangeSeconds: &catalog.TimeRange{Start: 0, End: 86400}},
		},
	}

	node := r.FindActiveNode(g, testCtx(43200))
	if node == nil || node.ID != "first" {
		t.Fatalf("overlapping slots resolved to %v, want first", node)
	}
}

func TestDecisionNodeRequiresAllConditions(t *testing.T) {
	r := NewResolver(bootstrapped(t))
	g := &catalog.RoutineGraph{
		ID: "guard",
		Nodes: []catalog.RoutineNode{
			{
				ID:       "exhausted_on_duty",
				NodeType: catalog.NodeDecision,
				DecisionConditions: []catalog.Condition{
					{Kind: "flag_set", Params: map[string]any{"name": "on_duty"}},
					{Kind: "stat_threshold", Params: map[string]any{"axis": "energy", "op": "lt", "value": 0.3}},
				},
			},
			{ID: "fallback", NodeType: catalog.NodeActivity},
		},
	}

	ctx := testCtx(0)
	ctx.Flags = map[string]bool{"on_duty": true}
	ctx.Stats = map[string]float64{"energy": 0.5}
	if node := r.FindActiveNode(g, ctx); node.ID != "fallback" {
		t.Fatalf("one failing condition should skip the decision node, got %q", node.ID)
	}

	ctx.Stats["energy"] = 0.1
	if node := r.FindActiveNode(g, ctx); node.ID != "exhausted_on_duty" {
		t.Fatalf("all conditions hold but node is %q", node.ID)
	}
}

func TestUnknownActivityIDIsSkipped(t *testing.T) {
	w := testWorld()
	r := NewResolver(bootstrapped(t))
	node := &catalog.RoutineNode{
		ID:       "mixed",
		NodeType: catalog.NodeActivity,
		PreferredActivities: []catalog.PreferredActivity{
			{ActivityID: "no_such_activity", Weight: 10},
			{ActivityID: "idle", Weight: 1},
		},
	}

	cands := r.CollectCandidates(w, node, testCtx(0))
	if len(cands) != 1 || cands[0].Activity.ID != "idle" {
		t.Fatalf("candidates = %+v, want only idle", cands)
	}
}

func TestCandidateConditionsFilter(t *testing.T) {
	w := testWorld()
	r := NewResolver(bootstrapped(t))
	node := &catalog.RoutineNode{
		ID:       "gated",
		NodeType: catalog.NodeActivity,
		PreferredActivities: []catalog.PreferredActivity{
			{ActivityID: "work", Weight: 3, Conditions: []catalog.Condition{
				{Kind: "flag_set", Params: map[string]any{"name": "employed"}},
			}},
			{ActivityID: "idle", Weight: 1},
		},
	}

	ctx := testCtx(0)
	ctx.Flags = map[string]bool{}
	cands := r.CollectCandidates(w, node, ctx)
	if len(cands) != 1 || cands[0].Activity.ID != "idle" {
		t.Fatalf("unemployed candidates = %+v", cands)
	}

	ctx.Flags["employed"] = true
	cands = r.CollectCandidates(w, node, ctx)
	if len(cands) != 2 {
		t.Fatalf("employed candidates = %+v", cands)
	}
}

func TestScoreAndFilterDropsInfeasible(t *testing.T) {
	w := testWorld()
	r := NewResolver(bootstrapped(t))

	cands := []Candidate{
		{Activity: w.Activity("idle"), BaseWeight: 2},
		{Activity: w.Activity("work"), BaseWeight: 0}, // scores to zero with a bare context
	}
	ctx := testCtx(0)
	scored := r.ScoreAndFilter(cands, catalog.ScoringConfig{}, ctx)
	if len(scored) != 1 || scored[0].Activity.ID != "idle" {
		t.Fatalf("scored = %+v, want only idle", scored)
	}
	if scored[0].Weight != 2 {
		t.Fatalf("idle weight = %v, want base weight 2", scored[0].Weight)
	}
}

func TestChooseWeightedZeroTotalChoosesNothing(t *testing.T) {
	if _, ok := chooseWeighted(nil, testCtx(0)); ok {
		t.Fatalf("empty set chose an activity")
	}
}

func TestChooseWeightedRespectsWeights(t *testing.T) {
	w := testWorld()
	scored := []Scored{
		{Activity: w.Activity("sleep"), Weight: 9},
		{Activity: w.Activity("idle"), Weight: 1},
	}

	ctx := testCtx(0)
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		a, ok := chooseWeighted(scored, ctx)
		if !ok {
			t.Fatalf("choice failed")
		}
		counts[a.ID]++
	}
	if counts["sleep"] < 800 || counts["idle"] == 0 {
		t.Fatalf("choice distribution off: %v", counts)
	}
}

func TestChooseActivityEndToEnd(t *testing.T) {
	w := testWorld()
	r := NewResolver(bootstrapped(t))

	// 23:00: the night slot is active and only sleep is on offer.
	a, ok := r.ChooseActivity(w, "villager_day", testCtx(82800))
	if !ok || a.ID != "sleep" {
		t.Fatalf("night choice = %v, %v", a, ok)
	}

	// Empty routine id is the terminal no-op.
	if _, ok := r.ChooseActivity(w, "", testCtx(82800)); ok {
		t.Fatalf("empty routine id chose an activity")
	}

	// Unknown routine id logs and chooses nothing.
	if _, ok := r.ChooseActivity(w, "no_such_routine", testCtx(82800)); ok {
		t.Fatalf("unknown routine chose an activity")
	}
}

func TestMergePreferencesShallow(t *testing.T) {
	base := map[string]any{
		"activities": map[string]any{"sleep": 1.0, "work": 1.0},
		"pace":       "slow",
	}
	override := map[string]any{
		"activities": map[string]any{"sleep": 3.0},
	}

	merged := MergePreferences(base, override)
	if merged["pace"] != "slow" {
		t.Fatalf("untouched key lost: %v", merged)
	}
	acts, _ := merged["activities"].(map[string]any)
	if acts["sleep"] != 3.0 {
		t.Fatalf("override not applied: %v", acts)
	}
	// Shallow merge: the override map replaces the base map wholesale.
	if _, ok := acts["work"]; ok {
		t.Fatalf("shallow merge should drop keys absent from the override layer: %v", acts)
	}
}
