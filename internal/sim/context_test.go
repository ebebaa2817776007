package sim

import (
	"testing"

	"github.com/mirelet/veldt/internal/jobs"
)

func TestAdvanceTimeScalesRealSeconds(t *testing.T) {
	ctx := NewContext("w", 1000, map[string]any{"timeScale": 60.0}, 1)
	got := ctx.AdvanceTime(2)
	if got != 120 {
		t.Fatalf("delta = %v, want 120", got)
	}
	if ctx.WorldTime() != 1120 {
		t.Fatalf("world time = %v, want 1120", ctx.WorldTime())
	}
}

func TestAdvanceTimeWhilePaused(t *testing.T) {
	ctx := NewContext("w", 500, map[string]any{"pauseSimulation": true}, 1)
	if got := ctx.AdvanceTime(10); got != 0 {
		t.Fatalf("paused advance returned %v", got)
	}
	if ctx.WorldTime() != 500 {
		t.Fatalf("paused world time moved to %v", ctx.WorldTime())
	}

	ctx.SetPaused(false)
	ctx.AdvanceTime(10)
	if ctx.WorldTime() != 510 {
		t.Fatalf("resumed world time = %v, want 510", ctx.WorldTime())
	}
}

func TestParseConfigFallsBackPerKey(t *testing.T) {
	cfg := ParseConfig("w", map[string]any{
		"timeScale":          -3.0,     // invalid, falls back
		"maxNpcTicksPerStep": 7,        // valid
		"maxJobOpsPerStep":   "twelve", // invalid, falls back
	})

	def := DefaultConfig()
	if cfg.TimeScale != def.TimeScale {
		t.Fatalf("timeScale = %v, want default %v", cfg.TimeScale, def.TimeScale)
	}
	if cfg.MaxNPCTicksPerStep != 7 {
		t.Fatalf("maxNpcTicksPerStep = %v, want 7", cfg.MaxNPCTicksPerStep)
	}
	if cfg.MaxJobOpsPerStep != def.MaxJobOpsPerStep {
		t.Fatalf("maxJobOpsPerStep = %v, want default %v", cfg.MaxJobOpsPerStep, def.MaxJobOpsPerStep)
	}

	if got := ParseConfig("w", nil); got != def {
		t.Fatalf("nil config = %+v, want defaults", got)
	}
}

func TestBudgetCounters(t *testing.T) {
	ctx := NewContext("w", 0, map[string]any{
		"maxNpcTicksPerStep": 2,
		"maxJobOpsPerStep":   1,
	}, 1)

	if !ctx.CanSimulateMoreNPCs() {
		t.Fatalf("fresh tick should have budget")
	}
	ctx.RecordNPCSimulated("active")
	ctx.RecordNPCSimulated("ambient")
	if ctx.CanSimulateMoreNPCs() {
		t.Fatalf("budget of 2 not exhausted after 2 decisions")
	}

	ctx.RecordJobEnqueued()
	if ctx.CanEnqueueMoreJobs() {
		t.Fatalf("job budget of 1 not exhausted")
	}

	ctx.ResetTickCounters()
	if !ctx.CanSimulateMoreNPCs() || !ctx.CanEnqueueMoreJobs() {
		t.Fatalf("reset did not restore budgets")
	}

	// The tier histogram survives the reset.
	counts := ctx.TierCounts()
	if counts["active"] != 1 || counts["ambient"] != 1 {
		t.Fatalf("tier counts = %v", counts)
	}
}

func TestTickStatsEMA(t *testing.T) {
	ctx := NewContext("w", 0, nil, 1)

	ctx.UpdateTickStats(10)
	if ctx.AverageTickDurationMs() != 10 {
		t.Fatalf("first sample should set the average directly, got %v", ctx.AverageTickDurationMs())
	}

	ctx.UpdateTickStats(20)
	want := 0.2*20 + 0.8*10.0
	if got := ctx.AverageTickDurationMs(); got != want {
		t.Fatalf("second sample = %v, want %v", got, want)
	}
}

func TestSetTimeScaleIgnoresNonPositive(t *testing.T) {
	ctx := NewContext("w", 0, nil, 1)
	ctx.SetTimeScale(0)
	ctx.SetTimeScale(-1)
	if ctx.Config().TimeScale != 1.0 {
		t.Fatalf("time scale = %v, want 1.0", ctx.Config().TimeScale)
	}
	ctx.SetTimeScale(4)
	if ctx.Config().TimeScale != 4 {
		t.Fatalf("time scale = %v, want 4", ctx.Config().TimeScale)
	}
}

func TestRequestJobStampsWorldID(t *testing.T) {
	ctx := NewContext("meadow", 0, nil, 1)
	ctx.RequestJob(jobs.Request{SessionID: "s1", AgentID: "n1", Kind: "dialogue"})
	if ctx.PendingJobs() != 1 {
		t.Fatalf("pending = %d", ctx.PendingJobs())
	}
	if ctx.pendingJobs[0].WorldID != "meadow" {
		t.Fatalf("world id not stamped: %+v", ctx.pendingJobs[0])
	}
}

func TestRetryIntervalPerTier(t *testing.T) {
	for tier, want := range map[string]float64{
		"detailed": 60,
		"active":   300,
		"ambient":  1800,
		"dormant":  7200,
		"unknown":  300,
	} {
		if got := RetryInterval(tier); got != want {
			t.Fatalf("RetryInterval(%q) = %v, want %v", tier, got, want)
		}
	}
}
