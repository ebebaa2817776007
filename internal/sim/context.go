// Package sim provides the tick-based world scheduler: per-world
// simulation contexts, budgeted agent decision passes, and checkpointing.
package sim

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/mirelet/veldt/internal/jobs"
	"github.com/mirelet/veldt/internal/store"
)

// Config is the per-world scheduler configuration, read from
// world.meta["simulation"].
type Config struct {
	TimeScale           float64 // world-seconds per real-second
	MaxNPCTicksPerStep  int
	MaxJobOpsPerStep    int
	TickIntervalSeconds float64 // informational; the caller owns the cadence
	PauseSimulation     bool
}

// DefaultConfig returns the hard-coded scheduler defaults.
func DefaultConfig() Config {
	return Config{
		TimeScale:           1.0,
		MaxNPCTicksPerStep:  50,
		MaxJobOpsPerStep:    5,
		TickIntervalSeconds: 5,
	}
}

// ParseConfig builds a Config from the raw world metadata map. Any
// malformed or out-of-range value falls back to its default with a logged
// warning; a bad config is never fatal.
func ParseConfig(worldID string, raw map[string]any) Config {
	cfg := DefaultConfig()
	if raw == nil {
		return cfg
	}

	warn := func(key string) {
		slog.Warn("invalid scheduler config value, using default", "world", worldID, "key", key)
	}

	if v, ok := raw["timeScale"]; ok {
		if f, ok := asFloat(v); ok && f > 0 {
			cfg.TimeScale = f
		} else {
			warn("timeScale")
		}
	}
	if v, ok := raw["maxNpcTicksPerStep"]; ok {
		if f, ok := asFloat(v); ok && f >= 0 {
			cfg.MaxNPCTicksPerStep = int(f)
		} else {
			warn("maxNpcTicksPerStep")
		}
	}
	if v, ok := raw["maxJobOpsPerStep"]; ok {
		if f, ok := asFloat(v); ok && f >= 0 {
			cfg.MaxJobOpsPerStep = int(f)
		} else {
			warn("maxJobOpsPerStep")
		}
	}
	if v, ok := raw["tickIntervalSeconds"]; ok {
		if f, ok := asFloat(v); ok && f > 0 {
			cfg.TickIntervalSeconds = f
		} else {
			warn("tickIntervalSeconds")
		}
	}
	if v, ok := raw["pauseSimulation"]; ok {
		if b, ok := v.(bool); ok {
			cfg.PauseSimulation = b
		} else {
			warn("pauseSimulation")
		}
	}
	return cfg
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// tickStatsAlpha is the EMA smoothing factor for tick durations.
const tickStatsAlpha = 0.2

// Context is the scheduler's per-world runtime state: world clock, config,
// per-tick counters, and rolling tick statistics. Created on
// RegisterWorld, destroyed after a final checkpoint on UnregisterWorld.
// The tick loop writes it and the HTTP observation path reads it
// concurrently, so all mutable state sits behind the context's mutex.
type Context struct {
	WorldID string

	mu        sync.Mutex
	worldTime float64
	config    Config

	npcsSimulated int
	jobsEnqueued  int
	tierCounts    map[string]int

	tickCount     uint64
	avgTickMs     float64
	haveTickStats bool

	pendingJobs []jobs.Request
	journal     []store.Event

	rng *rand.Rand
}

// NewContext builds a context from persisted world time and raw config.
func NewContext(worldID string, worldTime float64, rawConfig map[string]any, seed int64) *Context {
	return &Context{
		WorldID:    worldID,
		worldTime:  worldTime,
		config:     ParseConfig(worldID, rawConfig),
		tierCounts: make(map[string]int),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// WorldTime returns the current world clock.
func (c *Context) WorldTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldTime
}

// Config returns a copy of the current scheduler configuration.
func (c *Context) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// AdvanceTime converts elapsed real seconds into game seconds and adds
// them to the world clock. Returns 0 while the world is paused.
func (c *Context) AdvanceTime(deltaRealSeconds float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config.PauseSimulation {
		return 0
	}
	deltaGame := deltaRealSeconds * c.config.TimeScale
	c.worldTime += deltaGame
	return deltaGame
}

// CanSimulateMoreNPCs reports whether the per-tick agent budget allows
// another decision.
func (c *Context) CanSimulateMoreNPCs() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.npcsSimulated < c.config.MaxNPCTicksPerStep
}

// CanEnqueueMoreJobs reports whether the per-tick job budget allows
// another enqueue.
func (c *Context) CanEnqueueMoreJobs() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobsEnqueued < c.config.MaxJobOpsPerStep
}

// RecordNPCSimulated counts one agent decision against the budget and the
// per-tier histogram.
func (c *Context) RecordNPCSimulated(tier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.npcsSimulated++
	c.tierCounts[tier]++
}

// RecordJobEnqueued counts one job against the budget.
func (c *Context) RecordJobEnqueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsEnqueued++
}

// ResetTickCounters clears the per-tick counters. The tier histogram
// accumulates across ticks.
func (c *Context) ResetTickCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.npcsSimulated = 0
	c.jobsEnqueued = 0
}

// NPCsSimulatedThisTick returns the current tick's decision count.
func (c *Context) NPCsSimulatedThisTick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.npcsSimulated
}

// JobsEnqueuedThisTick returns the current tick's job count.
func (c *Context) JobsEnqueuedThisTick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobsEnqueued
}

// TierCounts returns a copy of the cumulative per-tier histogram.
func (c *Context) TierCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.tierCounts))
	for k, v := range c.tierCounts {
		out[k] = v
	}
	return out
}

// TickCount returns how many non-paused ticks this context has run.
func (c *Context) TickCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickCount
}

// nextTick increments and returns the tick counter.
func (c *Context) nextTick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickCount++
	return c.tickCount
}

// UpdateTickStats folds one tick duration into the rolling average. The
// first sample sets the average directly.
func (c *Context) UpdateTickStats(durationMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveTickStats {
		c.avgTickMs = durationMs
		c.haveTickStats = true
		return
	}
	c.avgTickMs = tickStatsAlpha*durationMs + (1-tickStatsAlpha)*c.avgTickMs
}

// AverageTickDurationMs returns the rolling tick-duration average.
func (c *Context) AverageTickDurationMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avgTickMs
}

// SetPaused toggles the world's pause flag. Intended for the control
// plane; takes effect at the next tick boundary.
func (c *Context) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.PauseSimulation = paused
}

// SetTimeScale adjusts the world clock rate. Non-positive values are
// ignored.
func (c *Context) SetTimeScale(scale float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scale > 0 {
		c.config.TimeScale = scale
	}
}

// RequestJob parks a generation-job request on the world's pending list.
// Pending requests are moved to the external queue under the per-tick job
// budget, spilling to later ticks when the budget runs out.
func (c *Context) RequestJob(r jobs.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r.WorldID = c.WorldID
	c.pendingJobs = append(c.pendingJobs, r)
}

// PendingJobs returns the number of parked job requests.
func (c *Context) PendingJobs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pendingJobs)
}

// takePendingJob pops the oldest parked request.
func (c *Context) takePendingJob() (jobs.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pendingJobs) == 0 {
		return jobs.Request{}, false
	}
	req := c.pendingJobs[0]
	c.pendingJobs = c.pendingJobs[1:]
	return req, true
}

// requeueJob puts a request back at the front after a failed enqueue.
func (c *Context) requeueJob(r jobs.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingJobs = append([]jobs.Request{r}, c.pendingJobs...)
}

// clearPendingJobs drops all parked requests.
func (c *Context) clearPendingJobs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingJobs = nil
}

// record appends a journal event, bounding in-memory growth between
// checkpoints.
func (c *Context) record(category, description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = append(c.journal, store.Event{
		WorldID:     c.WorldID,
		WorldTime:   c.worldTime,
		Category:    category,
		Description: description,
	})
	if len(c.journal) > 1000 {
		c.journal = c.journal[len(c.journal)-1000:]
	}
}

// journalSnapshot copies the pending journal entries alongside the world
// time they checkpoint with.
func (c *Context) journalSnapshot() (float64, []store.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Event, len(c.journal))
	copy(out, c.journal)
	return c.worldTime, out
}

// dropJournal removes the first n entries after a successful flush.
func (c *Context) dropJournal(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n >= len(c.journal) {
		c.journal = c.journal[:0]
		return
	}
	c.journal = append(c.journal[:0], c.journal[n:]...)
}

// retryIntervals is the tier-dependent backoff applied when an agent's
// decision produced no activity, so idle agents do not busy-loop.
var retryIntervals = map[string]float64{
	"detailed": 60,
	"active":   300,
	"ambient":  1800,
	"dormant":  7200,
}

// defaultRetryInterval applies to unknown tiers.
const defaultRetryInterval = 300

// RetryInterval returns the no-activity backoff for a tier.
func RetryInterval(tier string) float64 {
	if v, ok := retryIntervals[tier]; ok {
		return v
	}
	return defaultRetryInterval
}
