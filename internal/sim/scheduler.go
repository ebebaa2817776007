package sim

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/mirelet/veldt/internal/behavior"
	"github.com/mirelet/veldt/internal/catalog"
	"github.com/mirelet/veldt/internal/jobs"
	"github.com/mirelet/veldt/internal/stats"
	"github.com/mirelet/veldt/internal/store"
	"github.com/mirelet/veldt/internal/tiers"
)

// checkpointEveryTicks controls how often world time and the journal hit
// durable storage. A crash loses at most this many ticks of elapsed time.
const checkpointEveryTicks = 10

// Store is the narrow persistence contract the scheduler consumes.
type Store interface {
	World(id string) (*catalog.World, error)
	WorldTime(id string) (float64, error)
	SetWorldTime(id string, worldTime float64) error
	SessionsByWorld(worldID string) ([]*store.Session, error)
	NPCsByWorld(worldID string) ([]*store.NPC, error)
	SaveSession(s *store.Session) error
	AppendEvents(events []store.Event) error
}

// Scheduler orchestrates one simulation context per registered world:
// advancing time, running budget-bounded agent decisions, draining job
// requests, and checkpointing. TickWorld is synchronous with no internal
// concurrency; distinct worlds may be ticked concurrently by the caller.
type Scheduler struct {
	Store      Store
	Classifier tiers.Classifier
	Resolver   *behavior.Resolver
	Jobs       *jobs.Queue
	Stats      stats.Provider

	// Seed derives each world's private rand source, so tests can pin
	// weighted selection.
	Seed int64

	mu     sync.Mutex
	worlds map[string]*Context
}

// NewScheduler wires a scheduler to its collaborators.
func NewScheduler(st Store, cls tiers.Classifier, res *behavior.Resolver, q *jobs.Queue, sp stats.Provider) *Scheduler {
	return &Scheduler{
		Store:      st,
		Classifier: cls,
		Resolver:   res,
		Jobs:       q,
		Stats:      sp,
		worlds:     make(map[string]*Context),
	}
}

// RegisterWorld creates the simulation context for a world, restoring its
// checkpointed time and scheduler config. Registering an already
// registered world returns the existing context.
func (s *Scheduler) RegisterWorld(worldID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(worldID)
}

func (s *Scheduler) registerLocked(worldID string) (*Context, error) {
	if ctx, ok := s.worlds[worldID]; ok {
		return ctx, nil
	}
	w, err := s.Store.World(worldID)
	if err != nil {
		return nil, fmt.Errorf("register world: %w", err)
	}
	worldTime, err := s.Store.WorldTime(worldID)
	if err != nil {
		return nil, fmt.Errorf("register world: %w", err)
	}
	ctx := NewContext(worldID, worldTime, w.SimulationConfig(), s.Seed^int64(worldLane(worldID)))
	s.worlds[worldID] = ctx
	slog.Info("world registered", "world", worldID,
		"world_time", worldTime, "time_scale", ctx.Config().TimeScale)
	return ctx, nil
}

func worldLane(worldID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(worldID))
	return h.Sum64()
}

// UnregisterWorld checkpoints a world one final time and destroys its
// context. Unregistering an unknown world is a no-op.
func (s *Scheduler) UnregisterWorld(worldID string) error {
	s.mu.Lock()
	ctx, ok := s.worlds[worldID]
	if ok {
		delete(s.worlds, worldID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.checkpoint(ctx); err != nil {
		return fmt.Errorf("unregister world %s: %w", worldID, err)
	}
	slog.Info("world unregistered", "world", worldID, "world_time", ctx.WorldTime())
	return nil
}

// RegisteredWorlds lists the ids of currently tracked worlds.
func (s *Scheduler) RegisteredWorlds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.worlds))
	for id := range s.worlds {
		out = append(out, id)
	}
	return out
}

// WorldContext returns the context for a registered world, or nil.
func (s *Scheduler) WorldContext(worldID string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worlds[worldID]
}

// TickWorld advances one world by one bounded unit of work. It must not
// be called concurrently for the same world.
func (s *Scheduler) TickWorld(worldID string, deltaRealSeconds float64) error {
	s.mu.Lock()
	ctx, err := s.registerLocked(worldID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if ctx.Config().PauseSimulation {
		return nil
	}

	start := time.Now()
	ctx.ResetTickCounters()
	ctx.AdvanceTime(deltaRealSeconds)
	tick := ctx.nextTick()

	world, err := s.Store.World(worldID)
	if err != nil {
		return fmt.Errorf("tick world %s: %w", worldID, err)
	}

	sessions, err := s.Store.SessionsByWorld(worldID)
	if err != nil {
		slog.Warn("failed to load sessions, skipping agent pass", "world", worldID, "error", err)
		sessions = nil
	}
	npcs, err := s.Store.NPCsByWorld(worldID)
	if err != nil {
		slog.Warn("failed to load npcs, skipping agent pass", "world", worldID, "error", err)
		npcs = nil
	}

	s.runAgentPass(ctx, world, sessions, npcs)
	s.drainJobs(ctx)

	if tick%checkpointEveryTicks == 0 {
		if err := s.checkpoint(ctx); err != nil {
			slog.Warn("checkpoint failed", "world", worldID, "error", err)
		}
	}

	ctx.UpdateTickStats(float64(time.Since(start).Microseconds()) / 1000.0)
	return nil
}

// runAgentPass classifies due agents across the world's sessions and
// simulates them under the per-tick budget, most detailed tiers first.
func (s *Scheduler) runAgentPass(ctx *Context, world *catalog.World, sessions []*store.Session, npcs []*store.NPC) {
	if len(sessions) == 0 || len(npcs) == 0 {
		return
	}

	sessionByID := make(map[string]*store.Session, len(sessions))
	npcByID := make(map[string]*store.NPC, len(npcs))
	var candidates []tiers.Candidate
	for _, sess := range sessions {
		sessionByID[sess.ID] = sess
		for _, n := range npcs {
			npcByID[n.ID] = n
			cand := tiers.Candidate{SessionID: sess.ID, AgentID: n.ID}
			if rec, ok := sess.Flags.NPCs[behavior.NPCKeyPrefix+n.ID]; ok {
				cand.State = &rec.State
			}
			candidates = append(candidates, cand)
		}
	}

	grouped := s.Classifier.Classify(world, candidates, ctx.WorldTime(), ctx.Config().MaxNPCTicksPerStep)

	dirty := make(map[string]*store.Session)
	for _, tier := range tiers.Order() {
		if !ctx.CanSimulateMoreNPCs() {
			break
		}
		for _, cand := range grouped[tier] {
			if !ctx.CanSimulateMoreNPCs() {
				break // budget exhausted: normal, remainder retries next tick
			}
			sess := sessionByID[cand.SessionID]
			npc := npcByID[cand.AgentID]
			if sess == nil || npc == nil {
				slog.Warn("classifier returned unknown candidate",
					"world", ctx.WorldID, "session", cand.SessionID, "agent", cand.AgentID)
				continue
			}
			s.simulateNPCIsolated(ctx, world, sess, npc, string(tier))
			ctx.RecordNPCSimulated(string(tier))
			dirty[sess.ID] = sess
		}
	}

	for _, sess := range dirty {
		if err := s.Store.SaveSession(sess); err != nil {
			slog.Warn("failed to persist session flags", "session", sess.ID, "error", err)
		}
	}
}

// simulateNPCIsolated guards one agent's decision step: a panic in a
// condition, effect, or scoring factor is contained so a single bad
// routine cannot stall the whole world.
func (s *Scheduler) simulateNPCIsolated(ctx *Context, world *catalog.World, sess *store.Session, npc *store.NPC, tier string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent decision panicked",
				"world", ctx.WorldID, "session", sess.ID, "agent", npc.ID, "panic", r)
			ctx.record("agent_error", fmt.Sprintf("agent %s decision failed", npc.ID))
		}
	}()
	s.simulateNPC(ctx, world, sess, npc, tier)
}

// simulateNPC runs one agent's decision step for one tick.
func (s *Scheduler) simulateNPC(ctx *Context, world *catalog.World, sess *store.Session, npc *store.NPC, tier string) {
	rec := sess.Flags.NPC(npc.ID)
	state := &rec.State
	now := ctx.WorldTime()

	// Not due yet: only refresh the last-simulated stamp.
	if now < state.NextDecisionAtSeconds {
		state.LastSimulatedAtSeconds = now
		state.LastSimulatedTier = tier
		return
	}

	evalCtx := s.buildEvalContext(ctx, world, sess, npc, rec, tier)

	state.FinishActivity(now)

	activity, chosen := s.Resolver.ChooseActivity(world, npc.RoutineID, evalCtx)
	if chosen {
		s.applyActivity(ctx, world, state, rec, evalCtx, activity)
	} else {
		// Nothing to do: back off by tier instead of re-deciding every
		// tick.
		state.NextDecisionAtSeconds = now + RetryInterval(tier)
	}

	state.LastSimulatedAtSeconds = now
	state.LastSimulatedTier = tier
}

// applyActivity commits a chosen activity: bookkeeping, effects, and the
// next decision time derived from the activity's minimum duration.
func (s *Scheduler) applyActivity(ctx *Context, world *catalog.World, state *behavior.NPCState, rec *behavior.NPCRecord, evalCtx *behavior.EvalContext, activity *catalog.Activity) {
	now := ctx.WorldTime()
	state.StartActivity(activity.ID, now)
	s.Resolver.Registries.Effects.Apply(activity.Effects, evalCtx)
	state.NextDecisionAtSeconds = now + activity.MinDurationSeconds
	ctx.record("activity", fmt.Sprintf("agent %s starts %s", evalCtx.AgentID, activity.ID))
}

// buildEvalContext assembles the per-decision snapshot. Every optional
// augmentation degrades to neutral when its source is absent.
func (s *Scheduler) buildEvalContext(ctx *Context, world *catalog.World, sess *store.Session, npc *store.NPC, rec *behavior.NPCRecord, tier string) *behavior.EvalContext {
	var routineDefaults map[string]any
	if g := world.Routine(npc.RoutineID); g != nil {
		routineDefaults = g.DefaultPreferences
	}

	var axisLayers []map[string]float64
	if s.Stats != nil {
		axisLayers = append(axisLayers, s.Stats.Axes(ctx.WorldID, sess.ID, npc.ID, ctx.WorldTime()))
	}
	axisLayers = append(axisLayers, sess.Stats)

	var archetype *catalog.Archetype
	if npc.Archetype != "" {
		if a, ok := world.Archetypes[npc.Archetype]; ok {
			archetype = &a
		}
	}

	var profiles []catalog.BehaviorProfile
	for _, name := range sess.Flags.ActiveProfiles {
		if p, ok := world.Profiles[name]; ok {
			profiles = append(profiles, p)
		}
	}

	var traitMods map[string]float64
	if world.FeatureEnabled("trait_effects") {
		traitMods = npc.Personality
	}

	return &behavior.EvalContext{
		WorldID:        ctx.WorldID,
		AgentID:        npc.ID,
		WorldTime:      ctx.WorldTime(),
		Tier:           tier,
		Stats:          stats.Merge(axisLayers...),
		Flags:          sess.Flags.Bools,
		Relationships:  rec.Relationships,
		Preferences:    behavior.MergePreferences(routineDefaults, npc.Preferences, rec.Overrides),
		Personality:    npc.Personality,
		Archetype:      archetype,
		Profiles:       profiles,
		TraitModifiers: traitMods,
		Features:       world.FeatureFlags,
		LocationType:   npc.LocationType,
		State:          &rec.State,
		Record:         rec,
		SessionFlags:   &sess.Flags,
		Rand:           ctx.rng,
		EmitEvent:      ctx.record,
		EnqueueJob: func(kind string, payload map[string]any) {
			ctx.RequestJob(jobs.Request{
				SessionID: sess.ID,
				AgentID:   npc.ID,
				Kind:      kind,
				Payload:   payload,
			})
		},
	}
}

// drainJobs moves parked job requests onto the external queue under the
// per-tick job budget. Leftovers stay parked for the next tick.
func (s *Scheduler) drainJobs(ctx *Context) {
	if s.Jobs == nil {
		ctx.clearPendingJobs()
		return
	}
	for ctx.CanEnqueueMoreJobs() {
		req, ok := ctx.takePendingJob()
		if !ok {
			return
		}
		if !s.Jobs.Enqueue(req) {
			// Queue full: backpressure, try again next tick.
			ctx.requeueJob(req)
			return
		}
		ctx.RecordJobEnqueued()
	}
}

// checkpoint persists world time and flushes the journal.
func (s *Scheduler) checkpoint(ctx *Context) error {
	worldTime, events := ctx.journalSnapshot()
	if err := s.Store.SetWorldTime(ctx.WorldID, worldTime); err != nil {
		return err
	}
	if len(events) > 0 {
		if err := s.Store.AppendEvents(events); err != nil {
			return err
		}
		ctx.dropJournal(len(events))
	}
	return nil
}
