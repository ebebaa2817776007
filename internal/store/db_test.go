package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mirelet/veldt/internal/behavior"
	"github.com/mirelet/veldt/internal/catalog"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWorldRoundTripAndTimePreserved(t *testing.T) {
	db := openTestDB(t)
	w := &catalog.World{
		ID:   "meadow",
		Name: "Meadow",
		Activities: map[string]*catalog.Activity{
			"sleep": {ID: "sleep", MinDurationSeconds: 3600},
		},
	}
	if err := db.UpsertWorld(w); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.World("meadow")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != "Meadow" || got.Activity("sleep") == nil {
		t.Fatalf("world = %+v", got)
	}

	// Checkpoint some time, then re-import the catalog: the checkpoint
	// must survive.
	if err := db.SetWorldTime("meadow", 12345); err != nil {
		t.Fatalf("set time: %v", err)
	}
	w.Name = "Meadow v2"
	if err := db.UpsertWorld(w); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	tm, err := db.WorldTime("meadow")
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if tm != 12345 {
		t.Fatalf("world time after re-import = %v, want 12345", tm)
	}

	ids, err := db.WorldIDs()
	if err != nil || len(ids) != 1 || ids[0] != "meadow" {
		t.Fatalf("ids = %v, %v", ids, err)
	}
}

func TestSetWorldTimeUnknownWorld(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetWorldTime("nowhere", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := db.World("nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionFlagsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	sess, err := db.CreateSession("meadow")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" {
		t.Fatalf("session has no id")
	}

	// Fill the behavior sub-state past the history bound and persist.
	rec := sess.Flags.NPC("elder")
	for i := 0; i < 15; i++ {
		rec.State.StartActivity("walk", float64(i))
		rec.State.FinishActivity(float64(i) + 0.5)
	}
	rec.Inventory = map[string]int{"bread": 3}
	rec.XP = 12
	sess.Flags.SetBool("festival", true)
	sess.Stats["energy"] = 0.4
	if err := db.SaveSession(sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.Session(sess.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	gotRec, ok := got.Flags.NPCs[behavior.NPCKeyPrefix+"elder"]
	if !ok {
		t.Fatalf("agent record lost: %+v", got.Flags)
	}
	if len(gotRec.State.LastActivities) != behavior.MaxActivityHistory {
		t.Fatalf("history length = %d", len(gotRec.State.LastActivities))
	}
	if gotRec.Inventory["bread"] != 3 || gotRec.XP != 12 {
		t.Fatalf("record = %+v", gotRec)
	}
	if !got.Flags.Bools["festival"] || got.Stats["energy"] != 0.4 {
		t.Fatalf("session = %+v", got)
	}

	sessions, err := db.SessionsByWorld("meadow")
	if err != nil || len(sessions) != 1 {
		t.Fatalf("by world = %v, %v", sessions, err)
	}
}

func TestNPCRoundTrip(t *testing.T) {
	db := openTestDB(t)
	n := &NPC{
		ID:           "elder",
		WorldID:      "meadow",
		Name:         "Elder Maren",
		RoutineID:    "villager",
		Archetype:    "sage",
		LocationType: "village",
		Personality:  map[string]float64{"curious": 0.7},
		Preferences:  map[string]any{"activities": map[string]any{"read": 2.0}},
	}
	if err := db.UpsertNPC(n); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.NPCByID("elder")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != "Elder Maren" || got.Personality["curious"] != 0.7 {
		t.Fatalf("npc = %+v", got)
	}

	// Upsert replaces the profile in place.
	n.RoutineID = "hermit"
	if err := db.UpsertNPC(n); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	byWorld, err := db.NPCsByWorld("meadow")
	if err != nil || len(byWorld) != 1 {
		t.Fatalf("by world = %v, %v", byWorld, err)
	}
	if byWorld[0].RoutineID != "hermit" {
		t.Fatalf("routine = %q", byWorld[0].RoutineID)
	}
}

func TestEventsAppendAndRecent(t *testing.T) {
	db := openTestDB(t)
	events := []Event{
		{WorldID: "meadow", WorldTime: 1, Category: "activity", Description: "first"},
		{WorldID: "meadow", WorldTime: 2, Category: "activity", Description: "second"},
		{WorldID: "other", WorldTime: 3, Category: "activity", Description: "elsewhere"},
	}
	if err := db.AppendEvents(events); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.AppendEvents(nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}

	got, err := db.RecentEvents("meadow", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Description != "second" || got[1].Description != "first" {
		t.Fatalf("events = %+v", got)
	}

	limited, err := db.RecentEvents("meadow", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited = %+v, %v", limited, err)
	}
}
