package behavior

import "testing"

func TestFinishActivityBoundsHistory(t *testing.T) {
	var s NPCState
	for i := 0; i < 15; i++ {
		s.StartActivity("a", float64(i))
		s.FinishActivity(float64(i))
	}
	if len(s.LastActivities) != MaxActivityHistory {
		t.Fatalf("history length = %d, want %d", len(s.LastActivities), MaxActivityHistory)
	}
	// Oldest entries evicted first: the survivors are ticks 5..14.
	if got := s.LastActivities[0].EndedAtSeconds; got != 5 {
		t.Fatalf("oldest surviving entry ended at %v, want 5", got)
	}
	if got := s.LastActivities[MaxActivityHistory-1].EndedAtSeconds; got != 14 {
		t.Fatalf("newest entry ended at %v, want 14", got)
	}
}

func TestFinishActivityHistoryGrowsWithFinishes(t *testing.T) {
	var s NPCState
	for i := 1; i <= 4; i++ {
		s.StartActivity("a", float64(i))
		s.FinishActivity(float64(i))
		if len(s.LastActivities) != i {
			t.Fatalf("after %d finishes history length = %d", i, len(s.LastActivities))
		}
	}
}

func TestFinishActivityNoopWhenIdle(t *testing.T) {
	var s NPCState
	s.FinishActivity(100)
	if len(s.LastActivities) != 0 {
		t.Fatalf("finishing with no current activity recorded history: %v", s.LastActivities)
	}
}

func TestFinishActivityClearsCurrent(t *testing.T) {
	var s NPCState
	s.StartActivity("work", 50)
	s.FinishActivity(120)

	if s.CurrentActivityID != "" {
		t.Fatalf("current activity not cleared: %q", s.CurrentActivityID)
	}
	if s.ActivityStartedAtSeconds != nil {
		t.Fatalf("start timestamp not cleared")
	}
	rec := s.LastActivities[0]
	if rec.ActivityID != "work" || rec.EndedAtSeconds != 120 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestStartActivityKeepsTimestampForSameActivity(t *testing.T) {
	var s NPCState
	s.StartActivity("rest", 10)
	s.StartActivity("rest", 99)
	if s.ActivityStartedAtSeconds == nil || *s.ActivityStartedAtSeconds != 10 {
		t.Fatalf("restarting the same activity reset its start timestamp")
	}

	s.StartActivity("work", 120)
	if *s.ActivityStartedAtSeconds != 120 {
		t.Fatalf("new activity did not stamp a fresh start time")
	}
}

func TestStateTags(t *testing.T) {
	var s NPCState
	s.AddTag("tired")
	s.AddTag("tired")
	if len(s.StateTags) != 1 {
		t.Fatalf("duplicate tag added: %v", s.StateTags)
	}
	if !s.HasTag("tired") {
		t.Fatalf("missing tag")
	}
	s.RemoveTag("tired")
	if s.HasTag("tired") {
		t.Fatalf("tag not removed")
	}
}

func TestSessionFlagsNPCCreatesRecord(t *testing.T) {
	var f SessionFlags
	rec := f.NPC("guard-1")
	if rec == nil {
		t.Fatalf("nil record")
	}
	if f.NPCs[NPCKeyPrefix+"guard-1"] != rec {
		t.Fatalf("record not stored under prefixed key")
	}
	if again := f.NPC("guard-1"); again != rec {
		t.Fatalf("second lookup created a new record")
	}
}
