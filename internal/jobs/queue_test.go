package jobs

import "testing"

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)
	for _, kind := range []string{"a", "b", "c"} {
		if !q.Enqueue(Request{Kind: kind}) {
			t.Fatalf("enqueue %s failed", kind)
		}
	}

	got := q.Drain(2)
	if len(got) != 2 || got[0].Kind != "a" || got[1].Kind != "b" {
		t.Fatalf("drain(2) = %+v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("len after drain = %d", q.Len())
	}

	rest := q.Drain(10)
	if len(rest) != 1 || rest[0].Kind != "c" {
		t.Fatalf("remainder = %+v", rest)
	}
}

func TestQueueCapacityBackpressure(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue(Request{Kind: "a"})
	q.Enqueue(Request{Kind: "b"})

	if q.Enqueue(Request{Kind: "overflow"}) {
		t.Fatalf("enqueue over capacity succeeded")
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}

	// Draining frees capacity again.
	q.Drain(1)
	if !q.Enqueue(Request{Kind: "c"}) {
		t.Fatalf("enqueue after drain failed")
	}
}

func TestQueueUnbounded(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 1000; i++ {
		if !q.Enqueue(Request{Kind: "x"}) {
			t.Fatalf("unbounded queue rejected request %d", i)
		}
	}
	if q.Len() != 1000 {
		t.Fatalf("len = %d", q.Len())
	}
}

func TestDrainEdgeCases(t *testing.T) {
	q := NewQueue(4)
	if got := q.Drain(3); got != nil {
		t.Fatalf("drain of empty queue = %+v", got)
	}
	q.Enqueue(Request{Kind: "a"})
	if got := q.Drain(0); got != nil {
		t.Fatalf("drain(0) = %+v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("drain(0) consumed the queue")
	}
}
