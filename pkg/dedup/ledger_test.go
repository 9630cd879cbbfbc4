package dedup

import (
	"fmt"
	"testing"
)

func TestLedger_MarkSeen(t *testing.T) {
	l := NewLedger(0)

	if l.Seen("env-1") {
		t.Error("expected env-1 unseen before mark")
	}
	l.Mark("env-1")
	if !l.Seen("env-1") {
		t.Error("expected env-1 seen after mark")
	}
	if l.Seen("env-2") {
		t.Error("expected env-2 unseen")
	}
}

func TestLedger_MarkIdempotent(t *testing.T) {
	l := NewLedger(4)
	l.Mark("env-1")
	l.Mark("env-1")
	l.Mark("env-1")
	if l.Len() != 1 {
		t.Errorf("expected 1 retained id, got %d", l.Len())
	}
}

func TestLedger_EvictsOldestFirst(t *testing.T) {
	l := NewLedger(3)
	for i := 1; i <= 3; i++ {
		l.Mark(fmt.Sprintf("env-%d", i))
	}
	if !l.Seen("env-1") {
		t.Fatal("expected env-1 retained at capacity")
	}

	l.Mark("env-4")
	if l.Seen("env-1") {
		t.Error("expected env-1 evicted first")
	}
	for _, id := range []string{"env-2", "env-3", "env-4"} {
		if !l.Seen(id) {
			t.Errorf("expected %s retained", id)
		}
	}
	if l.Len() != 3 {
		t.Errorf("expected window of 3, got %d", l.Len())
	}
}
