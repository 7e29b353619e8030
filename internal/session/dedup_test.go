package session

import (
	"fmt"
	"testing"
)

func TestDedupGuardCheckAndMark(t *testing.T) {
	g := NewDedupGuard(16)

	if g.Seen("a") {
		t.Error("fresh guard should not have seen anything")
	}
	if g.CheckAndMark("a") {
		t.Error("first CheckAndMark should report not seen")
	}
	if !g.CheckAndMark("a") {
		t.Error("second CheckAndMark should report seen")
	}
	if !g.Seen("a") {
		t.Error("Seen should report marked id")
	}
}

func TestDedupGuardMarkIdempotent(t *testing.T) {
	g := NewDedupGuard(16)
	g.Mark("x")
	g.Mark("x")
	if g.Len() != 1 {
		t.Errorf("Len = %d, want 1", g.Len())
	}
}

func TestDedupGuardEvictsOldest(t *testing.T) {
	g := NewDedupGuard(3)
	for i := 0; i < 4; i++ {
		g.Mark(fmt.Sprintf("id-%d", i))
	}

	if g.Len() != 3 {
		t.Fatalf("Len = %d, want 3", g.Len())
	}
	if g.Seen("id-0") {
		t.Error("oldest id should have been evicted")
	}
	if !g.Seen("id-3") {
		t.Error("newest id should be present")
	}
}

func TestDedupGuardRecentUseDelaysEviction(t *testing.T) {
	g := NewDedupGuard(2)
	g.Mark("a")
	g.Mark("b")
	g.CheckAndMark("a") // a becomes most recent
	g.Mark("c")         // evicts b

	if !g.Seen("a") {
		t.Error("recently used id should survive")
	}
	if g.Seen("b") {
		t.Error("least recently used id should be evicted")
	}
}
