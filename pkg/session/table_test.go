package session

import (
	"errors"
	"testing"
	"time"
)

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestTable_AddFindRemove(t *testing.T) {
	table := NewTable(2)
	now := time.Now()

	if err := table.Add(&Entry{ID: "a", Remote: "10.0.0.1:5000", Started: now}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := table.Add(&Entry{ID: "a"}); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("expected ErrDuplicateSession, got %v", err)
	}
	if err := table.Add(&Entry{ID: "b", Started: now.Add(time.Second)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !table.IsFull() {
		t.Error("table should be full")
	}
	if err := table.Add(&Entry{ID: "c"}); !errors.Is(err, ErrSessionTableFull) {
		t.Errorf("expected ErrSessionTableFull, got %v", err)
	}

	if err := table.SetPeer("a", "abcd"); err != nil {
		t.Fatalf("SetPeer failed: %v", err)
	}
	if err := table.SetPeer("zz", "abcd"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if e, ok := table.Find("a"); !ok || e.Peer != "abcd" {
		t.Errorf("Find(a) = %+v, %v", e, ok)
	}
	if got := table.FindByPeer("abcd"); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("FindByPeer = %+v", got)
	}

	snap := table.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "b" {
		t.Errorf("Snapshot order = %+v", snap)
	}

	table.Remove("a")
	table.Remove("missing")
	if table.Count() != 1 {
		t.Errorf("Count = %d, want 1", table.Count())
	}
}

func TestTable_CloseAll(t *testing.T) {
	table := NewTable(0)
	if table.MaxSessions() != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d", table.MaxSessions())
	}
	closer := &closeCounter{}
	_ = table.Add(&Entry{ID: "a", Closer: closer})
	_ = table.Add(&Entry{ID: "b", Closer: closer})
	_ = table.Add(&Entry{ID: "c"})

	if n := table.CloseAll(); n != 3 {
		t.Errorf("CloseAll = %d, want 3", n)
	}
	if closer.n != 2 {
		t.Errorf("closed %d entries, want 2", closer.n)
	}
	if table.Count() != 0 {
		t.Error("table not empty after CloseAll")
	}
}
