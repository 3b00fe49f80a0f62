package audit

import (
	"path/filepath"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestService(t)

	for _, ev := range []Event{
		{TraceID: "t1", GroupID: "G1", UserID: "U1", Action: ActionIntercept, Detail: "public blacklist"},
		{TraceID: "t2", GroupID: "G1", UserID: "U2", Action: ActionRelay, Detail: "-> G2"},
		{TraceID: "t3", GroupID: "G2", UserID: "U3", Action: ActionMute},
	} {
		if err := s.Record(ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	// Newest first.
	if events[0].Action != ActionMute {
		t.Errorf("first = %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("expected created_at")
	}

	g1, err := s.RecentForGroup("G1", 10)
	if err != nil {
		t.Fatalf("RecentForGroup: %v", err)
	}
	if len(g1) != 2 {
		t.Errorf("got %d G1 events", len(g1))
	}
}

func TestTouchGroup(t *testing.T) {
	s := newTestService(t)

	if err := s.TouchGroup("G1", ""); err != nil {
		t.Fatalf("TouchGroup: %v", err)
	}
	if err := s.TouchGroup("G1", "dev chat"); err != nil {
		t.Fatalf("TouchGroup: %v", err)
	}
	if err := s.TouchGroup("G1", ""); err != nil {
		t.Fatalf("TouchGroup: %v", err)
	}

	groups, err := s.Groups()
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups", len(groups))
	}
	// A later empty name must not erase the known one.
	if groups[0].Name != "dev chat" {
		t.Errorf("name = %q", groups[0].Name)
	}
	if groups[0].FirstSeen.After(groups[0].LastSeen) {
		t.Error("first_seen after last_seen")
	}
}
