package hubtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/ziyasal/iotedge/pkg/protocol"
)

func event(i int) protocol.Event {
	return protocol.Event{ID: fmt.Sprintf("ev-%d", i), DeviceID: "d", ModuleID: "m"}
}

func TestStoreKeepsArrivalOrder(t *testing.T) {
	s := newEventStore(0, 0)
	for i := 0; i < 5; i++ {
		s.Add(event(i))
	}
	got := s.Snapshot()
	if len(got) != 5 {
		t.Fatalf("len %d", len(got))
	}
	for i, ev := range got {
		if ev.ID != fmt.Sprintf("ev-%d", i) {
			t.Fatalf("order broken at %d: %s", i, ev.ID)
		}
	}
}

func TestStoreCapEvictsOldest(t *testing.T) {
	s := newEventStore(0, 3)
	for i := 0; i < 5; i++ {
		s.Add(event(i))
	}
	got := s.Snapshot()
	if len(got) != 3 {
		t.Fatalf("len %d, want cap 3", len(got))
	}
	if got[0].ID != "ev-2" || got[2].ID != "ev-4" {
		t.Fatalf("wrong survivors: %s..%s", got[0].ID, got[2].ID)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	s := newEventStore(time.Minute, 0)
	now := time.Unix(1000, 0)
	s.nowFn = func() time.Time { return now }

	s.Add(event(0))
	now = now.Add(30 * time.Second)
	s.Add(event(1))
	if s.Len() != 2 {
		t.Fatalf("len %d before expiry", s.Len())
	}

	// First entry is now 70s old, second 40s.
	now = now.Add(40 * time.Second)
	got := s.Snapshot()
	if len(got) != 1 {
		t.Fatalf("len %d after expiry", len(got))
	}
	if got[0].ID != "ev-1" {
		t.Fatalf("wrong survivor %s", got[0].ID)
	}

	// Everything ages out eventually.
	now = now.Add(time.Hour)
	if s.Len() != 0 {
		t.Fatalf("len %d after full expiry", s.Len())
	}
}

func TestStoreZeroTTLNeverExpires(t *testing.T) {
	s := newEventStore(0, 0)
	now := time.Unix(1000, 0)
	s.nowFn = func() time.Time { return now }
	s.Add(event(0))
	now = now.Add(24 * time.Hour)
	if s.Len() != 1 {
		t.Fatal("ttl 0 must mean no expiry")
	}
}
