package domain

import "testing"

func TestSnapshotTotals(t *testing.T) {
	s := Snapshot{Items: []Item{
		{ProductID: "p1", UnitPrice: 1500, Quantity: 2},
		{ProductID: "p2", UnitPrice: 300, Quantity: 5},
	}}

	if got := s.TotalItems(); got != 7 {
		t.Fatalf("TotalItems = %d, want 7", got)
	}
	if got := s.TotalPrice(); got != 4500 {
		t.Fatalf("TotalPrice = %d, want 4500", got)
	}
}

func TestSnapshotFind(t *testing.T) {
	s := Snapshot{Items: []Item{{ProductID: "p1"}, {ProductID: "p2"}}}

	if got := s.Find("p2"); got != 1 {
		t.Fatalf("Find(p2) = %d, want 1", got)
	}
	if got := s.Find("missing"); got != -1 {
		t.Fatalf("Find(missing) = %d, want -1", got)
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := Snapshot{Items: []Item{{ProductID: "p1", Quantity: 1}}}
	c := s.Clone()
	c.Items[0].Quantity = 9

	if s.Items[0].Quantity != 1 {
		t.Fatalf("clone mutated the original: %+v", s.Items[0])
	}
}

func TestIdentity(t *testing.T) {
	if Anonymous().IsAuthenticated() {
		t.Fatal("anonymous identity reports authenticated")
	}
	if !Authenticated("u1").IsAuthenticated() {
		t.Fatal("authenticated identity reports anonymous")
	}
}
