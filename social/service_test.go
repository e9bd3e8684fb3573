package social

import (
	"context"
	"errors"
	"testing"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/config"
	"puzzle-pals-server/store"
)

func newTestService() (*Service, *store.Memory, store.Tables) {
	mem := store.NewMemory()
	tables := config.Defaults().Tables()
	return NewService(mem, tables), mem, tables
}

func edgeStatus(t *testing.T, mem *store.Memory, tables store.Tables, uid, uidf string) (string, bool) {
	t.Helper()
	item, err := mem.Get(context.Background(), tables.Friends, store.Key{Partition: uid, Sort: uidf})
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", false
	}
	if err != nil {
		t.Fatal(err)
	}
	return item["Status"], true
}

func TestRequestCreatesMirroredPair(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	if err := s.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Request: %v", err)
	}

	if status, ok := edgeStatus(t, mem, tables, "alice", "bob"); !ok || status != StatusWaiting {
		t.Errorf("(alice,bob): expected Waiting, got %q (present=%v)", status, ok)
	}
	if status, ok := edgeStatus(t, mem, tables, "bob", "alice"); !ok || status != StatusPending {
		t.Errorf("(bob,alice): expected Pending, got %q (present=%v)", status, ok)
	}
}

func TestRequestDuplicateConflicts(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if err := s.Request(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := s.Request(ctx, "alice", "bob"); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("second request: expected ErrConflict, got %v", err)
	}
	// The reverse direction is also blocked by the mirror record.
	if err := s.Request(ctx, "bob", "alice"); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("reverse request: expected ErrConflict, got %v", err)
	}
}

func TestAcceptConfirmsBothSides(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	if err := s.Request(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := s.Accept(ctx, "bob", "alice"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		if status, ok := edgeStatus(t, mem, tables, pair[0], pair[1]); !ok || status != StatusConfirmed {
			t.Errorf("(%s,%s): expected Confirmed, got %q (present=%v)", pair[0], pair[1], status, ok)
		}
	}
}

func TestAcceptMissingRequestIsNotFound(t *testing.T) {
	s, _, _ := newTestService()

	err := s.Accept(context.Background(), "bob", "alice")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveDeletesBothOrNeither(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	if err := s.Request(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := edgeStatus(t, mem, tables, "alice", "bob"); ok {
		t.Error("(alice,bob) still present after Remove")
	}
	if _, ok := edgeStatus(t, mem, tables, "bob", "alice"); ok {
		t.Error("(bob,alice) still present after Remove")
	}

	// Partial pair: one side written out-of-band. Remove must refuse and
	// leave the surviving record untouched.
	mem.Put(ctx, tables.Friends, store.Item{
		"UID": "carol", "UIDF": "dave", "Status": StatusWaiting,
	})
	if err := s.Remove(ctx, "carol", "dave"); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("partial pair: expected ErrConflict, got %v", err)
	}
	if status, ok := edgeStatus(t, mem, tables, "carol", "dave"); !ok || status != StatusWaiting {
		t.Errorf("partial pair was modified: %q (present=%v)", status, ok)
	}
}

func TestNoAsymmetricConfirmedState(t *testing.T) {
	// Exercise the full request/accept/remove cycle and verify that at no
	// observed point exactly one side is Confirmed.
	s, mem, tables := newTestService()
	ctx := context.Background()

	check := func(stage string) {
		t.Helper()
		a, aOK := edgeStatus(t, mem, tables, "alice", "bob")
		b, bOK := edgeStatus(t, mem, tables, "bob", "alice")
		aConf := aOK && a == StatusConfirmed
		bConf := bOK && b == StatusConfirmed
		if aConf != bConf {
			t.Errorf("%s: asymmetric confirmed state: (alice,bob)=%q (bob,alice)=%q", stage, a, b)
		}
	}

	check("initial")
	s.Request(ctx, "alice", "bob")
	check("after request")
	s.Accept(ctx, "bob", "alice")
	check("after accept")
	s.Remove(ctx, "alice", "bob")
	check("after remove")
}

func TestValidation(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if err := s.Request(ctx, "", "bob"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty uid: expected ErrInvalidInput, got %v", err)
	}
	if err := s.Request(ctx, "alice", "alice"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("self request: expected ErrInvalidInput, got %v", err)
	}
	if err := s.Accept(ctx, "alice", ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty uidf: expected ErrInvalidInput, got %v", err)
	}
}

func TestScopeAndConfirmed(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	// bob and carol are confirmed friends of alice; dave's request to
	// alice is still pending on alice's side.
	s.Request(ctx, "alice", "bob")
	s.Accept(ctx, "bob", "alice")
	s.Request(ctx, "carol", "alice")
	s.Accept(ctx, "alice", "carol")
	s.Request(ctx, "dave", "alice")

	confirmed, hasPending, err := s.Scope(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 2 {
		t.Errorf("expected 2 confirmed friends, got %v", confirmed)
	}
	if !hasPending {
		t.Error("expected pending flag for dave's request")
	}

	only, err := s.Confirmed(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 2 {
		t.Errorf("expected 2 confirmed friends, got %v", only)
	}

	// bob has no pending requests: his one edge is Confirmed.
	_, hasPending, err = s.Scope(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if hasPending {
		t.Error("bob should have no pending requests")
	}
}

func TestListSortedByStatusThenName(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	for _, u := range []struct{ uid, first, last string }{
		{"bob", "Bob", "Stone"},
		{"carol", "Carol", "Reed"},
		{"dave", "Dave", "Hall"},
		{"erin", "Erin", "Shaw"},
	} {
		mem.Put(ctx, tables.Users, store.Item{
			"UID": u.uid, "UserFirstName": u.first, "UserLastName": u.last,
			"UserLocationCountry": "AU", "UserAvatar": "001",
		})
	}

	// Confirmed: bob. Sent (Waiting): carol. Inbound (Pending): dave, erin.
	s.Request(ctx, "alice", "bob")
	s.Accept(ctx, "bob", "alice")
	s.Request(ctx, "alice", "carol")
	s.Request(ctx, "erin", "alice")
	s.Request(ctx, "dave", "alice")

	views, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(views))
	}

	wantOrder := []string{"dave", "erin", "carol", "bob"} // Pending(1) by name, Waiting(2), Confirmed(3)
	for i, want := range wantOrder {
		if views[i].UIDF != want {
			t.Errorf("row %d: expected %s, got %s", i, want, views[i].UIDF)
		}
	}
	if views[0].StatusCode != 1 || views[3].StatusCode != 3 {
		t.Errorf("unexpected status codes: %+v", views)
	}
	if views[3].UserFirstName != "Bob" || views[3].UserLastName != "Stone" {
		t.Errorf("profile not merged: %+v", views[3])
	}
}
