package report

import (
	"context"
	"errors"
	"testing"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/config"
	"puzzle-pals-server/store"
)

func TestFileStoresReport(t *testing.T) {
	mem := store.NewMemory()
	tables := config.Defaults().Tables()
	s := NewService(mem, tables)
	ctx := context.Background()

	id, err := s.File(ctx, "u1", "alice@example.com", "daily board is empty")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if id == "" {
		t.Fatal("empty report id")
	}

	item, err := mem.Get(ctx, tables.Reference, store.Key{Partition: "RI", Sort: id})
	if err != nil {
		t.Fatalf("Get report: %v", err)
	}
	if item["UID"] != "u1" || item["Email"] != "alice@example.com" {
		t.Errorf("got %v, want reporter fields preserved", item)
	}
	if item["Message"] != "daily board is empty" {
		t.Errorf("got message %q", item["Message"])
	}
	if item["DateTimeCreated"] == "" {
		t.Error("DateTimeCreated not set")
	}

	// Distinct reports must not collide.
	id2, err := s.File(ctx, "u1", "alice@example.com", "another one")
	if err != nil {
		t.Fatalf("second File: %v", err)
	}
	if id2 == id {
		t.Error("report ids collided")
	}
}

func TestFileValidation(t *testing.T) {
	s := NewService(store.NewMemory(), config.Defaults().Tables())
	ctx := context.Background()
	if _, err := s.File(ctx, "", "a@b.c", "msg"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("missing uid: got %v", err)
	}
	if _, err := s.File(ctx, "u1", "a@b.c", ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("missing message: got %v", err)
	}
}
