package results

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

func TestIntervalLogRoundTrip(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if err := s.StartInterval(ctx, "u1", "S00203", "2024-09-22 08:00:00 000"); err != nil {
		t.Fatal(err)
	}
	if err := s.CloseInterval(ctx, "u1", "S00203", "2024-09-22 08:00:00 000", "2024-09-22 08:02:00 000", true); err != nil {
		t.Fatal(err)
	}
	// A second session that never closed.
	if err := s.StartInterval(ctx, "u1", "S00203", "2024-09-22 09:00:00 000"); err != nil {
		t.Fatal(err)
	}

	intervals, err := s.Intervals(ctx, "u1", "S00203")
	if err != nil {
		t.Fatal(err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if !intervals[0].Closed || intervals[0].EndOnDevice == "" {
		t.Errorf("first interval should be closed: %+v", intervals[0])
	}
	if intervals[1].Closed || intervals[1].EndOnDevice != "" {
		t.Errorf("second interval should be open: %+v", intervals[1])
	}
	if got := SumIntervals(intervals); got != 120 {
		t.Errorf("expected 120 seconds, got %d", got)
	}
}

func TestCloseIntervalOverwritesOpenEntry(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	start := "2024-09-22 08:00:00 000"
	s.StartInterval(ctx, "u1", "S00203", start)
	s.CloseInterval(ctx, "u1", "S00203", start, "2024-09-22 08:01:00 000", true)

	intervals, err := s.Intervals(ctx, "u1", "S00203")
	if err != nil {
		t.Fatal(err)
	}
	// Same start key, so close replaced the open record instead of
	// appending.
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
}

func TestSubmitAggregatesAndStores(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	s.StartInterval(ctx, "u1", "S00203", "2024-09-22 08:00:00 000")
	s.CloseInterval(ctx, "u1", "S00203", "2024-09-22 08:00:00 000", "2024-09-22 08:03:12 000", true)

	timeTaken, err := s.Submit(ctx, "u1", "S00203", "YBBBBBBB", 0, "Hear me roar!")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if timeTaken != 192 {
		t.Errorf("expected 192 seconds, got %d", timeTaken)
	}

	result, err := mem.Get(ctx, tables.Results, store.Key{Partition: "u1", Sort: "S00203"})
	if err != nil {
		t.Fatal(err)
	}
	if result["EncodedResult"] != "YBBBBBBB" || result["HintsUsed"] != "0" || result["TimeTakenInSeconds"] != "192" {
		t.Errorf("unexpected result record: %v", result)
	}

	meta, err := mem.Get(ctx, tables.Reference, store.Key{Partition: "PID", Sort: "S00203"})
	if err != nil {
		t.Fatalf("metadata not created: %v", err)
	}
	if meta["Title"] != "Puzzle #203" || meta["Description"] != "Hear me roar!" {
		t.Errorf("unexpected metadata: %v", meta)
	}
}

func TestSubmitKeepsExistingMeta(t *testing.T) {
	s, mem, tables := newTestService()
	ctx := context.Background()

	mem.Put(ctx, tables.Reference, store.Item{
		"PKID": "PID", "SKID": "S00203", "Title": "Puzzle #203", "Description": "original",
	})

	if _, err := s.Submit(ctx, "u2", "S00203", "BB", 1, "different description"); err != nil {
		t.Fatal(err)
	}

	meta, err := mem.Get(ctx, tables.Reference, store.Key{Partition: "PID", Sort: "S00203"})
	if err != nil {
		t.Fatal(err)
	}
	if meta["Description"] != "original" {
		t.Errorf("metadata was overwritten: %v", meta)
	}
}

func TestSubmitWithEmptyLogIsZeroSeconds(t *testing.T) {
	s, _, _ := newTestService()

	timeTaken, err := s.Submit(context.Background(), "u1", "S00203", "YB", 2, "desc")
	if err != nil {
		t.Fatal(err)
	}
	if timeTaken != 0 {
		t.Errorf("expected 0 seconds, got %d", timeTaken)
	}
}

func TestValidation(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()

	if err := s.StartInterval(ctx, "", "S00203", "2024-09-22 08:00:00"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty uid: expected ErrInvalidInput, got %v", err)
	}
	if err := s.StartInterval(ctx, "u1", "203", "2024-09-22 08:00:00"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("bad pid: expected ErrInvalidInput, got %v", err)
	}
	if err := s.StartInterval(ctx, "u1", "S00203", ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty start: expected ErrInvalidInput, got %v", err)
	}
	if _, err := s.Submit(ctx, "u1", "S00203", "YB", -1, ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("negative hints: expected ErrInvalidInput, got %v", err)
	}
}
