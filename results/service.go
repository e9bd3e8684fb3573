// Package results records puzzle solves: the raw interval log written as
// the device starts and stops, and the final result record produced at
// submission from the aggregated log.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/puzzle"
	"puzzle-pals-server/store"
)

// Service owns the result and interval-log tables.
type Service struct {
	store  store.Store
	tables store.Tables
	log    *slog.Logger
}

// NewService wires the results service to a store.
func NewService(st store.Store, tables store.Tables) *Service {
	return &Service{
		store:  st,
		tables: tables,
		log:    slog.Default().With("tag", "results"),
	}
}

// logKey is the interval-log partition key: UID and PID joined, since the
// log table is keyed by the pair.
func logKey(uid, pid string) string {
	return uid + "#" + pid
}

func validateUIDPID(uid, pid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	if _, err := puzzle.ParsePID(pid); err != nil {
		return err
	}
	return nil
}

// StartInterval opens a new solve interval: the device reported that the
// user opened the puzzle at startOnDevice.
func (s *Service) StartInterval(ctx context.Context, uid, pid, startOnDevice string) error {
	if err := validateUIDPID(uid, pid); err != nil {
		return err
	}
	if startOnDevice == "" {
		return fmt.Errorf("%w: start timestamp is required", apperrors.ErrInvalidInput)
	}
	err := s.store.Put(ctx, s.tables.ResultLog, store.Item{
		"UIDPID":                logKey(uid, pid),
		"DateTimeStartOnDevice": startOnDevice,
		"FlagClosed":            "false",
	})
	if err != nil {
		return fmt.Errorf("start interval %s/%s: %w", uid, pid, err)
	}
	return nil
}

// CloseInterval closes the interval opened at startOnDevice with its end
// timestamp. The record is keyed by its start, so this overwrites the open
// entry in place.
func (s *Service) CloseInterval(ctx context.Context, uid, pid, startOnDevice, endOnDevice string, closed bool) error {
	if err := validateUIDPID(uid, pid); err != nil {
		return err
	}
	if startOnDevice == "" || endOnDevice == "" {
		return fmt.Errorf("%w: start and end timestamps are required", apperrors.ErrInvalidInput)
	}
	err := s.store.Put(ctx, s.tables.ResultLog, store.Item{
		"UIDPID":                logKey(uid, pid),
		"DateTimeStartOnDevice": startOnDevice,
		"DateTimeEndOnDevice":   endOnDevice,
		"FlagClosed":            strconv.FormatBool(closed),
	})
	if err != nil {
		return fmt.Errorf("close interval %s/%s: %w", uid, pid, err)
	}
	return nil
}

// Intervals returns the full interval log for a (user, puzzle) pair in
// device start order.
func (s *Service) Intervals(ctx context.Context, uid, pid string) ([]Interval, error) {
	if err := validateUIDPID(uid, pid); err != nil {
		return nil, err
	}
	items, err := s.store.Query(ctx, s.tables.ResultLog, store.Query{
		Partition: logKey(uid, pid),
		Fields:    []string{"DateTimeStartOnDevice", "DateTimeEndOnDevice", "FlagClosed"},
	})
	if err != nil {
		return nil, fmt.Errorf("query interval log %s/%s: %w", uid, pid, err)
	}
	intervals := make([]Interval, 0, len(items))
	for _, item := range items {
		intervals = append(intervals, Interval{
			StartOnDevice: item["DateTimeStartOnDevice"],
			EndOnDevice:   item["DateTimeEndOnDevice"],
			Closed:        item["FlagClosed"] == "true",
		})
	}
	return intervals, nil
}

// Submit stores the final result for a (user, puzzle) pair. The total time
// comes from the interval log; the client submits its last interval before
// calling Submit, so the log is complete by now. Puzzle metadata is created
// lazily on the first submission for that puzzle.
func (s *Service) Submit(ctx context.Context, uid, pid, encodedResult string, hintsUsed int, description string) (timeTaken int, err error) {
	if err := validateUIDPID(uid, pid); err != nil {
		return 0, err
	}
	if hintsUsed < 0 {
		return 0, fmt.Errorf("%w: hints used cannot be negative", apperrors.ErrInvalidInput)
	}

	intervals, err := s.Intervals(ctx, uid, pid)
	if err != nil {
		return 0, err
	}
	timeTaken = SumIntervals(intervals)

	// Metadata is auxiliary: failing to write it must not fail the
	// submission.
	if err := s.ensureMeta(ctx, pid, description); err != nil {
		s.log.WarnContext(ctx, "could not store puzzle metadata", "pid", pid, "error", err)
	}

	err = s.store.Put(ctx, s.tables.Results, store.Item{
		"UID":                uid,
		"PID":                pid,
		"EncodedResult":      encodedResult,
		"HintsUsed":          strconv.Itoa(hintsUsed),
		"TimeTakenInSeconds": strconv.Itoa(timeTaken),
	})
	if err != nil {
		return 0, fmt.Errorf("store result %s/%s: %w", uid, pid, err)
	}
	s.log.InfoContext(ctx, "result submitted", "uid", uid, "pid", pid,
		"time_taken", timeTaken, "hints", hintsUsed)
	return timeTaken, nil
}

// ensureMeta creates the puzzle metadata record if it does not exist yet.
// A concurrent first submission can race here; losing that race is fine.
func (s *Service) ensureMeta(ctx context.Context, pid, description string) error {
	key := store.Key{Partition: "PID", Sort: pid}
	_, err := s.store.Get(ctx, s.tables.Reference, key, "SKID")
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	title, err := puzzle.Title(pid)
	if err != nil {
		return err
	}
	err = s.store.PutIfAbsent(ctx, s.tables.Reference, store.Item{
		"PKID":        "PID",
		"SKID":        pid,
		"Title":       title,
		"Description": description,
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	return err
}
