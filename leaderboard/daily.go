// Package leaderboard builds the daily and monthly friend leaderboards.
// Both views share the same shape of work: resolve the friend scope, fan
// out independent store reads, merge into typed rows, sort, and assign
// tie-aware positions. The store round-trips dominate latency, so the
// independent reads are issued concurrently and joined before merging.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/puzzle"
	"puzzle-pals-server/social"
	"puzzle-pals-server/store"
)

// DailyEntry is one row of the daily leaderboard. The value fields are nil
// for scope members who have not completed the puzzle; a completed solve
// with zero seconds or zero hints is meaningful, so absence is never
// encoded as zero.
type DailyEntry struct {
	UID                string `json:"UID"`
	UserFirstName      string `json:"UserFirstName"`
	UserLastName       string `json:"UserLastName"`
	UserAvatar         string `json:"UserAvatar"`
	Completed          bool   `json:"Completed"`
	TimeTakenInSeconds *int   `json:"TimeTakenInSeconds"`
	HintsUsed          *int   `json:"HintsUsed"`
	EncodedResult      string `json:"EncodedResult"`
	Position           *int   `json:"Position"`
}

// DailyView is the daily leaderboard response. Title and Description stay
// nil when the puzzle metadata could not be fetched.
type DailyView struct {
	PID                string       `json:"PID"`
	Title              *string      `json:"Title"`
	Description        *string      `json:"Description"`
	Leaderboard        []DailyEntry `json:"Leaderboard"`
	FriendRequestsFlag bool         `json:"FriendRequestsFlag"`
}

// Builder computes leaderboards against the store, resolving friend scopes
// through the graph manager.
type Builder struct {
	store  store.Store
	tables store.Tables
	social *social.Service
	log    *slog.Logger
}

// NewBuilder wires a leaderboard builder.
func NewBuilder(st store.Store, tables store.Tables, graph *social.Service) *Builder {
	return &Builder{
		store:  st,
		tables: tables,
		social: graph,
		log:    slog.Default().With("tag", "leaderboard"),
	}
}

// Daily builds the leaderboard for one puzzle across uid and their
// confirmed friends. Scope resolution and the profile/result fetches are
// fatal on failure; the puzzle metadata fetch degrades to nil fields.
func (b *Builder) Daily(ctx context.Context, uid, pid string) (*DailyView, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	if _, err := puzzle.ParsePID(pid); err != nil {
		return nil, err
	}

	friends, hasPending, err := b.social.Scope(ctx, uid)
	if err != nil {
		return nil, err
	}
	uids := append([]string{uid}, friends...)

	// The three reads are independent; issue them together.
	var (
		wg       sync.WaitGroup
		profiles []store.Item
		results  []store.Item
		meta     store.Item

		profilesErr, resultsErr, metaErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		keys := make([]store.Key, len(uids))
		for i, u := range uids {
			keys[i] = store.Key{Partition: u}
		}
		profiles, profilesErr = b.store.BatchGet(ctx, b.tables.Users, keys,
			"UID", "UserFirstName", "UserLastName", "UserAvatar")
	}()
	go func() {
		defer wg.Done()
		keys := make([]store.Key, len(uids))
		for i, u := range uids {
			keys[i] = store.Key{Partition: u, Sort: pid}
		}
		results, resultsErr = b.store.BatchGet(ctx, b.tables.Results, keys,
			"UID", "EncodedResult", "HintsUsed", "TimeTakenInSeconds")
	}()
	go func() {
		defer wg.Done()
		meta, metaErr = b.store.Get(ctx, b.tables.Reference,
			store.Key{Partition: "PID", Sort: pid}, "Title", "Description")
	}()
	wg.Wait()

	if profilesErr != nil {
		return nil, fmt.Errorf("fetch profiles: %w", profilesErr)
	}
	if resultsErr != nil {
		return nil, fmt.Errorf("fetch results: %w", resultsErr)
	}

	view := &DailyView{
		PID:                pid,
		Leaderboard:        mergeDaily(profiles, results),
		FriendRequestsFlag: hasPending,
	}
	if metaErr != nil {
		if !errors.Is(metaErr, apperrors.ErrNotFound) {
			b.log.WarnContext(ctx, "puzzle metadata fetch failed", "pid", pid, "error", metaErr)
		}
	} else {
		title := meta["Title"]
		description := meta["Description"]
		view.Title = &title
		view.Description = &description
	}
	return view, nil
}

// mergeDaily joins profiles with results, sorts, and assigns positions.
func mergeDaily(profiles, results []store.Item) []DailyEntry {
	resultByUID := make(map[string]store.Item, len(results))
	for _, r := range results {
		resultByUID[r["UID"]] = r
	}

	entries := make([]DailyEntry, 0, len(profiles))
	for _, p := range profiles {
		e := DailyEntry{
			UID:           p["UID"],
			UserFirstName: p["UserFirstName"],
			UserLastName:  p["UserLastName"],
			UserAvatar:    p["UserAvatar"],
		}
		if r, ok := resultByUID[e.UID]; ok {
			timeTaken, terr := strconv.Atoi(r["TimeTakenInSeconds"])
			hints, herr := strconv.Atoi(r["HintsUsed"])
			if terr == nil && herr == nil {
				e.Completed = true
				e.TimeTakenInSeconds = &timeTaken
				e.HintsUsed = &hints
				e.EncodedResult = r["EncodedResult"]
			}
		}
		entries = append(entries, e)
	}

	// Completed entries first, by fewest hints, then least time, then
	// first name as the deterministic final tiebreak. Incomplete entries
	// always trail, ordered by name.
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Completed != b.Completed {
			return a.Completed
		}
		if a.Completed {
			if *a.HintsUsed != *b.HintsUsed {
				return *a.HintsUsed < *b.HintsUsed
			}
			if *a.TimeTakenInSeconds != *b.TimeTakenInSeconds {
				return *a.TimeTakenInSeconds < *b.TimeTakenInSeconds
			}
		}
		return a.UserFirstName < b.UserFirstName
	})

	positions := assignPositions(len(entries),
		func(i int) bool { return entries[i].Completed },
		func(i, j int) bool {
			return *entries[i].HintsUsed == *entries[j].HintsUsed &&
				*entries[i].TimeTakenInSeconds == *entries[j].TimeTakenInSeconds
		})
	for i := range entries {
		if positions[i] > 0 {
			p := positions[i]
			entries[i].Position = &p
		}
	}
	return entries
}
