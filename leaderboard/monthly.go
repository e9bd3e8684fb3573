package leaderboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"puzzle-pals-server/apperrors"
	"puzzle-pals-server/puzzle"
	"puzzle-pals-server/store"
)

// MetricEntry is one row of a monthly sub-leaderboard. Value and Position
// are nil for members with no results in the month: "no data" sorts last
// and is never conflated with a zero value.
type MetricEntry struct {
	UID           string `json:"UID"`
	UserFirstName string `json:"UserFirstName"`
	UserAvatar    string `json:"UserAvatar"`
	Value         *int   `json:"Value"`
	Position      *int   `json:"Position"`
}

// MonthlyView carries the four independently ranked monthly boards.
type MonthlyView struct {
	DateYearMonth                    string        `json:"DateYearMonth"`
	LeaderboardTotal                 []MetricEntry `json:"LeaderboardTotal"`
	LeaderboardBestTime              []MetricEntry `json:"LeaderboardBestTime"`
	LeaderboardAverageTime           []MetricEntry `json:"LeaderboardAverageTime"`
	LeaderboardTotalCompletedNoHints []MetricEntry `json:"LeaderboardTotalCompletedNoHints"`
}

// monthlyMetrics are the per-user aggregates of one month of results; nil
// fields mean the user had no results in range.
type monthlyMetrics struct {
	completions *int
	bestTime    *int
	averageTime *int
	noHintsPct  *int
}

// Monthly builds the four monthly boards for uid and their confirmed
// friends. The friend set and every member's result range-query are fatal
// on failure.
func (b *Builder) Monthly(ctx context.Context, uid, yearMonth string) (*MonthlyView, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", apperrors.ErrInvalidInput)
	}
	pidStart, pidEnd, err := puzzle.Resolve(yearMonth)
	if err != nil {
		return nil, err
	}

	friends, err := b.social.Confirmed(ctx, uid)
	if err != nil {
		return nil, err
	}
	uids := append([]string{uid}, friends...)

	// Profiles and the per-member range queries are all independent.
	var (
		wg          sync.WaitGroup
		profiles    []store.Item
		profilesErr error

		perUser = make([]monthlyMetrics, len(uids))
		// Errors land in per-slot entries; no slot writes another's.
		queryErrs = make([]error, len(uids))
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		keys := make([]store.Key, len(uids))
		for i, u := range uids {
			keys[i] = store.Key{Partition: u}
		}
		profiles, profilesErr = b.store.BatchGet(ctx, b.tables.Users, keys,
			"UID", "UserFirstName", "UserAvatar")
	}()
	for i, u := range uids {
		wg.Add(1)
		go func(slot int, member string) {
			defer wg.Done()
			items, err := b.store.Query(ctx, b.tables.Results, store.Query{
				Partition: member,
				Sort:      store.SortBetween,
				SortValue: puzzle.FormatPID(pidStart),
				SortUpper: puzzle.FormatPID(pidEnd),
				Fields:    []string{"PID", "TimeTakenInSeconds", "HintsUsed"},
			})
			if err != nil {
				queryErrs[slot] = err
				return
			}
			perUser[slot] = reduceMonth(items)
		}(i, u)
	}
	wg.Wait()

	if profilesErr != nil {
		return nil, fmt.Errorf("fetch profiles: %w", profilesErr)
	}
	for i, err := range queryErrs {
		if err != nil {
			return nil, fmt.Errorf("fetch results of %s: %w", uids[i], err)
		}
	}

	profileByUID := make(map[string]store.Item, len(profiles))
	for _, p := range profiles {
		profileByUID[p["UID"]] = p
	}
	row := func(i int) MetricEntry {
		p := profileByUID[uids[i]]
		return MetricEntry{
			UID:           uids[i],
			UserFirstName: p["UserFirstName"],
			UserAvatar:    p["UserAvatar"],
		}
	}

	board := func(value func(m monthlyMetrics) *int, ascending bool) []MetricEntry {
		entries := make([]MetricEntry, len(uids))
		for i := range uids {
			entries[i] = row(i)
			entries[i].Value = value(perUser[i])
		}
		rankBoard(entries, ascending)
		return entries
	}

	return &MonthlyView{
		DateYearMonth:                    yearMonth,
		LeaderboardTotal:                 board(func(m monthlyMetrics) *int { return m.completions }, false),
		LeaderboardBestTime:              board(func(m monthlyMetrics) *int { return m.bestTime }, true),
		LeaderboardAverageTime:           board(func(m monthlyMetrics) *int { return m.averageTime }, true),
		LeaderboardTotalCompletedNoHints: board(func(m monthlyMetrics) *int { return m.noHintsPct }, false),
	}, nil
}

// reduceMonth derives the four metrics from one member's in-range results.
// Rows with unparseable numbers are skipped like disqualified intervals.
func reduceMonth(items []store.Item) monthlyMetrics {
	var times []int
	noHints := 0
	for _, item := range items {
		timeTaken, terr := strconv.Atoi(item["TimeTakenInSeconds"])
		hints, herr := strconv.Atoi(item["HintsUsed"])
		if terr != nil || herr != nil {
			continue
		}
		times = append(times, timeTaken)
		if hints == 0 {
			noHints++
		}
	}
	if len(times) == 0 {
		return monthlyMetrics{}
	}

	count := len(times)
	best := times[0]
	sum := 0
	for _, t := range times {
		if t < best {
			best = t
		}
		sum += t
	}
	avg := int(math.Round(float64(sum) / float64(count)))
	pct := int(math.Round(100 * float64(noHints) / float64(count)))

	return monthlyMetrics{
		completions: &count,
		bestTime:    &best,
		averageTime: &avg,
		noHintsPct:  &pct,
	}
}

// rankBoard sorts one board in place and assigns tie-aware positions.
// Members without a value always trail and receive no position.
func rankBoard(entries []MetricEntry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Value == nil && b.Value == nil:
			return a.UserFirstName < b.UserFirstName
		case a.Value == nil:
			return false
		case b.Value == nil:
			return true
		case *a.Value != *b.Value:
			if ascending {
				return *a.Value < *b.Value
			}
			return *a.Value > *b.Value
		default:
			return a.UserFirstName < b.UserFirstName
		}
	})

	positions := assignPositions(len(entries),
		func(i int) bool { return entries[i].Value != nil },
		func(i, j int) bool { return *entries[i].Value == *entries[j].Value })
	for i := range entries {
		if positions[i] > 0 {
			p := positions[i]
			entries[i].Position = &p
		}
	}
}
