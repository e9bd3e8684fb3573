package leaderboard

import (
	"context"
	"testing"

	"puzzle-pals-server/social"
)

func positionsOf(entries []MetricEntry) map[string]*int {
	out := make(map[string]*int, len(entries))
	for _, e := range entries {
		out[e.UID] = e.Position
	}
	return out
}

func TestMonthlyMetrics(t *testing.T) {
	b, mem, tables := newTestBuilder()
	ctx := context.Background()

	seedUser(t, mem, tables, "u1", "Alice", "Archer")
	seedUser(t, mem, tables, "u2", "Bob", "Baker")
	seedEdge(t, mem, tables, "u1", "u2", social.StatusConfirmed)

	// September 2024 spans S00182..S00211.
	seedResult(t, mem, tables, "u1", "S00182", "100", "0")
	seedResult(t, mem, tables, "u1", "S00183", "61", "1")
	seedResult(t, mem, tables, "u1", "S00184", "200", "0")
	seedResult(t, mem, tables, "u2", "S00200", "45", "0")
	// Out of range for the month, must not count.
	seedResult(t, mem, tables, "u1", "S00181", "1", "0")
	seedResult(t, mem, tables, "u2", "S00212", "1", "0")

	view, err := b.Monthly(ctx, "u1", "2024-09")
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if view.DateYearMonth != "2024-09" {
		t.Errorf("got month %q, want 2024-09", view.DateYearMonth)
	}

	value := func(entries []MetricEntry, uid string) int {
		t.Helper()
		for _, e := range entries {
			if e.UID == uid {
				if e.Value == nil {
					t.Fatalf("%s has no value", uid)
				}
				return *e.Value
			}
		}
		t.Fatalf("%s missing from board", uid)
		return 0
	}

	if got := value(view.LeaderboardTotal, "u1"); got != 3 {
		t.Errorf("u1 completions = %d, want 3", got)
	}
	if got := value(view.LeaderboardBestTime, "u1"); got != 61 {
		t.Errorf("u1 best time = %d, want 61", got)
	}
	// mean(100, 61, 200) = 120.33 rounds to 120.
	if got := value(view.LeaderboardAverageTime, "u1"); got != 120 {
		t.Errorf("u1 average time = %d, want 120", got)
	}
	// 2 of 3 hint-free rounds to 67.
	if got := value(view.LeaderboardTotalCompletedNoHints, "u1"); got != 67 {
		t.Errorf("u1 no-hints pct = %d, want 67", got)
	}
	if got := value(view.LeaderboardTotalCompletedNoHints, "u2"); got != 100 {
		t.Errorf("u2 no-hints pct = %d, want 100", got)
	}

	// Totals rank descending, best time ascending.
	if top := view.LeaderboardTotal[0]; top.UID != "u1" || *top.Position != 1 {
		t.Errorf("total board top = %s pos %v, want u1 pos 1", top.UID, top.Position)
	}
	if top := view.LeaderboardBestTime[0]; top.UID != "u2" || *top.Position != 1 {
		t.Errorf("best time board top = %s pos %v, want u2 pos 1", top.UID, top.Position)
	}
}

func TestMonthlyUndefinedTrailsWithoutPosition(t *testing.T) {
	b, mem, tables := newTestBuilder()
	ctx := context.Background()

	seedUser(t, mem, tables, "u1", "Alice", "Archer")
	seedUser(t, mem, tables, "u2", "Bob", "Baker")
	seedEdge(t, mem, tables, "u1", "u2", social.StatusConfirmed)
	seedResult(t, mem, tables, "u2", "S00190", "80", "1")

	view, err := b.Monthly(ctx, "u1", "2024-09")
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	for name, board := range map[string][]MetricEntry{
		"total":    view.LeaderboardTotal,
		"best":     view.LeaderboardBestTime,
		"average":  view.LeaderboardAverageTime,
		"no hints": view.LeaderboardTotalCompletedNoHints,
	} {
		if len(board) != 2 {
			t.Fatalf("%s board has %d entries, want 2", name, len(board))
		}
		if board[0].UID != "u2" {
			t.Errorf("%s board: got top %s, want u2", name, board[0].UID)
		}
		if board[1].UID != "u1" || board[1].Value != nil || board[1].Position != nil {
			t.Errorf("%s board: idle member not trailing unranked: %+v", name, board[1])
		}
	}
	// No-hint share of zero is a real value, not absence.
	if v := view.LeaderboardTotalCompletedNoHints[0].Value; v == nil || *v != 0 {
		t.Errorf("u2 no-hints pct = %v, want 0", v)
	}
}

func TestMonthlyTieSharesPosition(t *testing.T) {
	b, mem, tables := newTestBuilder()
	ctx := context.Background()

	seedUser(t, mem, tables, "u1", "Alice", "Archer")
	seedUser(t, mem, tables, "u2", "Bob", "Baker")
	seedUser(t, mem, tables, "u3", "Carol", "Cole")
	seedEdge(t, mem, tables, "u1", "u2", social.StatusConfirmed)
	seedEdge(t, mem, tables, "u1", "u3", social.StatusConfirmed)

	seedResult(t, mem, tables, "u1", "S00182", "50", "0")
	seedResult(t, mem, tables, "u2", "S00183", "50", "0")
	seedResult(t, mem, tables, "u3", "S00184", "70", "0")

	view, err := b.Monthly(ctx, "u1", "2024-09")
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	pos := positionsOf(view.LeaderboardBestTime)
	for _, uid := range []string{"u1", "u2"} {
		if pos[uid] == nil || *pos[uid] != 1 {
			t.Errorf("%s best-time position = %v, want 1", uid, pos[uid])
		}
	}
	if pos["u3"] == nil || *pos["u3"] != 3 {
		t.Errorf("u3 best-time position = %v, want 3", pos["u3"])
	}
}

func TestMonthlyRejectsBadInput(t *testing.T) {
	b, _, _ := newTestBuilder()
	ctx := context.Background()
	if _, err := b.Monthly(ctx, "", "2024-09"); err == nil {
		t.Error("empty uid accepted")
	}
	if _, err := b.Monthly(ctx, "u1", "September 2024"); err == nil {
		t.Error("malformed month accepted")
	}
}
