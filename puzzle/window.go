// Package puzzle maps calendar dates to puzzle ids. Ids grow by exactly one
// per day, anchored to a single known (date, id) pair, so any month resolves
// to an inclusive id range without touching the store.
package puzzle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"puzzle-pals-server/apperrors"
)

// Anchor pair: puzzle 203 was published on 2024-09-22.
const (
	anchorPID  = 203
	anchorDate = "2024-09-22"
)

const monthLayout = "2006-01"

// Resolve returns the inclusive puzzle-id range covering the given month
// ("YYYY-MM"): the ids of the first and last calendar day. Fails only on a
// malformed month string.
func Resolve(yearMonth string) (pidStart, pidEnd int, err error) {
	first, err := time.Parse(monthLayout, yearMonth)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q is not YYYY-MM", apperrors.ErrInvalidInput, yearMonth)
	}
	last := first.AddDate(0, 1, -1)

	anchor, err := time.Parse("2006-01-02", anchorDate)
	if err != nil {
		return 0, 0, err
	}

	pidStart = anchorPID + daysBetween(anchor, first)
	pidEnd = anchorPID + daysBetween(anchor, last)
	return pidStart, pidEnd, nil
}

// daysBetween returns the number of whole calendar days from a to b
// (negative when b is before a). Both times are at UTC midnight here, so
// hour division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// FormatPID renders a numeric puzzle id in its stored form: "S" followed by
// the id zero-padded to five digits, e.g. 203 -> "S00203".
func FormatPID(n int) string {
	return fmt.Sprintf("S%05d", n)
}

// ParsePID extracts the numeric id from its stored form. Fails on anything
// that is not "S" + digits.
func ParsePID(pid string) (int, error) {
	rest, ok := strings.CutPrefix(pid, "S")
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: puzzle id %q", apperrors.ErrInvalidInput, pid)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: puzzle id %q", apperrors.ErrInvalidInput, pid)
	}
	return n, nil
}

// Title derives the display title for a puzzle from its stored id,
// e.g. "S00203" -> "Puzzle #203".
func Title(pid string) (string, error) {
	n, err := ParsePID(pid)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Puzzle #%d", n), nil
}
