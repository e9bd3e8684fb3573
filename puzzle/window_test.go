package puzzle

import (
	"errors"
	"testing"

	"puzzle-pals-server/apperrors"
)

func TestResolveAnchorMonth(t *testing.T) {
	// September 2024 contains the anchor day (22nd -> 203), so the window
	// is 203-21 .. 203+8.
	start, end, err := Resolve("2024-09")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if start != 182 {
		t.Errorf("expected start=182, got %d", start)
	}
	if end != 211 {
		t.Errorf("expected end=211, got %d", end)
	}
}

func TestResolveMonthLengths(t *testing.T) {
	cases := []struct {
		month string
		days  int
	}{
		{"2024-02", 29}, // leap year
		{"2025-02", 28},
		{"2024-10", 31},
		{"2024-11", 30},
	}
	for _, c := range cases {
		start, end, err := Resolve(c.month)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", c.month, err)
		}
		if got := end - start + 1; got != c.days {
			t.Errorf("%s: expected %d days, got %d (start=%d end=%d)", c.month, c.days, got, start, end)
		}
	}
}

func TestResolveContiguousMonths(t *testing.T) {
	// The first id of a month must follow the last id of the previous one.
	_, endSep, err := Resolve("2024-09")
	if err != nil {
		t.Fatal(err)
	}
	startOct, _, err := Resolve("2024-10")
	if err != nil {
		t.Fatal(err)
	}
	if startOct != endSep+1 {
		t.Errorf("expected October to start at %d, got %d", endSep+1, startOct)
	}
}

func TestResolveMalformed(t *testing.T) {
	for _, month := range []string{"", "2024", "2024-13", "202409", "sept-2024"} {
		if _, _, err := Resolve(month); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Resolve(%q): expected ErrInvalidInput, got %v", month, err)
		}
	}
}

func TestFormatParsePID(t *testing.T) {
	if got := FormatPID(203); got != "S00203" {
		t.Errorf("FormatPID(203) = %q", got)
	}
	if got := FormatPID(7); got != "S00007" {
		t.Errorf("FormatPID(7) = %q", got)
	}
	n, err := ParsePID("S00203")
	if err != nil || n != 203 {
		t.Errorf("ParsePID(S00203) = %d, %v", n, err)
	}
	for _, bad := range []string{"", "S", "203", "Sxyz"} {
		if _, err := ParsePID(bad); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("ParsePID(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestTitle(t *testing.T) {
	title, err := Title("S00203")
	if err != nil {
		t.Fatal(err)
	}
	if title != "Puzzle #203" {
		t.Errorf("Title = %q", title)
	}
}
