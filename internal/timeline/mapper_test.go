package timeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/casemap/internal/models"
)

func testMapper(t *testing.T, start, end int) *Mapper {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RangeStart, cfg.RangeEnd = start, end
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestYearToY_Reversed(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	if got := m.YearToY(1990); got != 180 {
		t.Errorf("YearToY(1990) = %v, want 180", got)
	}
	if got := m.YearToY(1985); got != 680 {
		t.Errorf("YearToY(1985) = %v, want 680", got)
	}
	// Out of range years are not clamped.
	if got := m.YearToY(1980); got != 1180 {
		t.Errorf("YearToY(1980) = %v, want 1180", got)
	}
	if got := m.YearToY(1995); got != -320 {
		t.Errorf("YearToY(1995) = %v, want -320", got)
	}
}

func TestNearestYear_RoundTrip(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	for year := 1985; year <= 1990; year++ {
		got, ok := m.NearestYear(m.YearToY(year))
		if !ok || got != year {
			t.Errorf("NearestYear(YearToY(%d)) = %d, %v", year, got, ok)
		}
	}
}

func TestNearestYear_TieBreaksToLaterYear(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	mid := (m.YearToY(1988) + m.YearToY(1989)) / 2
	got, ok := m.NearestYear(mid)
	if !ok || got != 1989 {
		t.Errorf("NearestYear(%v) = %d, want 1989", mid, got)
	}
}

func TestNearestYear_OutsideRangeSnapsToEdge(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	if got, _ := m.NearestYear(-1000); got != 1990 {
		t.Errorf("far above = %d, want 1990", got)
	}
	if got, _ := m.NearestYear(5000); got != 1985 {
		t.Errorf("far below = %d, want 1985", got)
	}
}

func TestSetRange_Invalid(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	err := m.SetRange(2000, 1999)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("SetRange inverted err = %v", err)
	}
	start, end := m.Range()
	if start != 1985 || end != 1990 {
		t.Errorf("range changed on error: %d..%d", start, end)
	}
}

func TestSetRange_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		ok         bool
	}{
		{"widest span", 1500, 1500 + MaxSpan, true},
		{"span over cap", 1500, 1501 + MaxSpan, false},
		{"huge span", 1, 20_000_000, false},
		{"three-digit start", 999, 1010, false},
		{"five-digit end", 9990, 10000, false},
		{"edges", models.MaxYear - 10, models.MaxYear, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMapper(t, 1985, 1990)
			err := m.SetRange(tt.start, tt.end)
			if tt.ok {
				if err != nil {
					t.Fatalf("SetRange(%d, %d) = %v", tt.start, tt.end, err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("SetRange(%d, %d) err = %v, want ErrInvalidRange", tt.start, tt.end, err)
			}
			if start, end := m.Range(); start != 1985 || end != 1990 {
				t.Errorf("range changed on error: %d..%d", start, end)
			}
		})
	}
}

func TestNew_InvalidRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RangeStart, cfg.RangeEnd = 1991, 1990
	if _, err := New(cfg); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("New with inverted range err = %v", err)
	}
}

func TestSingleYearRange(t *testing.T) {
	m := testMapper(t, 1989, 1989)
	got, ok := m.NearestYear(12345)
	if !ok || got != 1989 {
		t.Errorf("NearestYear = %d, %v", got, ok)
	}
	if h := m.RequiredCanvasHeight(); h != 280 {
		t.Errorf("RequiredCanvasHeight = %v, want 280", h)
	}
}

func TestRequiredCanvasHeight(t *testing.T) {
	m := testMapper(t, 1985, 1990)
	if h := m.RequiredCanvasHeight(); h != 780 {
		t.Errorf("RequiredCanvasHeight = %v, want 780", h)
	}
}

func TestMidpoint(t *testing.T) {
	if got := testMapper(t, 1985, 1990).Midpoint(); got != 1987 {
		t.Errorf("Midpoint = %d, want 1987", got)
	}
	if got := testMapper(t, 1985, 1988).Midpoint(); got != 1986 {
		t.Errorf("Midpoint of even-length range = %d, want 1986", got)
	}
}

func TestYearsAndUsedYears(t *testing.T) {
	m := testMapper(t, 1985, 1988)
	if diff := cmp.Diff([]int{1988, 1987, 1986, 1985}, m.Years()); diff != "" {
		t.Errorf("Years mismatch (-want +got):\n%s", diff)
	}
	used := m.UsedYears([]int{1986, 1999, 1988, 1986, 1970})
	if diff := cmp.Diff([]int{1988, 1986}, used); diff != "" {
		t.Errorf("UsedYears mismatch (-want +got):\n%s", diff)
	}
}
