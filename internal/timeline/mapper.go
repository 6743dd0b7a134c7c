// Package timeline maps calendar years to vertical canvas rows on a reversed
// timeline: the latest year renders at the top, the earliest at the bottom.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/starford/casemap/internal/models"
)

// ErrInvalidRange is returned when the range is inverted, spans more than
// MaxSpan years, or reaches outside the years a card can carry.
var ErrInvalidRange = errors.New("timeline: invalid range")

// MaxSpan is the widest range, in years, the timeline accepts.
const MaxSpan = 500

// Defaults used by the editor when no configuration overrides them.
const (
	DefaultStartY       = 180
	DefaultSpacing      = 100
	DefaultBottomMargin = 100
	DefaultRangeStart   = 1985
	DefaultRangeEnd     = 1990
)

// Config describes the fixed geometry and the initial visible range.
type Config struct {
	StartY       float64
	Spacing      float64
	BottomMargin float64
	RangeStart   int
	RangeEnd     int
}

// DefaultConfig returns the geometry of the stock editor.
func DefaultConfig() Config {
	return Config{
		StartY:       DefaultStartY,
		Spacing:      DefaultSpacing,
		BottomMargin: DefaultBottomMargin,
		RangeStart:   DefaultRangeStart,
		RangeEnd:     DefaultRangeEnd,
	}
}

// Mapper converts between years and pixel rows.
type Mapper struct {
	startY       float64
	spacing      float64
	bottomMargin float64
	rangeStart   int
	rangeEnd     int
}

// New creates a Mapper, rejecting an inverted range.
func New(cfg Config) (*Mapper, error) {
	m := &Mapper{
		startY:       cfg.StartY,
		spacing:      cfg.Spacing,
		bottomMargin: cfg.BottomMargin,
	}
	if err := m.SetRange(cfg.RangeStart, cfg.RangeEnd); err != nil {
		return nil, err
	}
	return m, nil
}

// SetRange replaces the visible year span. The mapper is unchanged on error.
func (m *Mapper) SetRange(start, end int) error {
	if start > end {
		return fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	}
	if end-start > MaxSpan {
		return fmt.Errorf("%w: %d..%d spans more than %d years", ErrInvalidRange, start, end, MaxSpan)
	}
	if !models.ValidYear(start) || !models.ValidYear(end) {
		return fmt.Errorf("%w: %d..%d outside %d..%d", ErrInvalidRange, start, end, models.MinYear, models.MaxYear)
	}
	m.rangeStart, m.rangeEnd = start, end
	return nil
}

// Range returns the visible year span.
func (m *Mapper) Range() (start, end int) {
	return m.rangeStart, m.rangeEnd
}

// YearToY returns the row of year. Years outside the range map to rows
// outside the drawn timeline; the result is never clamped.
func (m *Mapper) YearToY(year int) float64 {
	return m.startY + float64(m.rangeEnd-year)*m.spacing
}

// NearestYear returns the in-range year whose row is closest to pixelY.
// Candidates are scanned from the latest year down and only a strictly
// smaller distance replaces the current best, so ties resolve to the later year.
func (m *Mapper) NearestYear(pixelY float64) (int, bool) {
	best, found := 0, false
	bestDist := math.Inf(1)
	for year := m.rangeEnd; year >= m.rangeStart; year-- {
		d := math.Abs(pixelY - m.YearToY(year))
		if d < bestDist {
			best, bestDist, found = year, d, true
		}
	}
	return best, found
}

// RequiredCanvasHeight is the canvas height needed to draw every year row.
func (m *Mapper) RequiredCanvasHeight() float64 {
	return m.startY + float64(m.rangeEnd-m.rangeStart)*m.spacing + m.bottomMargin
}

// Midpoint is the fallback year for missing or malformed year input.
func (m *Mapper) Midpoint() int {
	return int(math.Floor(float64(m.rangeStart+m.rangeEnd) / 2))
}

// Contains reports whether year lies within the visible range.
func (m *Mapper) Contains(year int) bool {
	return year >= m.rangeStart && year <= m.rangeEnd
}

// Years lists the visible years from the top row down.
func (m *Mapper) Years() []int {
	out := make([]int, 0, m.rangeEnd-m.rangeStart+1)
	for year := m.rangeEnd; year >= m.rangeStart; year-- {
		out = append(out, year)
	}
	return out
}

// UsedYears returns the distinct in-range members of years, latest first.
func (m *Mapper) UsedYears(years []int) []int {
	var out []int
	for _, y := range years {
		if m.Contains(y) && !slices.Contains(out, y) {
			out = append(out, y)
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out
}
