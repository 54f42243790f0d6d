// Package availability decides which call slots can be offered: it builds the
// candidate grid from the configured daily windows and removes slots that are
// too soon or already booked.
package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"solar-funnel/internal/common/config"
)

// Layouts shared with the booking backend and the persisted CallSlot.
const (
	LabelLayout    = "3:04 PM"
	DateLayout     = "2006-01-02"
	CallDateLayout = "January 2, 2006"
)

const noon = 12 * 60

// Slot is a generated candidate, never persisted on its own.
type Slot struct {
	Label   string    `json:"label"`
	Instant time.Time `json:"instant"`
}

// Window is a daily range in minutes after midnight, inclusive on both ends.
type Window struct {
	Start int
	End   int
}

// Grid generates candidate slots for a calendar day.
type Grid struct {
	loc     *time.Location
	windows []Window
	step    int
}

// NewGrid builds a grid from the scheduling config.
func NewGrid(cfg config.SchedulingConfig) (*Grid, error) {
	if cfg.SlotStepMinutes <= 0 {
		return nil, fmt.Errorf("slot step must be positive, got %d", cfg.SlotStepMinutes)
	}
	windows := make([]Window, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		start, err := config.ParseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := config.ParseClock(w.End)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("window %s-%s ends before it starts", w.Start, w.End)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	return &Grid{loc: cfg.Location(), windows: windows, step: cfg.SlotStepMinutes}, nil
}

func (g *Grid) Location() *time.Location {
	return g.loc
}

// Day truncates t to midnight of its calendar day in the grid's zone.
func (g *Grid) Day(t time.Time) time.Time {
	t = t.In(g.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc)
}

// Candidates returns the ordered slots for day. When day is tomorrow relative
// to now only windows starting in the afternoon are used.
func (g *Grid) Candidates(day, now time.Time) []Slot {
	day = g.Day(day)
	afternoonOnly := day.Equal(g.Day(now).AddDate(0, 0, 1))

	var out []Slot
	for _, w := range g.windows {
		if afternoonOnly && w.Start < noon {
			continue
		}
		for m := w.Start; m <= w.End; m += g.step {
			inst := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, g.loc)
			out = append(out, Slot{Label: inst.Format(LabelLayout), Instant: inst})
		}
	}
	return out
}

// ParseDay parses a "YYYY-MM-DD" calendar date in the grid's zone.
func (g *Grid) ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), g.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// SlotInstant resolves a date and "h:mm AM/PM" label to an instant.
func (g *Grid) SlotInstant(date, label string) (time.Time, error) {
	day, err := g.ParseDay(date)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := time.Parse(LabelLayout, normalizeClock(label))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want h:mm AM/PM", label)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, g.loc), nil
}

// ParseBookedCall turns a backend "Month D, YYYY" + "h:mm AM/PM" pair into an instant.
func (g *Grid) ParseBookedCall(date, clock string) (time.Time, error) {
	value := strings.Join(strings.Fields(date), " ") + " " + normalizeClock(clock)
	for _, layout := range []string{CallDateLayout + " " + LabelLayout, "Jan 2, 2006 " + LabelLayout} {
		if t, err := time.ParseInLocation(layout, value, g.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable booking %q %q", date, clock)
}

// FormatCallDate renders a day the way the booking backend expects it.
func FormatCallDate(day time.Time) string {
	return day.Format(CallDateLayout)
}

func normalizeClock(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
