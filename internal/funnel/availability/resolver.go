package availability

import (
	"context"
	"time"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
	"solar-funnel/internal/models"
)

// BookingSource lists every already-booked call, following pagination.
type BookingSource interface {
	ListBookedCalls(ctx context.Context) ([]models.BookedCall, error)
}

// BookedSet holds booked instants at minute precision.
type BookedSet map[int64]struct{}

func (b BookedSet) Contains(t time.Time) bool {
	_, ok := b[t.Unix()/60]
	return ok
}

func (b BookedSet) add(t time.Time) {
	b[t.Unix()/60] = struct{}{}
}

// Offerable filters candidates to those at least leadTime after now and not booked.
func Offerable(candidates []Slot, booked BookedSet, now time.Time, leadTime time.Duration) []Slot {
	earliest := now.Add(leadTime)
	out := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if s.Instant.Before(earliest) || booked.Contains(s.Instant) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Resolver combines the candidate grid with live bookings.
type Resolver struct {
	grid        *Grid
	source      BookingSource
	leadTime    time.Duration
	horizonDays int
	now         func() time.Time
	logger      logger.Logger
}

func NewResolver(grid *Grid, source BookingSource, leadTime time.Duration, horizonDays int, log logger.Logger) *Resolver {
	return &Resolver{
		grid:        grid,
		source:      source,
		leadTime:    leadTime,
		horizonDays: horizonDays,
		now:         time.Now,
		logger:      log,
	}
}

// WithClock replaces the clock used as "now".
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

func (r *Resolver) Grid() *Grid {
	return r.grid
}

// Booked fetches the booked set. A fetch failure is logged and treated as no bookings.
func (r *Resolver) Booked(ctx context.Context) BookedSet {
	set := BookedSet{}
	calls, err := r.source.ListBookedCalls(ctx)
	if err != nil {
		metrics.AvailabilityFetchFailures.Inc()
		r.logger.Warn("Booked calls unavailable, offering all slots", map[string]interface{}{
			"error": err.Error(),
		})
		return set
	}

	skipped := 0
	for _, c := range calls {
		inst, err := r.grid.ParseBookedCall(c.CallDate, c.CallTime)
		if err != nil {
			skipped++
			continue
		}
		set.add(inst)
	}
	if skipped > 0 {
		r.logger.Debug("Skipped unparseable bookings", map[string]interface{}{"count": skipped})
	}
	return set
}

// Slots returns the offerable slots for day.
func (r *Resolver) Slots(ctx context.Context, day time.Time) []Slot {
	now := r.now()
	return Offerable(r.grid.Candidates(day, now), r.Booked(ctx), now, r.leadTime)
}

// Selectable reports whether day can be picked in the date picker.
func (r *Resolver) Selectable(ctx context.Context, day time.Time) bool {
	return r.selectable(day, r.now(), r.Booked(ctx))
}

func (r *Resolver) selectable(day, now time.Time, booked BookedSet) bool {
	day = r.grid.Day(day)
	if day.Before(r.grid.Day(now)) || day.Weekday() == time.Sunday {
		return false
	}
	return len(Offerable(r.grid.Candidates(day, now), booked, now, r.leadTime)) > 0
}

// FirstAvailable scans horizonDays days starting today for the first
// selectable day. It is a hint only.
func (r *Resolver) FirstAvailable(ctx context.Context) (time.Time, bool) {
	now := r.now()
	booked := r.Booked(ctx)
	today := r.grid.Day(now)
	for i := 0; i < r.horizonDays; i++ {
		day := today.AddDate(0, 0, i)
		if r.selectable(day, now, booked) {
			return day, true
		}
	}
	return time.Time{}, false
}

// Validate re-checks a chosen slot against the clock and fresh bookings.
func (r *Resolver) Validate(ctx context.Context, slot models.CallSlot) (Slot, error) {
	inst, err := r.grid.SlotInstant(slot.Date, slot.Time)
	if err != nil {
		return Slot{}, errors.NewValidationFailedError("selectedCallSlot", err.Error())
	}
	label := slot.Date + " " + slot.Time
	now := r.now()

	if inst.Before(now.Add(r.leadTime)) {
		return Slot{}, errors.NewLeadTimeViolatedError(label)
	}

	day := r.grid.Day(inst)
	if day.Weekday() == time.Sunday || !containsInstant(r.grid.Candidates(day, now), inst) {
		return Slot{}, errors.NewSlotUnavailableError(label)
	}
	if r.Booked(ctx).Contains(inst) {
		return Slot{}, errors.NewSlotUnavailableError(label)
	}
	return Slot{Label: inst.Format(LabelLayout), Instant: inst}, nil
}

func containsInstant(slots []Slot, t time.Time) bool {
	for _, s := range slots {
		if s.Instant.Equal(t) {
			return true
		}
	}
	return false
}
