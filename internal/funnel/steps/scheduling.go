package steps

import (
	"context"
	"strings"
	"time"

	"github.com/looplab/fsm"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/validation"
	"solar-funnel/internal/funnel/availability"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// Scheduling states.
const (
	StateSelectDate     = "select-date"
	StateSelectTime     = "select-time"
	StateEnterDetails   = "enter-details"
	StateBookingSuccess = "booking-success"
)

// Scheduling events.
const (
	EventSelectDate = "select-date"
	EventSelectTime = "select-time"
	EventSubmit     = "submit"
)

const flowScheduling = "scheduling"

// Booker books the call selected in a session. Implementations re-validate
// the slot and persist the outcome.
type Booker interface {
	BookCall(ctx context.Context, st *store.Store, contact models.Contact) error
}

// Scheduling drives the call-scheduling sub-flow of one session.
type Scheduling struct {
	st       *store.Store
	resolver *availability.Resolver
	booker   Booker
	m        *machine
}

// LoadScheduling restores the sub-flow at its persisted step.
func LoadScheduling(ctx context.Context, st *store.Store, resolver *availability.Resolver, booker Booker, log logger.Logger) (*Scheduling, error) {
	state, found, err := store.CallScheduling.Load(ctx, st)
	if err != nil {
		return nil, err
	}
	step := state.Step
	if !found || !validSchedulingState(step) {
		step = StateSelectDate
	}

	s := &Scheduling{st: st, resolver: resolver, booker: booker}
	s.m = &machine{
		flow: flowScheduling,
		fsm: fsm.NewFSM(step,
			fsm.Events{
				{Name: EventSelectDate, Src: []string{StateSelectDate}, Dst: StateSelectTime},
				{Name: EventSelectTime, Src: []string{StateSelectTime}, Dst: StateEnterDetails},
				{Name: EventSubmit, Src: []string{StateEnterDetails}, Dst: StateBookingSuccess},
				{Name: EventBack, Src: []string{StateSelectTime}, Dst: StateSelectDate},
				{Name: EventBack, Src: []string{StateEnterDetails}, Dst: StateSelectTime},
			},
			fsm.Callbacks{
				"before_" + EventSelectDate: s.guardDate,
				"before_" + EventSelectTime: s.guardTime,
				"before_" + EventSubmit:     s.guardSubmit,
			},
		),
		persist: func(ctx context.Context, state string) error {
			return store.CallScheduling.Save(ctx, st, models.SchedulingState{Step: state})
		},
		logger: log,
	}
	return s, nil
}

func validSchedulingState(s string) bool {
	switch s {
	case StateSelectDate, StateSelectTime, StateEnterDetails, StateBookingSuccess:
		return true
	}
	return false
}

func (s *Scheduling) Current() string {
	return s.m.current()
}

func (s *Scheduling) Events() []string {
	return s.m.events()
}

// SelectDate picks a calendar day ("YYYY-MM-DD") that has at least one offerable slot.
func (s *Scheduling) SelectDate(ctx context.Context, date string) ([]availability.Slot, error) {
	if !s.m.can(EventSelectDate) {
		return nil, errors.NewInvalidTransitionError(EventSelectDate, s.Current())
	}
	day, err := s.resolver.Grid().ParseDay(date)
	if err != nil {
		return nil, errors.NewValidationFailedError("date", err.Error())
	}

	if err := s.selectSlot(ctx, models.CallSlot{Date: day.Format(availability.DateLayout)}, EventSelectDate, day); err != nil {
		return nil, err
	}
	return s.resolver.Slots(ctx, day), nil
}

// selectSlot stores slot before firing event so the persisted step never runs
// ahead of the selection. A rejected transition puts the previous selection
// back.
func (s *Scheduling) selectSlot(ctx context.Context, slot models.CallSlot, event string, args ...interface{}) error {
	prev, hadPrev, err := store.SelectedCallSlot.Load(ctx, s.st)
	if err != nil {
		return err
	}
	if err := store.SelectedCallSlot.Save(ctx, s.st, slot); err != nil {
		return err
	}

	fireErr := s.m.fire(ctx, event, args...)
	if fireErr == nil {
		return nil
	}

	var restoreErr error
	if hadPrev {
		restoreErr = store.SelectedCallSlot.Save(ctx, s.st, prev)
	} else {
		restoreErr = s.st.Delete(ctx, models.KeySelectedCallSlot)
	}
	if restoreErr != nil {
		s.m.logger.Warn("Failed to restore selected call slot", map[string]interface{}{
			"event": event,
			"error": restoreErr.Error(),
		})
	}
	return fireErr
}

func (s *Scheduling) guardDate(ctx context.Context, e *fsm.Event) {
	day, ok := argAt[time.Time](e, 0)
	if !ok || !s.resolver.Selectable(ctx, day) {
		e.Cancel(errors.NewGuardRejectedError(e.Event, "no available times on this date"))
	}
}

// SelectTime picks a "h:mm AM/PM" slot on the selected date. The slot must
// still satisfy the lead time and be unbooked.
func (s *Scheduling) SelectTime(ctx context.Context, label string) (*models.CallSlot, error) {
	if !s.m.can(EventSelectTime) {
		return nil, errors.NewInvalidTransitionError(EventSelectTime, s.Current())
	}
	selected, found, err := store.SelectedCallSlot.Load(ctx, s.st)
	if err != nil {
		return nil, err
	}
	if !found || selected.Date == "" {
		return nil, errors.NewGuardRejectedError(EventSelectTime, "select a date first")
	}

	candidate := models.CallSlot{Date: selected.Date, Time: strings.TrimSpace(label)}
	if err := s.selectSlot(ctx, candidate, EventSelectTime, candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (s *Scheduling) guardTime(ctx context.Context, e *fsm.Event) {
	slot, ok := argAt[models.CallSlot](e, 0)
	if !ok {
		e.Cancel(errors.NewValidationFailedError("time", "time is required"))
		return
	}
	if _, err := s.resolver.Validate(ctx, slot); err != nil {
		e.Cancel(err)
	}
}

// Submit books the selected call with the entered details. Name and email are
// only required when not already known; phone is always required. On failure
// the selected slot and details are kept for a retry.
func (s *Scheduling) Submit(ctx context.Context, details models.Contact) (*models.Contact, error) {
	if !s.m.can(EventSubmit) {
		return nil, errors.NewInvalidTransitionError(EventSubmit, s.Current())
	}

	known, _, err := store.Contact.Load(ctx, s.st)
	if err != nil {
		return nil, err
	}
	contact := overlayContact(known, details)
	if err := validateBookingContact(contact); err != nil {
		return nil, err
	}

	if err := s.m.fire(ctx, EventSubmit, contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (s *Scheduling) guardSubmit(ctx context.Context, e *fsm.Event) {
	contact, _ := argAt[models.Contact](e, 0)
	if err := s.booker.BookCall(ctx, s.st, contact); err != nil {
		e.Cancel(err)
	}
}

// Back returns one step, clearing the target step's selection and everything after it.
func (s *Scheduling) Back(ctx context.Context) error {
	src := s.Current()
	if !s.m.can(EventBack) {
		return errors.NewInvalidTransitionError(EventBack, src)
	}

	switch src {
	case StateSelectTime:
		if err := s.st.Delete(ctx, models.KeySelectedCallSlot, models.KeyBookingOutcome); err != nil {
			return err
		}
	case StateEnterDetails:
		slot, found, err := store.SelectedCallSlot.Load(ctx, s.st)
		if err != nil {
			return err
		}
		if found {
			slot.Time = ""
			if err := store.SelectedCallSlot.Save(ctx, s.st, slot); err != nil {
				return err
			}
		}
		if err := store.BookingOutcome.Clear(ctx, s.st); err != nil {
			return err
		}
	}
	return s.m.fire(ctx, EventBack)
}

func argAt[T any](e *fsm.Event, i int) (T, bool) {
	var zero T
	if len(e.Args) <= i {
		return zero, false
	}
	v, ok := e.Args[i].(T)
	return v, ok
}

// overlayContact applies non-empty entered fields over the known contact.
func overlayContact(known, entered models.Contact) models.Contact {
	out := known
	if v := strings.TrimSpace(entered.FullName); v != "" {
		out.FullName = v
	}
	if v := strings.TrimSpace(entered.Email); v != "" {
		out.Email = v
	}
	if v := strings.TrimSpace(entered.Phone); v != "" {
		out.Phone = v
	}
	return out
}

func validateBookingContact(c models.Contact) error {
	switch {
	case c.FullName == "":
		return errors.NewValidationFailedError("fullName", "name is required")
	case c.Email == "":
		return errors.NewValidationFailedError("email", "email is required")
	case !validation.ValidateEmail(c.Email):
		return errors.NewValidationFailedError("email", "enter a valid email address")
	case c.Phone == "":
		return errors.NewValidationFailedError("phone", "phone is required")
	case !validation.ValidatePhone(c.Phone):
		return errors.NewValidationFailedError("phone", "enter a valid phone number")
	}
	return nil
}
