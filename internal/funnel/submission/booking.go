package submission

import (
	"context"
	stderrors "errors"
	"time"

	"solar-funnel/internal/clients/backend"
	"solar-funnel/internal/common/config"
	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
	"solar-funnel/internal/funnel/availability"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// BookingBackend is the part of the backend client call booking needs.
type BookingBackend interface {
	BookCall(ctx context.Context, req backend.BookCallRequest) error
}

// Bookings books the call selected in a session.
type Bookings struct {
	backend  BookingBackend
	resolver *availability.Resolver
	branding config.BrandingConfig
	now      func() time.Time
	logger   logger.Logger
}

func NewBookings(b BookingBackend, resolver *availability.Resolver, branding config.BrandingConfig, log logger.Logger) *Bookings {
	return &Bookings{backend: b, resolver: resolver, branding: branding, now: time.Now, logger: log}
}

// WithClock replaces the clock used for outcome timestamps.
func (b *Bookings) WithClock(now func() time.Time) *Bookings {
	b.now = now
	return b
}

// BookCall re-validates the selected slot against fresh bookings, posts the
// booking and records the outcome. The slot and contact stay stored on failure.
func (b *Bookings) BookCall(ctx context.Context, st *store.Store, contact models.Contact) error {
	slot, found, err := store.SelectedCallSlot.Load(ctx, st)
	if err != nil {
		return err
	}
	if !found || slot.Date == "" || slot.Time == "" {
		return errors.NewValidationFailedError("selectedCallSlot", "select a date and time first")
	}

	valid, err := b.resolver.Validate(ctx, slot)
	if err != nil {
		return b.fail(ctx, st, err)
	}

	answers, err := loadAnswers(ctx, st)
	if err != nil {
		return err
	}
	req := backend.BookCallRequest{
		Email:    contact.Email,
		Name:     contact.FullName,
		Phone:    contact.Phone,
		CallDate: availability.FormatCallDate(valid.Instant),
		CallTime: valid.Label,
		SolarPlanData: backend.SolarPlanData{
			Proposal:           answers.proposal,
			EnergyIndependence: answers.energy,
			Economics:          answers.economics,
			Bill:               answers.bill,
			HomeProfile:        answers.profile,
			RoofArea:           answers.roofArea,
		},
		PersonaliseAnswers: answers.personalise,
		SelectedLocation:   answers.location,
		Branding:           b.branding,
	}

	if err := b.backend.BookCall(ctx, req); err != nil {
		return b.fail(ctx, st, bookingError(err))
	}

	metrics.Submissions.WithLabelValues("booking", "success").Inc()
	if err := store.Contact.Merge(ctx, st, contact); err != nil {
		return err
	}
	if err := store.BookingOutcome.Save(ctx, st, models.BookingOutcome{Status: models.BookingBooked, UpdatedAt: b.now().UTC()}); err != nil {
		return err
	}
	b.logger.Info("Call booked", map[string]interface{}{
		"session": st.Namespace(),
		"slot":    req.CallDate + " " + req.CallTime,
	})
	return nil
}

// fail records a failed outcome and returns err unchanged.
func (b *Bookings) fail(ctx context.Context, st *store.Store, err error) error {
	stdErr := errors.Normalize(err)
	metrics.Submissions.WithLabelValues("booking", errors.GetErrorCategory(stdErr.Code)).Inc()

	outcome := models.BookingOutcome{Status: models.BookingFailed, LastError: stdErr.Message, UpdatedAt: b.now().UTC()}
	if saveErr := store.BookingOutcome.Save(ctx, st, outcome); saveErr != nil {
		b.logger.Warn("Could not record booking failure", map[string]interface{}{"error": saveErr.Error()})
	}
	return err
}

// bookingError surfaces the backend's message, or a generic fallback.
func bookingError(err error) *errors.StandardError {
	if stdErr, ok := errors.As(err); ok && stdErr.Code == errors.ErrCodeValidationFailed {
		return stdErr
	}
	var apiErr *backend.APIError
	if stderrors.As(err, &apiErr) && apiErr.Status != 0 {
		return errors.NewBookingFailedError(apiErr.Message)
	}
	return errors.NewBookingFailedError("")
}
