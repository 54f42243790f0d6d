package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/funnel/availability"
	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/steps"
	"solar-funnel/internal/models"
)

func (s *Server) loadScheduling(ctx context.Context, sess *session.Session) (*steps.Scheduling, error) {
	return steps.LoadScheduling(ctx, sess.Store(), s.deps.Resolver, s.deps.Bookings, s.logger)
}

func (s *Server) getScheduling(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.loadScheduling(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := loadView(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepView{Step: sc.Current(), Events: sc.Events(), Answers: view})
}

type selectDateRequest struct {
	Date string `json:"date"`
}

type selectTimeRequest struct {
	Time string `json:"time"`
}

func (s *Server) fireScheduling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.loadScheduling(ctx, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var result interface{}
	switch event := mux.Vars(r)["event"]; event {
	case steps.EventSelectDate:
		var in selectDateRequest
		if err = decode(r, &in); err == nil {
			result, err = sc.SelectDate(ctx, in.Date)
		}
	case steps.EventSelectTime:
		var in selectTimeRequest
		if err = decode(r, &in); err == nil {
			result, err = sc.SelectTime(ctx, in.Time)
		}
	case steps.EventSubmit:
		var in models.Contact
		if err = decode(r, &in); err == nil {
			result, err = sc.Submit(ctx, in)
		}
		if err == nil {
			err = s.confirmBooking(ctx, sess)
		}
	case steps.EventBack:
		err = sc.Back(ctx)
	default:
		err = errors.NewInvalidTransitionError(event, sc.Current())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepView{Step: sc.Current(), Events: sc.Events(), Result: result})
}

// confirmBooking moves the main funnel on once a call is booked. Sessions
// booking from a direct visit have no funnel at call-scheduling and are left alone.
func (s *Server) confirmBooking(ctx context.Context, sess *session.Session) error {
	f, err := s.loadFunnel(ctx, sess)
	if err != nil {
		return err
	}
	if f.Current() != steps.StateCallScheduling {
		return nil
	}
	return f.ConfirmBooking(ctx)
}

type slotsView struct {
	Date       string              `json:"date"`
	Selectable bool                `json:"selectable"`
	Slots      []availability.Slot `json:"slots"`
}

func (s *Server) slots(w http.ResponseWriter, r *http.Request) {
	resolver := s.deps.Resolver
	date := mux.Vars(r)["date"]
	day, err := resolver.Grid().ParseDay(date)
	if err != nil {
		s.writeError(w, r, errors.NewValidationFailedError("date", err.Error()))
		return
	}

	slots := resolver.Slots(r.Context(), day)
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, slotsView{
		Date:       date,
		Selectable: resolver.Selectable(r.Context(), day),
		Slots:      slots,
	})
}

func (s *Server) firstAvailable(w http.ResponseWriter, r *http.Request) {
	day, found := s.deps.Resolver.FirstAvailable(r.Context())
	body := map[string]interface{}{"found": found}
	if found {
		body["date"] = day.Format(availability.DateLayout)
	}
	writeJSON(w, http.StatusOK, body)
}
