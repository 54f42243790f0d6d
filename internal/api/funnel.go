package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/steps"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// stepView is returned by every funnel and scheduling request.
type stepView struct {
	Step    string      `json:"step"`
	Events  []string    `json:"events"`
	Result  interface{} `json:"result,omitempty"`
	Answers *answers    `json:"answers,omitempty"`
}

type answers struct {
	Location       *models.Location       `json:"selectedLocation,omitempty"`
	Bill           *models.BillAnswers    `json:"electricityBill,omitempty"`
	HomeProfile    *models.HomeProfile    `json:"homeProfile,omitempty"`
	Proposal       *models.Proposal       `json:"solarProposal,omitempty"`
	Energy         *models.DerivedEnergy  `json:"energyIndependence,omitempty"`
	Economics      *models.Economics      `json:"economics,omitempty"`
	Contact        *models.Contact        `json:"contactInfo,omitempty"`
	SelectedSlot   *models.CallSlot       `json:"selectedCallSlot,omitempty"`
	BookingOutcome *models.BookingOutcome `json:"bookingOutcome,omitempty"`
	LeadStatus     models.LeadStatus      `json:"leadStatus"`
}

func loadView(ctx context.Context, sess *session.Session) (*answers, error) {
	st := sess.Store()
	var (
		a   answers
		err error
	)
	if a.Location, err = optional(ctx, st, store.Location); err != nil {
		return nil, err
	}
	if a.Bill, err = optional(ctx, st, store.Bill); err != nil {
		return nil, err
	}
	if a.HomeProfile, err = optional(ctx, st, store.HomeProfile); err != nil {
		return nil, err
	}
	if a.Proposal, err = optional(ctx, st, store.Proposal); err != nil {
		return nil, err
	}
	if a.Energy, err = optional(ctx, st, store.EnergyIndependence); err != nil {
		return nil, err
	}
	if a.Economics, err = optional(ctx, st, store.Economics); err != nil {
		return nil, err
	}
	if a.Contact, err = optional(ctx, st, store.Contact); err != nil {
		return nil, err
	}
	if a.SelectedSlot, err = optional(ctx, st, store.SelectedCallSlot); err != nil {
		return nil, err
	}
	if a.BookingOutcome, err = optional(ctx, st, store.BookingOutcome); err != nil {
		return nil, err
	}
	if a.LeadStatus, err = sess.LeadStatus(ctx, defaultFunnel); err != nil {
		return nil, err
	}
	return &a, nil
}

func optional[T any](ctx context.Context, st *store.Store, key store.Typed[T]) (*T, error) {
	v, found, err := key.Load(ctx, st)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

func (s *Server) loadFunnel(ctx context.Context, sess *session.Session) (*steps.Funnel, error) {
	return steps.LoadFunnel(ctx, sess.Store(), s.deps.Proposals, s.deps.Calculator, s.logger)
}

func (s *Server) getFunnel(w http.ResponseWriter, r *http.Request) {
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.loadFunnel(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := loadView(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepView{Step: f.Current(), Events: f.Events(), Answers: view})
}

type personalizationRequest struct {
	Answers   map[string]string `json:"answers"`
	Installer string            `json:"installer"`
}

func (s *Server) fireFunnel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.openSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.loadFunnel(ctx, sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var result interface{}
	switch event := mux.Vars(r)["event"]; event {
	case steps.EventConfirmAddress:
		var loc models.Location
		if err = decode(r, &loc); err == nil {
			err = f.ConfirmAddress(ctx, loc)
		}
	case steps.EventSubmitBill:
		var in steps.BillInput
		if err = decode(r, &in); err == nil {
			err = f.SubmitBill(ctx, in)
		}
	case "load-proposal":
		result, err = f.LoadProposal(ctx)
	case steps.EventCompletePersonalization:
		var in personalizationRequest
		if err = decode(r, &in); err == nil {
			err = f.CompletePersonalization(ctx, in.Answers, in.Installer)
		}
	case steps.EventSkipPersonalization:
		err = f.SkipPersonalization(ctx)
	case steps.EventScheduleCall:
		err = f.ScheduleCall(ctx)
	case steps.EventBack:
		err = f.Back(ctx)
	default:
		err = errors.NewInvalidTransitionError(event, f.Current())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepView{Step: f.Current(), Events: f.Events(), Result: result})
}
