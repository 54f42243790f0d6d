package store

import (
	"context"

	"solar-funnel/internal/models"
)

// Typed binds one answer key to the Go type stored under it.
type Typed[T any] struct {
	Key string
}

func (t Typed[T]) Load(ctx context.Context, s *Store) (T, bool, error) {
	var v T
	found, err := s.Get(ctx, t.Key, &v)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

func (t Typed[T]) Save(ctx context.Context, s *Store, v T) error {
	return s.Set(ctx, t.Key, v)
}

// Merge only makes sense for struct and map types.
func (t Typed[T]) Merge(ctx context.Context, s *Store, partial T) error {
	return s.Merge(ctx, t.Key, partial)
}

func (t Typed[T]) Clear(ctx context.Context, s *Store) error {
	return s.Delete(ctx, t.Key)
}

var (
	Location           = Typed[models.Location]{Key: models.KeyLocation}
	Bill               = Typed[models.BillAnswers]{Key: models.KeyBill}
	HomeProfile        = Typed[models.HomeProfile]{Key: models.KeyHomeProfile}
	Proposal           = Typed[models.Proposal]{Key: models.KeyProposal}
	EnergyIndependence = Typed[models.DerivedEnergy]{Key: models.KeyEnergyIndependence}
	Economics          = Typed[models.Economics]{Key: models.KeyEconomics}
	RoofArea           = Typed[float64]{Key: models.KeyRoofArea}
	Contact            = Typed[models.Contact]{Key: models.KeyContact}
	PersonaliseAnswers = Typed[map[string]string]{Key: models.KeyPersonaliseAnswers}
	SelectedInstaller  = Typed[string]{Key: models.KeySelectedInstaller}
	SiteVisit          = Typed[map[string]interface{}]{Key: models.KeySiteVisit}
	FunnelStep         = Typed[string]{Key: models.KeyFunnelStep}
	CallScheduling     = Typed[models.SchedulingState]{Key: models.KeyCallScheduling}
	SelectedCallSlot   = Typed[models.CallSlot]{Key: models.KeySelectedCallSlot}
	BookingOutcome     = Typed[models.BookingOutcome]{Key: models.KeyBookingOutcome}
	NavigatedInApp     = Typed[bool]{Key: models.KeyNavigatedInApp}
)

// LeadStatus returns the accessor for the per-funnel signup flag.
func LeadStatus(funnel string) Typed[models.LeadStatus] {
	return Typed[models.LeadStatus]{Key: models.KeyLeadStatusPrefix + funnel}
}
