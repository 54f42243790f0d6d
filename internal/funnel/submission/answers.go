package submission

import (
	"context"

	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// accumulated is everything the visitor has answered or had derived so far.
type accumulated struct {
	location    *models.Location
	bill        *models.BillAnswers
	profile     *models.HomeProfile
	proposal    *models.Proposal
	energy      *models.DerivedEnergy
	economics   *models.Economics
	roofArea    float64
	personalise map[string]string
}

func loadAnswers(ctx context.Context, st *store.Store) (*accumulated, error) {
	var (
		a   accumulated
		err error
	)
	if a.location, err = optional(ctx, st, store.Location); err != nil {
		return nil, err
	}
	if a.bill, err = optional(ctx, st, store.Bill); err != nil {
		return nil, err
	}
	if a.profile, err = optional(ctx, st, store.HomeProfile); err != nil {
		return nil, err
	}
	if a.proposal, err = optional(ctx, st, store.Proposal); err != nil {
		return nil, err
	}
	if a.energy, err = optional(ctx, st, store.EnergyIndependence); err != nil {
		return nil, err
	}
	if a.economics, err = optional(ctx, st, store.Economics); err != nil {
		return nil, err
	}
	if a.roofArea, _, err = store.RoofArea.Load(ctx, st); err != nil {
		return nil, err
	}
	if a.personalise, _, err = store.PersonaliseAnswers.Load(ctx, st); err != nil {
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
