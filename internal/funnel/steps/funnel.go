package steps

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/looplab/fsm"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/funnel/estimate"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// Funnel states.
const (
	StateAddressEntry     = "address-entry"
	StateBillEstimation   = "bill-estimation"
	StateProposalLoading  = "proposal-loading"
	StatePersonalization  = "personalization"
	StatePlanReview       = "plan-review"
	StateCallScheduling   = "call-scheduling"
	StateBookingConfirmed = "booking-confirmed"
)

// Funnel events.
const (
	EventConfirmAddress          = "confirm-address"
	EventSubmitBill              = "submit-bill"
	EventProposalSettled         = "proposal-settled"
	EventCompletePersonalization = "complete-personalization"
	EventSkipPersonalization     = "skip-personalization"
	EventScheduleCall            = "schedule-call"
	EventConfirmBooking          = "confirm-booking"
	EventBack                    = "back"
)

const flowFunnel = "funnel"

var funnelOrder = []string{
	StateAddressEntry,
	StateBillEstimation,
	StateProposalLoading,
	StatePersonalization,
	StatePlanReview,
	StateCallScheduling,
	StateBookingConfirmed,
}

// ownedKeys lists the answers each step introduces. Going back to a step
// clears its keys and those of every later step. Contact is never cleared.
var ownedKeys = map[string][]string{
	StateAddressEntry:    {models.KeyLocation},
	StateBillEstimation:  {models.KeyBill, models.KeyHomeProfile},
	StateProposalLoading: {models.KeyProposal, models.KeyRoofArea, models.KeyEnergyIndependence, models.KeyEconomics},
	StatePersonalization: {models.KeyPersonaliseAnswers, models.KeySelectedInstaller, models.KeySiteVisit},
	StateCallScheduling:  {models.KeyCallScheduling, models.KeySelectedCallSlot, models.KeyBookingOutcome},
}

// backTargets skips the transient proposal-loading step.
var backTargets = map[string]string{
	StateBillEstimation:  StateAddressEntry,
	StateProposalLoading: StateBillEstimation,
	StatePersonalization: StateBillEstimation,
	StatePlanReview:      StatePersonalization,
	StateCallScheduling:  StatePlanReview,
}

// ProposalFetcher requests a proposal for a location and monthly bill.
type ProposalFetcher interface {
	FetchProposal(ctx context.Context, coords models.Coordinates, billAmount int) (*models.Proposal, error)
}

// BillInput is one of: a band tier, a manual amount, or a home profile.
type BillInput struct {
	Tier        int                 `json:"tier,omitempty"`
	Manual      int                 `json:"manual,omitempty"`
	HomeProfile *models.HomeProfile `json:"homeProfile,omitempty"`
}

// ProposalOutcome reports how proposal loading settled. The funnel advances either way.
type ProposalOutcome struct {
	Loaded bool             `json:"loaded"`
	Error  string           `json:"error,omitempty"`
	Result *estimate.Result `json:"derived,omitempty"`
}

// Funnel drives the address to booking flow of one session.
type Funnel struct {
	st         *store.Store
	proposals  ProposalFetcher
	calculator *estimate.Calculator
	m          *machine
	logger     logger.Logger
}

// LoadFunnel restores the funnel at the step persisted for the session.
func LoadFunnel(ctx context.Context, st *store.Store, proposals ProposalFetcher, calc *estimate.Calculator, log logger.Logger) (*Funnel, error) {
	step, found, err := store.FunnelStep.Load(ctx, st)
	if err != nil {
		return nil, err
	}
	if !found || !validFunnelState(step) {
		step = StateAddressEntry
	}

	f := &Funnel{st: st, proposals: proposals, calculator: calc, logger: log}

	events := fsm.Events{
		{Name: EventConfirmAddress, Src: []string{StateAddressEntry}, Dst: StateBillEstimation},
		{Name: EventSubmitBill, Src: []string{StateBillEstimation}, Dst: StateProposalLoading},
		{Name: EventProposalSettled, Src: []string{StateProposalLoading}, Dst: StatePersonalization},
		{Name: EventCompletePersonalization, Src: []string{StatePersonalization}, Dst: StatePlanReview},
		{Name: EventSkipPersonalization, Src: []string{StatePersonalization}, Dst: StatePlanReview},
		{Name: EventScheduleCall, Src: []string{StatePlanReview}, Dst: StateCallScheduling},
		{Name: EventConfirmBooking, Src: []string{StateCallScheduling}, Dst: StateBookingConfirmed},
	}
	for src, dst := range backTargets {
		events = append(events, fsm.EventDesc{Name: EventBack, Src: []string{src}, Dst: dst})
	}

	f.m = &machine{
		flow: flowFunnel,
		fsm: fsm.NewFSM(step, events, fsm.Callbacks{
			"before_" + EventConfirmAddress: f.guardAddress,
			"before_" + EventSubmitBill:     f.guardBill,
			"before_" + EventConfirmBooking: f.guardBooked,
		}),
		persist: func(ctx context.Context, state string) error {
			return store.FunnelStep.Save(ctx, st, state)
		},
		logger: log,
	}
	return f, nil
}

func validFunnelState(s string) bool {
	for _, st := range funnelOrder {
		if st == s {
			return true
		}
	}
	return false
}

func (f *Funnel) Current() string {
	return f.m.current()
}

// Events lists the events accepted in the current step.
func (f *Funnel) Events() []string {
	return f.m.events()
}

func (f *Funnel) Can(event string) bool {
	return f.m.can(event)
}

// ConfirmAddress stores the geocoded location and advances once the visitor has
// affirmed it. A location is immutable after confirmation.
func (f *Funnel) ConfirmAddress(ctx context.Context, loc models.Location) error {
	if !f.m.can(EventConfirmAddress) {
		return errors.NewInvalidTransitionError(EventConfirmAddress, f.Current())
	}
	if err := validateLocation(loc); err != nil {
		return err
	}

	existing, found, err := store.Location.Load(ctx, f.st)
	if err != nil {
		return err
	}
	if found && existing.Confirmed {
		return errors.NewLocationLockedError()
	}

	loc.Address = strings.TrimSpace(loc.Address)
	if err := store.Location.Save(ctx, f.st, loc); err != nil {
		return err
	}
	return f.m.fire(ctx, EventConfirmAddress)
}

func validateLocation(loc models.Location) error {
	switch {
	case strings.TrimSpace(loc.Address) == "":
		return errors.NewValidationFailedError("address", "address is required")
	case math.Abs(loc.Coordinates.Lat) > 90 || math.Abs(loc.Coordinates.Lng) > 180:
		return errors.NewValidationFailedError("coordinates", "coordinates out of range")
	}
	return nil
}

func (f *Funnel) guardAddress(ctx context.Context, e *fsm.Event) {
	loc, found, err := store.Location.Load(ctx, f.st)
	switch {
	case err != nil:
		e.Cancel(err)
	case !found || (loc.Coordinates.Lat == 0 && loc.Coordinates.Lng == 0):
		e.Cancel(errors.NewGuardRejectedError(e.Event, "address has not been geocoded"))
	case !loc.Confirmed:
		e.Cancel(errors.NewGuardRejectedError(e.Event, "address has not been confirmed"))
	}
}

// SubmitBill records the bill answer and advances to proposal loading. An
// estimate from the home profile never replaces a known bill.
func (f *Funnel) SubmitBill(ctx context.Context, in BillInput) error {
	if !f.m.can(EventSubmitBill) {
		return errors.NewInvalidTransitionError(EventSubmitBill, f.Current())
	}

	switch {
	case in.Tier != 0:
		if !isBand(in.Tier) {
			return errors.NewValidationFailedError("tier", fmt.Sprintf("%d is not a bill band", in.Tier))
		}
		if err := store.Bill.Save(ctx, f.st, models.BillAnswers{Tier: in.Tier, Source: models.BillSourceBand}); err != nil {
			return err
		}
	case in.Manual != 0:
		if in.Manual < 0 {
			return errors.NewValidationFailedError("manual", "bill amount must be a positive whole number")
		}
		if err := store.Bill.Save(ctx, f.st, models.BillAnswers{Tier: in.Manual, Source: models.BillSourceManual}); err != nil {
			return err
		}
	case in.HomeProfile != nil:
		if err := f.saveEstimate(ctx, *in.HomeProfile); err != nil {
			return err
		}
	}

	return f.m.fire(ctx, EventSubmitBill)
}

func (f *Funnel) saveEstimate(ctx context.Context, profile models.HomeProfile) error {
	if err := store.HomeProfile.Save(ctx, f.st, profile); err != nil {
		return err
	}
	if !profile.Complete() {
		return nil
	}

	bill, found, err := store.Bill.Load(ctx, f.st)
	if err != nil {
		return err
	}
	if found && bill.Tier > 0 && bill.Source != models.BillSourceEstimate {
		return nil
	}

	est := estimate.EstimateBill(profile)
	return store.Bill.Save(ctx, f.st, models.BillAnswers{
		Tier:      est.Amount,
		Source:    models.BillSourceEstimate,
		Estimated: true,
		Category:  est.Category,
	})
}

func isBand(tier int) bool {
	for _, b := range models.BillBands {
		if b == tier {
			return true
		}
	}
	return false
}

func (f *Funnel) guardBill(ctx context.Context, e *fsm.Event) {
	bill, found, err := store.Bill.Load(ctx, f.st)
	if err != nil {
		e.Cancel(err)
		return
	}
	if found && bill.Tier > 0 {
		return
	}
	profile, found, err := store.HomeProfile.Load(ctx, f.st)
	if err != nil {
		e.Cancel(err)
		return
	}
	if !found || !profile.Complete() {
		e.Cancel(errors.NewGuardRejectedError(e.Event, "choose a bill amount or answer the home questions"))
	}
}

// LoadProposal calls the proposal service and advances whether or not it
// succeeded, so a failing service never blocks the visitor.
func (f *Funnel) LoadProposal(ctx context.Context) (*ProposalOutcome, error) {
	if !f.m.can(EventProposalSettled) {
		return nil, errors.NewInvalidTransitionError(EventProposalSettled, f.Current())
	}

	out := &ProposalOutcome{}
	if err := f.fetchProposal(ctx); err != nil {
		stdErr := errors.Normalize(err)
		if stdErr.Code == errors.ErrCodeStoreUnavailable {
			return nil, stdErr
		}
		f.logger.Warn("Proposal unavailable, continuing with partial data", map[string]interface{}{
			"session": f.st.Namespace(),
			"error":   err.Error(),
		})
		out.Error = stdErr.Message
	} else {
		out.Loaded = true
	}

	res, err := f.calculator.Refresh(ctx, f.st)
	if err != nil {
		return nil, err
	}
	out.Result = res

	if err := f.m.fire(ctx, EventProposalSettled); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Funnel) fetchProposal(ctx context.Context) error {
	loc, _, err := store.Location.Load(ctx, f.st)
	if err != nil {
		return err
	}
	bill, _, err := store.Bill.Load(ctx, f.st)
	if err != nil {
		return err
	}

	proposal, err := f.proposals.FetchProposal(ctx, loc.Coordinates, bill.Tier)
	if err != nil {
		return errors.NewProposalFailedError(err)
	}
	if err := store.Proposal.Save(ctx, f.st, *proposal); err != nil {
		return err
	}
	if proposal.RoofArea > 0 {
		return store.RoofArea.Save(ctx, f.st, proposal.RoofArea)
	}
	return nil
}

// CompletePersonalization merges the answers and the optional installer choice.
func (f *Funnel) CompletePersonalization(ctx context.Context, answers map[string]string, installer string) error {
	if !f.m.can(EventCompletePersonalization) {
		return errors.NewInvalidTransitionError(EventCompletePersonalization, f.Current())
	}
	if len(answers) > 0 {
		partial := make(map[string]interface{}, len(answers))
		for k, v := range answers {
			partial[k] = v
		}
		if err := f.st.Merge(ctx, models.KeyPersonaliseAnswers, partial); err != nil {
			return err
		}
	}
	if installer != "" {
		if err := store.SelectedInstaller.Save(ctx, f.st, installer); err != nil {
			return err
		}
	}
	return f.m.fire(ctx, EventCompletePersonalization)
}

// SkipPersonalization clears any partial personalisation before advancing.
func (f *Funnel) SkipPersonalization(ctx context.Context) error {
	if !f.m.can(EventSkipPersonalization) {
		return errors.NewInvalidTransitionError(EventSkipPersonalization, f.Current())
	}
	if err := f.st.Delete(ctx, ownedKeys[StatePersonalization]...); err != nil {
		return err
	}
	return f.m.fire(ctx, EventSkipPersonalization)
}

// ScheduleCall enters call scheduling with a fresh sub-flow.
func (f *Funnel) ScheduleCall(ctx context.Context) error {
	if !f.m.can(EventScheduleCall) {
		return errors.NewInvalidTransitionError(EventScheduleCall, f.Current())
	}
	if err := f.st.Delete(ctx, ownedKeys[StateCallScheduling]...); err != nil {
		return err
	}
	return f.m.fire(ctx, EventScheduleCall)
}

// ConfirmBooking moves to the terminal step once a call has been booked.
func (f *Funnel) ConfirmBooking(ctx context.Context) error {
	return f.m.fire(ctx, EventConfirmBooking)
}

func (f *Funnel) guardBooked(ctx context.Context, e *fsm.Event) {
	outcome, found, err := store.BookingOutcome.Load(ctx, f.st)
	if err != nil {
		e.Cancel(err)
		return
	}
	if !found || outcome.Status != models.BookingBooked {
		e.Cancel(errors.NewGuardRejectedError(e.Event, "no call has been booked"))
	}
}

// Back returns to the previous step, clearing the target step's answers and
// everything after it.
func (f *Funnel) Back(ctx context.Context) error {
	src := f.Current()
	target, ok := backTargets[src]
	if !ok || !f.m.can(EventBack) {
		return errors.NewInvalidTransitionError(EventBack, src)
	}

	var keys []string
	for _, s := range statesFrom(target) {
		keys = append(keys, ownedKeys[s]...)
	}
	if err := f.st.Delete(ctx, keys...); err != nil {
		return err
	}
	return f.m.fire(ctx, EventBack)
}

func statesFrom(state string) []string {
	for i, s := range funnelOrder {
		if s == state {
			return funnelOrder[i:]
		}
	}
	return nil
}
