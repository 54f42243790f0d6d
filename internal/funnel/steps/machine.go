// Package steps holds the funnel and call-scheduling state machines. Each
// controller is rebuilt per request from the step persisted in the session
// store, so the store stays the single source of truth.
package steps

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/looplab/fsm"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
)

// machine wraps an fsm.FSM with persistence, metrics and error translation.
type machine struct {
	flow    string
	fsm     *fsm.FSM
	persist func(ctx context.Context, state string) error
	logger  logger.Logger
}

func (m *machine) current() string {
	return m.fsm.Current()
}

func (m *machine) can(event string) bool {
	return m.fsm.Can(event)
}

func (m *machine) events() []string {
	out := m.fsm.AvailableTransitions()
	sort.Strings(out)
	return out
}

// fire runs event, persisting the new state on success. A transition to the
// current state is a no-op.
func (m *machine) fire(ctx context.Context, event string, args ...interface{}) error {
	src := m.fsm.Current()

	if err := m.fsm.Event(ctx, event, args...); err != nil {
		return m.translate(event, src, err)
	}

	dst := m.fsm.Current()
	if err := m.persist(ctx, dst); err != nil {
		return err
	}

	metrics.FunnelTransitions.WithLabelValues(m.flow, event).Inc()
	m.logger.Info("Step transition", map[string]interface{}{
		"flow":  m.flow,
		"event": event,
		"from":  src,
		"to":    dst,
	})
	return nil
}

func (m *machine) translate(event, src string, err error) error {
	var (
		noTransition fsm.NoTransitionError
		canceled     fsm.CanceledError
		invalid      fsm.InvalidEventError
		unknown      fsm.UnknownEventError
	)

	switch {
	case stderrors.As(err, &noTransition):
		return nil
	case stderrors.As(err, &canceled):
		metrics.FunnelGuardRejections.WithLabelValues(m.flow, event).Inc()
		m.logger.Debug("Transition rejected", map[string]interface{}{
			"flow":  m.flow,
			"event": event,
			"state": src,
		})
		if canceled.Err != nil {
			return canceled.Err
		}
		return errors.NewGuardRejectedError(event, "step requirements not met")
	case stderrors.As(err, &invalid), stderrors.As(err, &unknown):
		return errors.NewInvalidTransitionError(event, src)
	default:
		return err
	}
}
