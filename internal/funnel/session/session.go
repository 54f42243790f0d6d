// Package session is the explicit session context: it issues session ids,
// owns the navigation marker and the per-funnel signup flags, and merges
// contact details arriving as URL parameters.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// Manager creates and opens sessions over one store backend.
type Manager struct {
	backend store.Backend
	now     func() time.Time
	logger  logger.Logger
}

func NewManager(backend store.Backend, log logger.Logger) *Manager {
	return &Manager{backend: backend, now: time.Now, logger: log}
}

// WithClock replaces the clock used for timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create issues a new session id and initialises it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := m.session(uuid.NewString())
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	m.logger.Info("Session created", map[string]interface{}{"session": s.ID})
	return s, nil
}

// Open returns the session for an existing id. Ids must be UUIDs.
func (m *Manager) Open(id string) (*Session, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, errors.NewValidationFailedError("sessionId", "session id must be a UUID")
	}
	return m.session(parsed.String()), nil
}

func (m *Manager) session(id string) *Session {
	return &Session{
		ID:     id,
		store:  store.New(m.backend, id, m.logger),
		now:    m.now,
		logger: m.logger.WithFields(map[string]interface{}{"session": id}),
	}
}

// Session is the context object every funnel operation runs against.
type Session struct {
	ID     string
	store  *store.Store
	now    func() time.Time
	logger logger.Logger
}

func (s *Session) Store() *store.Store {
	return s.store
}

// Init records when the session started. Calling it again is a no-op.
func (s *Session) Init(ctx context.Context) error {
	_, err := s.store.SetIfAbsent(ctx, models.KeySessionInitialised, s.now().UTC())
	return err
}

// Clear removes every answer, flag and marker of the session.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Visit marks a page mount. It reports true when this is the first mount of the
// session (a direct visit) and false for in-flow navigation. The marker is
// never reset until the session is cleared.
func (s *Session) Visit(ctx context.Context) (bool, error) {
	return s.store.SetIfAbsent(ctx, models.KeyNavigatedInApp, true)
}

// ContactParams are contact details passed on the URL.
type ContactParams struct {
	FullName string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// MergeContactParams applies non-empty URL values over the stored contact and
// persists them immediately. URL values win on conflict.
func (s *Session) MergeContactParams(ctx context.Context, p ContactParams) (models.Contact, error) {
	partial := models.Contact{
		FullName: strings.TrimSpace(p.FullName),
		Email:    strings.TrimSpace(p.Email),
		Phone:    strings.TrimSpace(p.Phone),
	}
	if partial != (models.Contact{}) {
		if err := store.Contact.Merge(ctx, s.store, partial); err != nil {
			return models.Contact{}, err
		}
	}
	contact, _, err := store.Contact.Load(ctx, s.store)
	return contact, err
}

// Contact returns the stored contact, empty when none.
func (s *Session) Contact(ctx context.Context) (models.Contact, error) {
	contact, _, err := store.Contact.Load(ctx, s.store)
	return contact, err
}

// ContactKnown reports whether name and email are both stored, so later steps
// can skip asking for them.
func (s *Session) ContactKnown(ctx context.Context) (bool, error) {
	contact, err := s.Contact(ctx)
	if err != nil {
		return false, err
	}
	return contact.Known(), nil
}

// LeadStatus returns the signup flag for a funnel.
func (s *Session) LeadStatus(ctx context.Context, funnel string) (models.LeadStatus, error) {
	status, _, err := store.LeadStatus(funnel).Load(ctx, s.store)
	return status, err
}

// MarkSignedUp records a successful lead submission for a funnel.
func (s *Session) MarkSignedUp(ctx context.Context, funnel, email string) error {
	err := store.LeadStatus(funnel).Save(ctx, s.store, models.LeadStatus{
		SignedUp:    true,
		Email:       email,
		SubmittedAt: s.now().UTC(),
	})
	if err == nil {
		s.logger.Info("Lead recorded", map[string]interface{}{"funnel": funnel})
	}
	return err
}
