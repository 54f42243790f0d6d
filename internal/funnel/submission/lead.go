// Package submission assembles the stored answers into the lead and booking
// payloads, posts them and records the outcome back into the session.
package submission

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"solar-funnel/internal/clients/backend"
	"solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
	"solar-funnel/internal/common/validation"
	"solar-funnel/internal/funnel/session"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

const confirmationTimeout = 10 * time.Second

// LeadBackend is the part of the backend client lead capture needs.
type LeadBackend interface {
	CreateLead(ctx context.Context, req backend.CreateLeadRequest) error
	SendConfirmationEmail(ctx context.Context, email string) error
	CreditUnion() string
}

// LeadInput is the contact form. Fields left empty fall back to the stored contact.
type LeadInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// LeadResult is returned on success.
type LeadResult struct {
	Email    string `json:"email"`
	SignedUp bool   `json:"signedUp"`
}

type Leads struct {
	backend LeadBackend
	logger  logger.Logger
	pending sync.WaitGroup
}

func NewLeads(b LeadBackend, log logger.Logger) *Leads {
	return &Leads{backend: b, logger: log}
}

// Submit posts a lead for the session. On success the signup flag and contact
// are stored and a confirmation email is requested in the background.
func (l *Leads) Submit(ctx context.Context, sess *session.Session, funnel string, in LeadInput) (*LeadResult, error) {
	st := sess.Store()

	known, err := sess.Contact(ctx)
	if err != nil {
		return nil, err
	}
	contact := overlay(known, models.Contact{FullName: in.FullName, Email: in.Email, Phone: in.Phone})
	if err := validateLeadContact(contact); err != nil {
		return nil, err
	}

	req, err := l.assemble(ctx, st, contact)
	if err != nil {
		return nil, err
	}

	if err := l.backend.CreateLead(ctx, *req); err != nil {
		mapped := mapLeadError(err, contact.Email)
		metrics.Submissions.WithLabelValues("lead", errors.GetErrorCategory(mapped.Code)).Inc()
		l.logger.Warn("Lead submission failed", map[string]interface{}{
			"session": sess.ID,
			"code":    mapped.Code,
			"error":   err.Error(),
		})
		return nil, mapped
	}
	metrics.Submissions.WithLabelValues("lead", "success").Inc()

	if err := store.Contact.Merge(ctx, st, contact); err != nil {
		return nil, err
	}
	if err := sess.MarkSignedUp(ctx, funnel, contact.Email); err != nil {
		return nil, err
	}

	l.sendConfirmation(ctx, contact.Email)
	return &LeadResult{Email: contact.Email, SignedUp: true}, nil
}

// Wait blocks until background confirmation requests have finished.
func (l *Leads) Wait() {
	l.pending.Wait()
}

// sendConfirmation is fire-and-forget: failures are logged and dropped.
func (l *Leads) sendConfirmation(ctx context.Context, email string) {
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmationTimeout)
		defer cancel()

		if err := l.backend.SendConfirmationEmail(ctx, email); err != nil {
			l.logger.Warn("Confirmation email request failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

func (l *Leads) assemble(ctx context.Context, st *store.Store, contact models.Contact) (*backend.CreateLeadRequest, error) {
	req := &backend.CreateLeadRequest{
		Name:        contact.FullName,
		Email:       contact.Email,
		Consent:     false,
		CreditUnion: l.backend.CreditUnion(),
	}
	if contact.Phone != "" {
		phone := contact.Phone
		req.PhoneNumber = &phone
	}

	answers, err := loadAnswers(ctx, st)
	if err != nil {
		return nil, err
	}
	req.BusinessProposal = answers.proposal
	req.PersonaliseAnswers = answers.personalise
	req.SelectedLocation = answers.location
	req.RoofArea = answers.roofArea
	req.EnergyIndependence = answers.energy
	req.FinanceInfo = answers.economics
	return req, nil
}

func validateLeadContact(c models.Contact) error {
	switch {
	case c.FullName == "":
		return errors.NewValidationFailedError("fullName", "name is required")
	case !validation.ValidateEmail(c.Email):
		return errors.NewValidationFailedError("email", "enter a valid email address")
	case c.Phone != "" && !validation.ValidatePhone(c.Phone):
		return errors.NewValidationFailedError("phone", "enter a valid phone number")
	}
	return nil
}

var (
	failedToCreateUser = regexp.MustCompile(`(?i)failed to create user`)

	validationHints = []struct {
		pattern *regexp.Regexp
		message string
	}{
		{regexp.MustCompile(`(?i)email`), "Please check your email address and try again."},
		{regexp.MustCompile(`(?i)phone`), "Please check your phone number and try again."},
		{regexp.MustCompile(`(?i)name`), "Please check your name and try again."},
	}
)

// mapLeadError sorts a create-lead failure into the user-facing categories.
func mapLeadError(err error, email string) *errors.StandardError {
	if stdErr, ok := errors.As(err); ok && stdErr.Code == errors.ErrCodeValidationFailed {
		return errors.NewLeadError(errors.ErrCodeLeadValidation, "Please check your details and try again.", stdErr.Details, false).
			WithMetadata("title", "Invalid Details")
	}

	var apiErr *backend.APIError
	if !stderrors.As(err, &apiErr) {
		return errors.NewLeadError(errors.ErrCodeLeadUnknown, "Unexpected error, please try again.", err.Error(), true).
			WithMetadata("title", "Something Went Wrong")
	}

	switch {
	case apiErr.Status == 0:
		return errors.NewLeadError(errors.ErrCodeLeadNetworkError,
			"We couldn't reach our servers. Please check your connection and try again.", apiErr.Error(), true).
			WithMetadata("title", "Connection Problem")
	case apiErr.Status == 400:
		message := "Please check your details and try again."
		for _, h := range validationHints {
			if h.pattern.MatchString(apiErr.Message) {
				message = h.message
				break
			}
		}
		return errors.NewLeadError(errors.ErrCodeLeadValidation, message, apiErr.Message, false).
			WithMetadata("title", "Invalid Details")
	case apiErr.Status == 409:
		return errors.NewLeadError(errors.ErrCodeLeadDuplicate,
			fmt.Sprintf("An account with %s already exists. Please sign in or use a different email address.", email),
			apiErr.Message, false).
			WithMetadata("title", "Account Already Exists")
	case apiErr.Status == 500:
		message := "Something went wrong on our side. Please try again in a moment."
		if failedToCreateUser.MatchString(apiErr.Message) {
			message = "We couldn't create your account right now. Please try again in a few minutes."
		}
		return errors.NewLeadError(errors.ErrCodeLeadServerError, message, apiErr.Message, true).
			WithMetadata("title", "Server Error")
	default:
		return errors.NewLeadError(errors.ErrCodeLeadUnknown, "Unexpected error, please try again.", apiErr.Error(), true).
			WithMetadata("title", "Something Went Wrong")
	}
}

func overlay(known, entered models.Contact) models.Contact {
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
