// Package backend is the client of the lead and booking API.
package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"solar-funnel/internal/common/config"
	"solar-funnel/internal/common/errors"
	httpclient "solar-funnel/internal/common/http"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
	"solar-funnel/internal/common/validation"
	"solar-funnel/internal/models"
)

const serviceName = "backend"

// Client talks to the funnel backend. Reads retry; writes never do, so a lead
// or booking is never posted twice.
type Client struct {
	read   *resty.Client
	write  *resty.Client
	cfg    config.BackendConfig
	logger logger.Logger
}

func New(cfg config.BackendConfig, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	return &Client{
		read: httpclient.NewClient(httpclient.ClientOptions{
			BaseURL:    cfg.BaseURL,
			Timeout:    timeout,
			RetryCount: cfg.RetryCount,
		}),
		write: httpclient.NewClient(httpclient.ClientOptions{
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		}),
		cfg:    cfg,
		logger: log,
	}
}

// ListBookedCalls follows has_next page by page until the backend reports no
// further pages or MaxBookingPages is reached.
func (c *Client) ListBookedCalls(ctx context.Context) ([]models.BookedCall, error) {
	var calls []models.BookedCall

	for page := 1; page <= c.cfg.MaxBookingPages; page++ {
		resp, err := c.timed(func() (*resty.Response, error) {
			return c.read.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"page":     strconv.Itoa(page),
					"per_page": strconv.Itoa(c.cfg.BookingsPerPage),
				}).
				Get(c.cfg.BookingsPath)
		})
		if err != nil {
			return nil, err
		}

		result, err := validation.ValidateBytes(validation.SchemaBookingsPage, resp.Body())
		if err != nil {
			return nil, fmt.Errorf("bookings page %d: %w", page, err)
		}
		if !result.Valid {
			return nil, fmt.Errorf("bookings page %d: %s", page, strings.Join(result.GetErrorMessages(), "; "))
		}

		var body bookingsPage
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("decode bookings page %d: %w", page, err)
		}
		for _, raw := range body.Calls {
			var call models.BookedCall
			if err := json.Unmarshal(raw, &call); err != nil {
				c.logger.Debug("Skipping malformed booking entry", map[string]interface{}{
					"page":  page,
					"entry": string(raw),
				})
				continue
			}
			calls = append(calls, call)
		}

		if !body.HasNext {
			return calls, nil
		}
	}

	c.logger.Warn("Booked calls truncated at page limit", map[string]interface{}{
		"max_pages": c.cfg.MaxBookingPages,
		"calls":     len(calls),
	})
	return calls, nil
}

// CreateLead posts a lead. Non-2xx responses and transport failures are
// returned as *APIError.
func (c *Client) CreateLead(ctx context.Context, req CreateLeadRequest) error {
	if err := validateRequest(validation.SchemaCreateLeadRequest, req); err != nil {
		return err
	}
	_, err := c.timed(func() (*resty.Response, error) {
		return c.write.R().SetContext(ctx).SetBody(req).Post(c.cfg.CreateLeadPath)
	})
	return err
}

// BookCall posts a call booking.
func (c *Client) BookCall(ctx context.Context, req BookCallRequest) error {
	if req.CompanyID == "" {
		req.CompanyID = c.cfg.CompanyID
	}
	if err := validateRequest(validation.SchemaBookCallRequest, req); err != nil {
		return err
	}
	_, err := c.timed(func() (*resty.Response, error) {
		return c.write.R().SetContext(ctx).SetBody(req).Post(c.cfg.BookCallPath)
	})
	return err
}

// SendConfirmationEmail asks the backend to email the lead.
func (c *Client) SendConfirmationEmail(ctx context.Context, email string) error {
	_, err := c.timed(func() (*resty.Response, error) {
		return c.read.R().
			SetContext(ctx).
			SetQueryParam("email", email).
			Get(c.cfg.ConfirmationEmailPath)
	})
	return err
}

// CreditUnion is sent with every lead.
func (c *Client) CreditUnion() string {
	return c.cfg.CreditUnion
}

func (c *Client) timed(call func() (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := call()
	metrics.ExternalCallDuration.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, &APIError{Err: err}
	}
	if resp.IsError() {
		var body errorBody
		_ = json.Unmarshal(resp.Body(), &body)
		apiErr := &APIError{Status: resp.StatusCode(), Message: body.text()}
		c.logger.Warn("Backend call failed", map[string]interface{}{
			"url":     resp.Request.URL,
			"status":  apiErr.Status,
			"message": apiErr.Message,
		})
		return nil, apiErr
	}
	return resp, nil
}

func validateRequest(schema validation.SchemaName, req interface{}) error {
	result, err := validation.ValidateDocument(schema, req)
	if err != nil {
		return err
	}
	if !result.Valid {
		field := ""
		if len(result.Errors) > 0 {
			field = result.Errors[0].Field
		}
		return errors.NewValidationFailedError(field, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
