// internal/common/http/client.go
package http

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// ClientOptions configures a JSON API client.
type ClientOptions struct {
	BaseURL      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Headers      map[string]string
}

// NewClient returns a resty client preconfigured for JSON APIs. Retries apply
// to transport errors and 5xx responses; only use them for idempotent calls.
func NewClient(opts ClientOptions) *resty.Client {
	if opts.RetryWait == 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait == 0 {
		opts.RetryMaxWait = 3 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if opts.RetryCount > 0 {
		client.AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= 500)
		})
	}

	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}
	return client
}
