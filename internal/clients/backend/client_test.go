package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-funnel/internal/common/config"
	apperrors "solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func testConfig(baseURL string) config.BackendConfig {
	return config.BackendConfig{
		BaseURL:               baseURL,
		BookingsPath:          "/calls",
		CreateLeadPath:        "/leads",
		BookCallPath:          "/calls/book",
		ConfirmationEmailPath: "/send-confirmation-email",
		BookingsPerPage:       50,
		MaxBookingPages:       100,
		Timeout:               2000,
		RetryCount:            2,
		CompanyID:             "acme-solar",
		CreditUnion:           "none",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func calls(n int) []models.BookedCall {
	out := make([]models.BookedCall, n)
	for i := range out {
		out[i] = models.BookedCall{CallDate: "March 4, 2026", CallTime: fmt.Sprintf("%d:00 PM", 1+i%12)}
	}
	return out
}

func validLead() CreateLeadRequest {
	return CreateLeadRequest{Name: "Jo Bloggs", Email: "jo@x.com", CreditUnion: "none"}
}

// ==========================
// Bookings Tests
// ==========================

func TestClient_ListBookedCalls_Paginates(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/calls", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))

		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"calls": calls(50), "has_next": true})
		case "2":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"calls": calls(3), "has_next": false})
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	got, err := New(testConfig(server.URL), logger.NewTestLogger(t)).ListBookedCalls(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 53)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_ListBookedCalls_StopsAtPageLimit(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"calls": calls(1), "has_next": true})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxBookingPages = 3
	got, err := New(cfg, logger.NewTestLogger(t)).ListBookedCalls(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestClient_ListBookedCalls_RejectsMalformedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"bookings": []string{}})
	}))
	defer server.Close()

	_, err := New(testConfig(server.URL), logger.NewTestLogger(t)).ListBookedCalls(context.Background())
	assert.Error(t, err)
}

func TestClient_ListBookedCalls_SkipsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"calls":[` +
			`{"call_date":"March 4, 2026","call_time":"4:00 PM"},` +
			`{"call_date":null,"call_time":"4:15 PM"},` +
			`{"call_date":20260304,"call_time":"4:30 PM"},` +
			`"March 4, 2026 4:45 PM",` +
			`null,` +
			`{"call_date":"March 5, 2026","call_time":"9:00 AM"}` +
			`],"has_next":false}`))
	}))
	defer server.Close()

	got, err := New(testConfig(server.URL), logger.NewTestLogger(t)).ListBookedCalls(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, models.BookedCall{CallDate: "March 4, 2026", CallTime: "4:00 PM"})
	assert.Contains(t, got, models.BookedCall{CallDate: "March 5, 2026", CallTime: "9:00 AM"})
	assert.NotContains(t, got, models.BookedCall{CallDate: "20260304", CallTime: "4:30 PM"})
}

func TestClient_ListBookedCalls_RetriesServerErrors(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]string{"message": "warming up"})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"calls": calls(2), "has_next": false})
	}))
	defer server.Close()

	got, err := New(testConfig(server.URL), logger.NewTestLogger(t)).ListBookedCalls(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

// ==========================
// Submission Tests
// ==========================

func TestClient_CreateLead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/leads", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "jo@x.com", body["email"])
		assert.Equal(t, false, body["consent"])
		assert.Contains(t, body, "phone_number")
		assert.Nil(t, body["phone_number"])

		writeJSON(t, w, http.StatusCreated, map[string]string{"id": "lead-1"})
	}))
	defer server.Close()

	err := New(testConfig(server.URL), logger.NewTestLogger(t)).CreateLead(context.Background(), validLead())
	assert.NoError(t, err)
}

func TestClient_CreateLead_ErrorStatus(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeJSON(t, w, http.StatusInternalServerError, map[string]string{"message": "Failed to create user"})
	}))
	defer server.Close()

	err := New(testConfig(server.URL), logger.NewTestLogger(t)).CreateLead(context.Background(), validLead())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Failed to create user", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "writes must not be retried")
}

func TestClient_CreateLead_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := New(testConfig(url), logger.NewTestLogger(t)).CreateLead(context.Background(), validLead())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
}

func TestClient_CreateLead_InvalidRequestIsNotSent(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	req := validLead()
	req.Email = "not-an-email"
	err := New(testConfig(server.URL), logger.NewTestLogger(t)).CreateLead(context.Background(), req)

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
	assert.Zero(t, atomic.LoadInt32(&requests))
}

func TestClient_BookCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls/book", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme-solar", body["company_id"])
		assert.Equal(t, "March 4, 2026", body["call_date"])
		assert.Equal(t, "4:15 PM", body["call_time"])
		writeJSON(t, w, http.StatusOK, map[string]bool{"ok": true})
	}))
	defer server.Close()

	err := New(testConfig(server.URL), logger.NewTestLogger(t)).BookCall(context.Background(), BookCallRequest{
		Email:    "jo@x.com",
		Name:     "Jo Bloggs",
		Phone:    "0871234567",
		CallDate: "March 4, 2026",
		CallTime: "4:15 PM",
	})
	assert.NoError(t, err)
}

func TestClient_BookCall_NestedErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]interface{}{"data": map[string]string{"message": "Slot already taken"}})
	}))
	defer server.Close()

	err := New(testConfig(server.URL), logger.NewTestLogger(t)).BookCall(context.Background(), BookCallRequest{
		Email: "jo@x.com", Name: "Jo", Phone: "0871234567", CallDate: "March 4, 2026", CallTime: "4:15 PM",
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Slot already taken", apiErr.Message)
}

func TestClient_SendConfirmationEmail(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.Query().Get("email")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, New(testConfig(server.URL), logger.NewTestLogger(t)).SendConfirmationEmail(context.Background(), "jo+solar@x.com"))
	assert.Equal(t, "jo+solar@x.com", <-got)
}
