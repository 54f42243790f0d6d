package availability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-funnel/internal/clients/backend"
	"solar-funnel/internal/common/config"
	apperrors "solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSource struct {
	calls []models.BookedCall
	err   error
	hits  int
}

func (f *fakeSource) ListBookedCalls(ctx context.Context) ([]models.BookedCall, error) {
	f.hits++
	return f.calls, f.err
}

func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(config.SchedulingConfig{
		Timezone:        "UTC",
		SlotStepMinutes: 15,
		Windows: []config.WindowConfig{
			{Start: "16:00", End: "18:00"},
			{Start: "09:00", End: "11:00"},
		},
	})
	require.NoError(t, err)
	return g
}

func testResolver(t *testing.T, source BookingSource, now time.Time) *Resolver {
	t.Helper()
	return NewResolver(testGrid(t), source, 4*time.Hour, 180, logger.NewTestLogger(t)).
		WithClock(func() time.Time { return now })
}

// 2026-03-02 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

func labels(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Label
	}
	return out
}

// ==========================
// Grid Tests
// ==========================

func TestGrid_Candidates(t *testing.T) {
	g := testGrid(t)
	now := at(2, 8, 0)

	got := g.Candidates(at(4, 0, 0), now)
	want := []string{
		"9:00 AM", "9:15 AM", "9:30 AM", "9:45 AM", "10:00 AM", "10:15 AM", "10:30 AM", "10:45 AM", "11:00 AM",
		"4:00 PM", "4:15 PM", "4:30 PM", "4:45 PM", "5:00 PM", "5:15 PM", "5:30 PM", "5:45 PM", "6:00 PM",
	}
	assert.Equal(t, want, labels(got))
	assert.Equal(t, got, g.Candidates(at(4, 13, 0), now))

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Instant.Before(got[i].Instant))
	}
}

func TestGrid_TomorrowIsAfternoonOnly(t *testing.T) {
	g := testGrid(t)

	got := g.Candidates(at(3, 0, 0), at(2, 8, 0))
	require.Len(t, got, 9)
	assert.Equal(t, "4:00 PM", got[0].Label)
	assert.Equal(t, "6:00 PM", got[8].Label)
}

func TestGrid_ParseBookedCall(t *testing.T) {
	g := testGrid(t)

	tests := []struct {
		date, clock string
		want        time.Time
		ok          bool
	}{
		{"March 4, 2026", "9:15 AM", at(4, 9, 15), true},
		{"March 4, 2026", "4:30 pm", at(4, 16, 30), true},
		{"Mar 4, 2026", "10:00 AM", at(4, 10, 0), true},
		{"march  4,  2026", "10:00 AM", at(4, 10, 0), true},
		{"4/3/2026", "10:00 AM", time.Time{}, false},
		{"March 4, 2026", "16:00", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.date+" "+tt.clock, func(t *testing.T) {
			got, err := g.ParseBookedCall(tt.date, tt.clock)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestNewGrid_RejectsBadWindows(t *testing.T) {
	_, err := NewGrid(config.SchedulingConfig{SlotStepMinutes: 15, Windows: []config.WindowConfig{{Start: "11:00", End: "09:00"}}})
	assert.Error(t, err)

	_, err = NewGrid(config.SchedulingConfig{SlotStepMinutes: 0})
	assert.Error(t, err)
}

// ==========================
// Offerability Tests
// ==========================

func TestOfferable_LeadTimeBoundary(t *testing.T) {
	g := testGrid(t)
	day := at(2, 0, 0)

	onTime := Offerable(g.Candidates(day, at(2, 5, 0)), BookedSet{}, at(2, 5, 0), 4*time.Hour)
	assert.Equal(t, "9:00 AM", onTime[0].Label)

	late := Offerable(g.Candidates(day, at(2, 5, 1)), BookedSet{}, at(2, 5, 1), 4*time.Hour)
	assert.Equal(t, "9:15 AM", late[0].Label)
}

func TestOfferable_ExcludesBooked(t *testing.T) {
	g := testGrid(t)
	booked := BookedSet{}
	booked.add(at(4, 9, 15))
	booked.add(at(4, 17, 0))

	got := labels(Offerable(g.Candidates(at(4, 0, 0), at(2, 8, 0)), booked, at(2, 8, 0), 4*time.Hour))
	assert.Len(t, got, 16)
	assert.NotContains(t, got, "9:15 AM")
	assert.NotContains(t, got, "5:00 PM")

	// Booked slots stay excluded even when lead time would also reject them.
	early := labels(Offerable(g.Candidates(at(4, 0, 0), at(4, 5, 0)), booked, at(4, 5, 0), 4*time.Hour))
	assert.NotContains(t, early, "9:15 AM")
}

// ==========================
// Resolver Tests
// ==========================

func TestResolver_Slots(t *testing.T) {
	source := &fakeSource{calls: []models.BookedCall{
		{CallDate: "March 4, 2026", CallTime: "9:00 AM"},
		{CallDate: "not a date", CallTime: "9:15 AM"},
	}}
	r := testResolver(t, source, at(2, 8, 0))

	got := labels(r.Slots(context.Background(), at(4, 0, 0)))
	assert.Len(t, got, 17)
	assert.Equal(t, "9:15 AM", got[0])
	assert.Equal(t, 1, source.hits)
}

func TestResolver_FetchFailureFailsOpen(t *testing.T) {
	r := testResolver(t, &fakeSource{err: errors.New("backend down")}, at(2, 8, 0))

	assert.Len(t, r.Slots(context.Background(), at(4, 0, 0)), 18)
	assert.True(t, r.Selectable(context.Background(), at(4, 0, 0)))
}

func TestResolver_BookedAggregatesAllParseable(t *testing.T) {
	var calls []models.BookedCall
	for i := 0; i < 53; i++ {
		day := 2 + i/18
		minute := 9*60 + (i%9)*15
		if i%18 >= 9 {
			minute = 16*60 + (i%9)*15
		}
		calls = append(calls, models.BookedCall{
			CallDate: fmt.Sprintf("March %d, 2026", day),
			CallTime: time.Date(2026, 3, day, minute/60, minute%60, 0, 0, time.UTC).Format(LabelLayout),
		})
	}
	calls[10].CallTime = "garbage"

	r := testResolver(t, &fakeSource{calls: calls}, at(1, 8, 0))
	assert.Len(t, r.Booked(context.Background()), 52)
}

func TestResolver_MalformedEntryKeepsPageBookings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calls":[{"call_date":"March 4, 2026","call_time":"4:00 PM"},{"call_date":null,"call_time":"4:15 PM"}],"has_next":false}`))
	}))
	defer server.Close()

	source := backend.New(config.BackendConfig{
		BaseURL:         server.URL,
		BookingsPath:    "/calls",
		BookingsPerPage: 50,
		MaxBookingPages: 5,
		Timeout:         2000,
	}, logger.NewTestLogger(t))
	r := testResolver(t, source, at(2, 8, 0))

	assert.True(t, r.Booked(context.Background()).Contains(at(4, 16, 0)))

	got := labels(r.Slots(context.Background(), at(4, 0, 0)))
	assert.Len(t, got, 17)
	assert.NotContains(t, got, "4:00 PM")
	assert.Contains(t, got, "4:15 PM")

	_, err := r.Validate(context.Background(), models.CallSlot{Date: "2026-03-04", Time: "4:00 PM"})
	stdErr, ok := apperrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeSlotUnavailable, stdErr.Code)
}

func TestResolver_Selectable(t *testing.T) {
	fullyBooked := &fakeSource{}
	for _, s := range testGrid(t).Candidates(at(5, 0, 0), at(2, 8, 0)) {
		fullyBooked.calls = append(fullyBooked.calls, models.BookedCall{
			CallDate: FormatCallDate(s.Instant),
			CallTime: s.Label,
		})
	}

	tests := []struct {
		name string
		now  time.Time
		day  time.Time
		want bool
	}{
		{"future weekday", at(2, 8, 0), at(4, 0, 0), true},
		{"tomorrow afternoon", at(2, 8, 0), at(3, 0, 0), true},
		{"sunday", at(2, 8, 0), at(8, 0, 0), false},
		{"yesterday", at(2, 8, 0), at(1, 0, 0), false},
		{"today too late", at(2, 16, 0), at(2, 0, 0), false},
		{"today early", at(2, 5, 0), at(2, 0, 0), true},
		{"fully booked", at(2, 8, 0), at(5, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testResolver(t, fullyBooked, tt.now)
			assert.Equal(t, tt.want, r.Selectable(context.Background(), tt.day))
		})
	}
}

func TestResolver_FirstAvailable(t *testing.T) {
	// Saturday evening: today is too late and tomorrow is Sunday.
	r := testResolver(t, &fakeSource{}, at(7, 20, 0))

	day, ok := r.FirstAvailable(context.Background())
	require.True(t, ok)
	assert.Equal(t, at(9, 0, 0), day)
}

func TestResolver_FirstAvailable_NoneInHorizon(t *testing.T) {
	r := NewResolver(testGrid(t), &fakeSource{}, 4*time.Hour, 0, logger.NewNoOpLogger()).
		WithClock(func() time.Time { return at(7, 20, 0) })

	_, ok := r.FirstAvailable(context.Background())
	assert.False(t, ok)
}

func TestResolver_FirstAvailable_HorizonIsExclusive(t *testing.T) {
	// Saturday evening: the first selectable day is Monday, two days out.
	tests := []struct {
		name    string
		horizon int
		found   bool
	}{
		{"today only", 1, false},
		{"stops before monday", 2, false},
		{"reaches monday", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testGrid(t), &fakeSource{}, 4*time.Hour, tt.horizon, logger.NewNoOpLogger()).
				WithClock(func() time.Time { return at(7, 20, 0) })

			day, ok := r.FirstAvailable(context.Background())
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, at(9, 0, 0), day)
			}
		})
	}
}

func TestResolver_Validate(t *testing.T) {
	source := &fakeSource{calls: []models.BookedCall{{CallDate: "March 4, 2026", CallTime: "9:30 AM"}}}

	tests := []struct {
		name string
		now  time.Time
		slot models.CallSlot
		code apperrors.ErrorCode
	}{
		{"valid", at(2, 8, 0), models.CallSlot{Date: "2026-03-04", Time: "9:15 AM"}, ""},
		{"lead time violated", at(4, 6, 0), models.CallSlot{Date: "2026-03-04", Time: "9:15 AM"}, apperrors.ErrCodeLeadTimeViolated},
		{"booked since selection", at(2, 8, 0), models.CallSlot{Date: "2026-03-04", Time: "9:30 AM"}, apperrors.ErrCodeSlotUnavailable},
		{"tomorrow morning", at(2, 1, 0), models.CallSlot{Date: "2026-03-03", Time: "9:00 AM"}, apperrors.ErrCodeSlotUnavailable},
		{"off grid", at(2, 8, 0), models.CallSlot{Date: "2026-03-04", Time: "9:07 AM"}, apperrors.ErrCodeSlotUnavailable},
		{"sunday", at(2, 8, 0), models.CallSlot{Date: "2026-03-08", Time: "9:00 AM"}, apperrors.ErrCodeSlotUnavailable},
		{"malformed", at(2, 8, 0), models.CallSlot{Date: "04/03/2026", Time: "9:00 AM"}, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testResolver(t, source, tt.now)
			slot, err := r.Validate(context.Background(), tt.slot)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.slot.Time, slot.Label)
				return
			}
			stdErr, ok := apperrors.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}
