package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "solar-funnel/internal/common/errors"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/models"
)

// jsonArg matches a SQL argument holding JSON equal to want.
type jsonArg struct {
	want string
}

func (a jsonArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var got, want interface{}
	if json.Unmarshal([]byte(s), &got) != nil || json.Unmarshal([]byte(a.want), &want) != nil {
		return false
	}
	return assert.ObjectsAreEqual(want, got)
}

// capturedArg matches any string argument and records it.
type capturedArg struct {
	value *string
}

func (a capturedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*a.value = s
	}
	return ok
}

func newPostgresStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(NewPostgresBackend(db), "s1", logger.NewTestLogger(t)), mock
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM session_answers`).
		WithArgs("s1", models.KeyFunnelStep).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`"personalization"`))

	step, found, err := FunnelStep.Load(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "personalization", step)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM session_answers`).
		WithArgs("s1", models.KeyFunnelStep).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, found, err := FunnelStep.Load(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Set(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectExec(`INSERT INTO session_answers`).
		WithArgs("s1", models.KeyBill, jsonArg{`{"tier":250,"source":"band","estimated":false}`}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := Bill.Save(context.Background(), s, models.BillAnswers{Tier: 250, Source: models.BillSourceBand})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MergeLocksRow(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("s1", models.KeyContact).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT value FROM session_answers .* FOR UPDATE`).
		WithArgs("s1", models.KeyContact).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"fullName":"Jo","email":"old@x.com"}`))
	mock.ExpectExec(`INSERT INTO session_answers`).
		WithArgs("s1", models.KeyContact, jsonArg{`{"fullName":"Jo","email":"new@x.com"}`}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := Contact.Merge(context.Background(), s, models.Contact{Email: "new@x.com"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MergeIntoMissingRow(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("s1", models.KeyContact).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("s1", models.KeyContact).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectExec(`INSERT INTO session_answers`).
		WithArgs("s1", models.KeyContact, jsonArg{`{"phone":"+353871234567"}`}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := Contact.Merge(context.Background(), s, models.Contact{Phone: "+353871234567"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MergeIsIdempotent(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		partial models.Contact
	}{
		{"into missing row", "", models.Contact{Phone: "+353871234567"}},
		{"overwrites one field", `{"fullName":"Jo","email":"old@x.com"}`, models.Contact{Email: "new@x.com"}},
		{"unchanged value", `{"fullName":"Jo"}`, models.Contact{FullName: "Jo"}},
	}

	expectMerge := func(mock sqlmock.Sqlmock, stored string, written *string) {
		rows := sqlmock.NewRows([]string{"value"})
		if stored != "" {
			rows.AddRow(stored)
		}
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs("s1", models.KeyContact).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("s1", models.KeyContact).
			WillReturnRows(rows)
		mock.ExpectExec(`INSERT INTO session_answers`).
			WithArgs("s1", models.KeyContact, capturedArg{written}).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newPostgresStore(t)
			ctx := context.Background()

			var once, twice string
			expectMerge(mock, tt.initial, &once)
			require.NoError(t, Contact.Merge(ctx, s, tt.partial))

			expectMerge(mock, once, &twice)
			require.NoError(t, Contact.Merge(ctx, s, tt.partial))

			require.NotEmpty(t, once)
			assert.JSONEq(t, once, twice)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_DeleteAndClear(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectExec(`DELETE FROM session_answers WHERE session_id = \$1 AND answer_key`).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM session_answers WHERE session_id = \$1$`).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, models.KeyPersonaliseAnswers, models.KeySelectedInstaller))
	require.NoError(t, s.Clear(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginFailure(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := Contact.Merge(context.Background(), s, models.Contact{Email: "a@b.ie"})
	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
