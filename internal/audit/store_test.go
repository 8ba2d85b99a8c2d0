package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestStore_Record(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectExec("INSERT INTO transition_audit").
		WithArgs("TKT-001", "reject", "success", []byte(`{"reason":"stok habis"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), Entry{
		EntityID:     "TKT-001",
		TransitionID: "reject",
		Outcome:      "success",
		Payload:      json.RawMessage(`{"reason":"stok habis"}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordFailureIsRetryable(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectExec("INSERT INTO transition_audit").
		WillReturnError(errors.New("connection reset"))

	err := store.Record(context.Background(), Entry{
		EntityID:     "TKT-001",
		TransitionID: "approve",
		Outcome:      "failure",
	})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAuditWriteFailed, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err))
}

func TestStore_Trail(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewTestLogger(t))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "entity_id", "transition_id", "outcome", "payload", "created_at"}).
		AddRow(int64(1), "TKT-001", "submit", "success", []byte(`{}`), now.Add(-time.Hour)).
		AddRow(int64(2), "TKT-001", "reject", "failure", []byte(`{"reason":"x"}`), now)

	mock.ExpectQuery("SELECT id, entity_id, transition_id, outcome, payload, created_at").
		WithArgs("TKT-001").
		WillReturnRows(rows)

	entries, err := store.Trail(context.Background(), "TKT-001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "submit", entries[0].TransitionID)
	assert.Equal(t, "reject", entries[1].TransitionID)
	assert.Equal(t, json.RawMessage(`{"reason":"x"}`), entries[1].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObserver_RecordsAttempt(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewTestLogger(t))
	observer := NewObserver(store)

	mock.ExpectExec("INSERT INTO transition_audit").
		WithArgs("TKT-001", "approve", "success", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	observer.TransitionAttempted(context.Background(), "TKT-001", "approve", schema.Payload{}, "success")
	assert.NoError(t, mock.ExpectationsWereMet())
}
