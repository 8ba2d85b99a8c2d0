// Package audit keeps an operational record of every transition attempt.
// It is a log, not a source of truth: entity state and transition legality
// stay with the workflow authority.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"
)

// Entry is one recorded transition attempt.
type Entry struct {
	ID           int64           `json:"id"`
	EntityID     string          `json:"entityId"`
	TransitionID string          `json:"transitionId"`
	Outcome      string          `json:"outcome"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store persists transition attempts in Postgres.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audit-store"}),
	}
}

// Record inserts one attempt.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := `INSERT INTO transition_audit (entity_id, transition_id, outcome, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	payload := e.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, query,
		e.EntityID, e.TransitionID, e.Outcome, []byte(payload), createdAt,
	); err != nil {
		return stderrors.NewAuditWriteFailedError(err)
	}
	return nil
}

// Trail returns the ordered attempt history for one entity, oldest first.
func (s *Store) Trail(ctx context.Context, entityID string) ([]Entry, error) {
	query := `SELECT id, entity_id, transition_id, outcome, payload, created_at
		FROM transition_audit WHERE entity_id = $1 ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EntityID, &e.TransitionID, &e.Outcome, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observer adapts the store to the controller's transition hook. A failed
// audit write never fails the transition; it is logged and dropped.
type Observer struct {
	store *Store
}

func NewObserver(store *Store) *Observer {
	return &Observer{store: store}
}

func (o *Observer) TransitionAttempted(ctx context.Context, entityID, transitionID string, payload schema.Payload, outcome string) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}

	if err := o.store.Record(ctx, Entry{
		EntityID:     entityID,
		TransitionID: transitionID,
		Outcome:      outcome,
		Payload:      data,
	}); err != nil {
		o.store.logger.Error("audit write failed", map[string]interface{}{
			"entityId":     entityID,
			"transitionId": transitionID,
			"error":        err.Error(),
		})
	}
}
