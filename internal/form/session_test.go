package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func reasonSchema() schema.FieldList {
	return schema.FieldList{
		{Name: "reason", Label: "Alasan", Type: schema.FieldTextarea, Required: true},
	}
}

func openSession(t *testing.T, list schema.FieldList, prefix string) *Session {
	t.Helper()
	s, err := Open(list, prefix, nil, logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// ==========================
// Lifecycle Tests
// ==========================

func TestSession_OpensIdle(t *testing.T) {
	s := openSession(t, reasonSchema(), "")
	assert.Equal(t, StatusIdle, s.Status())
	assert.NotEmpty(t, s.ID())
	assert.Len(t, s.Fields(), 1)
}

func TestSession_SetValueClearsFieldError(t *testing.T) {
	s := openSession(t, reasonSchema(), "")

	ok, errs := s.Validate()
	require.False(t, ok)
	require.Contains(t, errs, "reason")
	assert.Equal(t, "Alasan wajib diisi", errs["reason"].Message)

	require.NoError(t, s.SetValue("reason", "stok habis"))
	assert.Empty(t, s.Errors())

	ok, _ = s.Validate()
	assert.True(t, ok)
}

func TestSession_SetValueUnknownField(t *testing.T) {
	s := openSession(t, reasonSchema(), "")
	err := s.SetValue("nope", "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSession_CoercionErrorRecorded(t *testing.T) {
	list := schema.FieldList{
		{Name: "amount", Label: "Jumlah", Type: schema.FieldNumber, Required: true},
	}
	s := openSession(t, list, "ticket_data")

	err := s.SetValue("amount", "abc")
	require.Error(t, err)

	errs := s.Errors()
	require.Contains(t, errs, "amount")
	assert.Equal(t, schema.ErrKindCoercion, errs["amount"].Kind)

	// The coercion error blocks submission until the value is corrected.
	err = s.Submit(context.Background(), func(context.Context, schema.Payload) error { return nil })
	assert.ErrorIs(t, err, ErrValidationFailed)

	require.NoError(t, s.SetValue("amount", "42"))
	v, ok := s.Value("amount")
	require.True(t, ok)
	assert.Equal(t, float64(42), v)
}

// ==========================
// Submission Tests
// ==========================

func TestSession_SubmitHappyPath(t *testing.T) {
	s := openSession(t, reasonSchema(), "dynamic_form_data")
	require.NoError(t, s.SetValue("reason", "stok habis"))

	calls := 0
	err := s.Submit(context.Background(), func(_ context.Context, p schema.Payload) error {
		calls++
		block := p["dynamic_form_data"].(map[string]interface{})
		assert.Equal(t, "stok habis", block["reason"])
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusSucceeded, s.Status())
}

func TestSession_SubmitBlockedByValidation(t *testing.T) {
	s := openSession(t, reasonSchema(), "")

	calls := 0
	err := s.Submit(context.Background(), func(context.Context, schema.Payload) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Zero(t, calls, "submit fn must not run when validation fails")
	assert.Equal(t, StatusIdle, s.Status())
	assert.Contains(t, s.Errors(), "reason")
}

func TestSession_FailureKeepsDataForRetry(t *testing.T) {
	s := openSession(t, reasonSchema(), "")
	require.NoError(t, s.SetValue("reason", "stok habis"))

	boom := errors.New("authority rejected")
	err := s.Submit(context.Background(), func(context.Context, schema.Payload) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, s.Status())

	// Data survives the failure and a retry succeeds.
	v, ok := s.Value("reason")
	require.True(t, ok)
	assert.Equal(t, "stok habis", v)

	err = s.Submit(context.Background(), func(context.Context, schema.Payload) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, s.Status())
}

func TestSession_NoDoubleSubmit(t *testing.T) {
	s := openSession(t, reasonSchema(), "")
	require.NoError(t, s.SetValue("reason", "ok"))

	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Submit(context.Background(), func(context.Context, schema.Payload) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := s.Submit(context.Background(), func(context.Context, schema.Payload) error { return nil })
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(release)
	wg.Wait()
	assert.Equal(t, StatusSucceeded, s.Status())
}

func TestSession_BooleanRequiredNeverBlocks(t *testing.T) {
	list := schema.FieldList{
		{Name: "urgent", Label: "Mendesak", Type: schema.FieldBoolean, Required: true},
	}
	s := openSession(t, list, "")

	// Unset boolean submits fine (legacy-compat rule).
	err := s.Submit(context.Background(), func(context.Context, schema.Payload) error { return nil })
	require.NoError(t, err)

	s2 := openSession(t, list, "")
	require.NoError(t, s2.SetValue("urgent", false))
	err = s2.Submit(context.Background(), func(_ context.Context, p schema.Payload) error {
		assert.Equal(t, false, p["urgent"])
		return nil
	})
	require.NoError(t, err)
}

func TestSession_SelectScenario(t *testing.T) {
	list := schema.FieldList{
		{Name: "kategori", Label: "Kategori", Type: schema.FieldSelect, Required: true, Options: []string{"A", "B"}},
	}
	s := openSession(t, list, "")

	ok, errs := s.Validate()
	require.False(t, ok)
	assert.Equal(t, schema.ErrKindRequired, errs["kategori"].Kind)

	require.NoError(t, s.SetValue("kategori", "B"))
	ok, _ = s.Validate()
	require.True(t, ok)

	v, _ := s.Value("kategori")
	assert.Equal(t, "B", v)
}

func TestSession_ClosedRejectsUse(t *testing.T) {
	s, err := Open(reasonSchema(), "", nil, logger.NewNoOpLogger())
	require.NoError(t, err)
	s.Close()
	s.Close() // idempotent

	assert.ErrorIs(t, s.SetValue("reason", "x"), ErrSessionClosed)
	assert.ErrorIs(t, s.Submit(context.Background(), func(context.Context, schema.Payload) error { return nil }), ErrSessionClosed)
}
