package workflow

import (
	"context"
	"testing"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/form"
	"ticketing-workflow/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedAttempt struct {
	entityID     string
	transitionID string
	outcome      string
}

type fakeObserver struct {
	attempts []recordedAttempt
}

func (o *fakeObserver) TransitionAttempted(_ context.Context, entityID, transitionID string, _ schema.Payload, outcome string) {
	o.attempts = append(o.attempts, recordedAttempt{entityID, transitionID, outcome})
}

func newController(t *testing.T, authority *fakeAuthority, opts ...Option) (*Controller, *Catalog) {
	t.Helper()
	catalog := NewCatalog(authority, logger.NewTestLogger(t))
	ctrl := NewController("TKT-001", catalog, authority, logger.NewTestLogger(t), opts...)
	t.Cleanup(ctrl.Close)
	return ctrl, catalog
}

func rejectAction() Action {
	return Action{ID: "reject", Label: "Tolak", RequireForm: schema.FieldList{
		{Name: "reason", Label: "Alasan", Type: schema.FieldTextarea, Required: true},
	}}
}

// ==========================
// Scenario Tests
// ==========================

// Scenario A: a form-less action executes straight through and reloads
// the catalog.
func TestController_FormlessAction(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	notified := 0
	ctrl, catalog := newController(t, authority, WithNotifier(func(string) { notified++ }))

	err := ctrl.SelectAction(context.Background(), Action{ID: "approve", Label: "Setujui"})
	require.NoError(t, err)

	assert.Equal(t, StateIdle, ctrl.State())
	assert.Equal(t, []string{"approve"}, authority.transitions)
	assert.Equal(t, 1, notified)
	assert.Len(t, catalog.Actions("TKT-001"), 2, "catalog reloaded after success")
	assert.Nil(t, ctrl.Session())
}

// Scenario B: a form-gated action blocks on an empty required field, then
// executes once the field is filled.
func TestController_FormGatedAction(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	ctrl, _ := newController(t, authority)

	require.NoError(t, ctrl.SelectAction(context.Background(), rejectAction()))
	assert.Equal(t, StateAwaitingForm, ctrl.State())

	session := ctrl.Session()
	require.NotNil(t, session)

	// Submitting with an empty reason fails validation and keeps the form.
	err := ctrl.Confirm(context.Background())
	assert.ErrorIs(t, err, form.ErrValidationFailed)
	assert.Equal(t, StateAwaitingForm, ctrl.State())
	assert.Contains(t, session.Errors(), "reason")
	assert.Empty(t, authority.transitions)

	require.NoError(t, session.SetValue("reason", "stok habis"))
	require.NoError(t, ctrl.Confirm(context.Background()))

	assert.Equal(t, StateIdle, ctrl.State())
	assert.Equal(t, []string{"reject"}, authority.transitions)
	assert.Nil(t, ctrl.Session())
}

func TestController_FormSessionIsFreshAtRoot(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	ctrl, _ := newController(t, authority)

	require.NoError(t, ctrl.SelectAction(context.Background(), rejectAction()))
	session := ctrl.Session()
	require.NotNil(t, session)

	require.NoError(t, session.SetValue("reason", "habis"))
	payload := session.Payload()
	assert.Equal(t, "habis", payload["reason"], "workflow action fields bind at payload root")
	assert.Len(t, payload, 1, "session starts from a fresh payload, not prior entity data")
}

// ==========================
// Transition/Failure Tests
// ==========================

func TestController_RemoteFailureWithFormKeepsData(t *testing.T) {
	authority := &fakeAuthority{
		actions:  approveRejectActions(),
		transErr: stderrors.NewTransitionRejectedError("Status tiket sudah berubah", 409),
	}
	ctrl, _ := newController(t, authority)

	require.NoError(t, ctrl.SelectAction(context.Background(), rejectAction()))
	session := ctrl.Session()
	require.NoError(t, session.SetValue("reason", "stok habis"))

	err := ctrl.Confirm(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status tiket sudah berubah")

	// Back in AwaitingForm with the same session and its data intact.
	assert.Equal(t, StateAwaitingForm, ctrl.State())
	assert.Same(t, session, ctrl.Session())
	v, ok := session.Value("reason")
	require.True(t, ok)
	assert.Equal(t, "stok habis", v)

	// Retry after the authority recovers.
	authority.mu.Lock()
	authority.transErr = nil
	authority.mu.Unlock()
	require.NoError(t, ctrl.Confirm(context.Background()))
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestController_RemoteFailureWithoutFormReturnsToIdle(t *testing.T) {
	authority := &fakeAuthority{
		actions:  approveRejectActions(),
		transErr: stderrors.NewTransitionRejectedError("", 500),
	}
	ctrl, catalog := newController(t, authority)
	catalog.Load(context.Background(), "TKT-001")

	err := ctrl.SelectAction(context.Background(), Action{ID: "approve", Label: "Setujui"})
	require.Error(t, err)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestController_AtMostOneOpenSession(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	ctrl, _ := newController(t, authority)

	require.NoError(t, ctrl.SelectAction(context.Background(), rejectAction()))
	err := ctrl.SelectAction(context.Background(), rejectAction())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StateAwaitingForm, ctrl.State())
}

func TestController_CancelDiscardsSession(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	ctrl, _ := newController(t, authority)

	require.NoError(t, ctrl.SelectAction(context.Background(), rejectAction()))
	require.NoError(t, ctrl.Cancel())

	assert.Equal(t, StateIdle, ctrl.State())
	assert.Nil(t, ctrl.Session())
	assert.Empty(t, authority.transitions)

	assert.ErrorIs(t, ctrl.Cancel(), ErrNoOpenForm)
}

func TestController_ObserverReceivesOutcomes(t *testing.T) {
	observer := &fakeObserver{}
	authority := &fakeAuthority{actions: approveRejectActions()}
	ctrl, _ := newController(t, authority, WithObserver(observer))

	require.NoError(t, ctrl.SelectAction(context.Background(), Action{ID: "approve", Label: "Setujui"}))

	require.Len(t, observer.attempts, 1)
	assert.Equal(t, recordedAttempt{"TKT-001", "approve", "success"}, observer.attempts[0])
}

func TestController_ClosedRejectsEvents(t *testing.T) {
	authority := &fakeAuthority{actions: approveRejectActions()}
	catalog := NewCatalog(authority, logger.NewTestLogger(t))
	ctrl := NewController("TKT-001", catalog, authority, logger.NewTestLogger(t))
	ctrl.Close()

	err := ctrl.SelectAction(context.Background(), Action{ID: "approve"})
	assert.ErrorIs(t, err, ErrControllerClosed)
	assert.ErrorIs(t, ctrl.Confirm(context.Background()), ErrControllerClosed)
}
