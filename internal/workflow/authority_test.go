package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/httpclient"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, httpclient.NewClient(5*time.Second), logger.NewTestLogger(t))
}

func TestClient_Actions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/entities/TKT-001/actions", r.URL.Path)

		_ = json.NewEncoder(w).Encode([]Action{
			{ID: "approve", Label: "Setujui", Variant: "primary"},
			{ID: "reject", Label: "Tolak", Variant: "danger", RequireForm: schema.FieldList{
				{Name: "reason", Label: "Alasan", Type: schema.FieldTextarea, Required: true},
			}},
		})
	})

	actions, err := client.Actions(context.Background(), "TKT-001")
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, "approve", actions[0].ID)
	assert.False(t, actions[0].NeedsForm())
	assert.True(t, actions[1].NeedsForm())
}

func TestClient_Actions_FetchFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Actions(context.Background(), "TKT-001")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeCatalogUnavailable, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err))
}

func TestClient_Transition_Success(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/entities/TKT-001/transitions/reject", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	})

	payload := schema.Payload{"reason": "stok habis"}
	err := client.Transition(context.Background(), "TKT-001", "reject", payload)
	require.NoError(t, err)
	assert.Equal(t, "stok habis", received["reason"])
}

func TestClient_Transition_RejectedMessageVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "Tiket sudah diproses oleh pengguna lain",
		})
	})

	err := client.Transition(context.Background(), "TKT-001", "approve", nil)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTransitionRejected, stderrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Tiket sudah diproses oleh pengguna lain")
}

func TestClient_Transition_RejectedWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := client.Transition(context.Background(), "TKT-001", "approve", nil)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTransitionRejected, stderrors.CodeOf(err))
}
