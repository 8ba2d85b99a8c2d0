package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	stderrors "ticketing-workflow/internal/common/errors"
	"ticketing-workflow/internal/common/httpclient"
	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/schema"
)

// Authority is the external service of record that decides legal
// transitions and persists entity state. The engine only renders what the
// authority says is available and forwards user input faithfully.
type Authority interface {
	Actions(ctx context.Context, entityID string) ([]Action, error)
	Transition(ctx context.Context, entityID, transitionID string, payload schema.Payload) error
}

// Client is the REST client for the workflow authority.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  logger.Logger
}

func NewClient(baseURL string, hc *httpclient.Client, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    hc,
		logger:  log.WithFields(map[string]interface{}{"component": "authority-client"}),
	}
}

// Actions fetches the ordered action list for one entity and the current
// viewer.
func (c *Client) Actions(ctx context.Context, entityID string) ([]Action, error) {
	endpoint := fmt.Sprintf("%s/entities/%s/actions", c.baseURL, url.PathEscape(entityID))

	var actions []Action
	if err := c.http.GetJSON(ctx, endpoint, &actions); err != nil {
		return nil, stderrors.NewCatalogUnavailableError(err)
	}
	return actions, nil
}

// Transition submits a (possibly empty) payload to advance the entity.
// A non-2xx response surfaces the authority's own message verbatim when it
// provided one.
func (c *Client) Transition(ctx context.Context, entityID, transitionID string, payload schema.Payload) error {
	endpoint := fmt.Sprintf("%s/entities/%s/transitions/%s",
		c.baseURL, url.PathEscape(entityID), url.PathEscape(transitionID))

	if payload == nil {
		payload = schema.Payload{}
	}

	err := c.http.PostJSON(ctx, endpoint, payload, nil)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return stderrors.NewTransitionRejectedError(statusErr.Message(), statusErr.StatusCode)
	}

	c.logger.Error("transition request failed", map[string]interface{}{
		"entityId":     entityID,
		"transitionId": transitionID,
		"error":        err.Error(),
	})
	return stderrors.NewTransitionRejectedError("", 0)
}
