package workflow

import (
	"context"
	"sync"

	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/common/metrics"
)

// Catalog holds the last known action list per entity and guards against
// the two ordering hazards of single-shot async fetches: overlapping loads
// for the same entity, and a slow response landing after the entity has
// already moved on.
type Catalog struct {
	authority Authority
	logger    logger.Logger

	mu       sync.Mutex
	inflight map[string]bool
	gen      map[string]uint64
	actions  map[string][]Action
}

func NewCatalog(authority Authority, log logger.Logger) *Catalog {
	return &Catalog{
		authority: authority,
		logger:    log.WithFields(map[string]interface{}{"component": "action-catalog"}),
		inflight:  make(map[string]bool),
		gen:       make(map[string]uint64),
		actions:   make(map[string][]Action),
	}
}

// Load fetches the ordered action list for one entity. A fetch failure
// degrades to an empty list: no actions is a safe, inert result for the
// host view, so the error is logged and swallowed. A Load issued while
// another is in flight for the same entity is a no-op returning the last
// known list.
func (c *Catalog) Load(ctx context.Context, entityID string) []Action {
	c.mu.Lock()
	if c.inflight[entityID] {
		known := c.actions[entityID]
		c.mu.Unlock()
		return known
	}
	c.inflight[entityID] = true
	issuedGen := c.gen[entityID]
	c.mu.Unlock()

	actions, err := c.authority.Actions(ctx, entityID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[entityID] = false

	// The entity transitioned while this fetch was in flight; the
	// response describes a state that no longer exists.
	if c.gen[entityID] != issuedGen {
		c.logger.Debug("discarding stale catalog response", map[string]interface{}{
			"entityId": entityID,
		})
		return c.actions[entityID]
	}

	if err != nil {
		c.logger.Warn("catalog load failed, degrading to empty action set", map[string]interface{}{
			"entityId": entityID,
			"error":    err.Error(),
		})
		metrics.CatalogLoads.WithLabelValues("error").Inc()
		c.actions[entityID] = nil
		return nil
	}

	metrics.CatalogLoads.WithLabelValues("success").Inc()
	c.actions[entityID] = actions
	return actions
}

// Actions returns the last known list without fetching.
func (c *Catalog) Actions(entityID string) []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[entityID]
}

// Invalidate marks the entity's cached list as stale, bumping the
// generation so any in-flight response for the old state is discarded.
// Called after every successful transition, before the mandatory reload.
func (c *Catalog) Invalidate(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[entityID]++
	delete(c.actions, entityID)
}
