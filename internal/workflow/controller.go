package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/common/metrics"
	"ticketing-workflow/internal/form"
	"ticketing-workflow/internal/schema"
)

// State is the controller's position in the action-execution flow.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingForm State = "awaiting_form"
	StateExecuting    State = "executing"
	StateSettled      State = "settled"
)

var (
	// ErrBusy rejects events that are illegal in the current state, e.g.
	// selecting a second action while one is executing.
	ErrBusy = errors.New("controller busy")
	// ErrNoOpenForm rejects Confirm/Cancel without an open session.
	ErrNoOpenForm = errors.New("no form session open")
	// ErrControllerClosed rejects use after the host view went away.
	ErrControllerClosed = errors.New("controller closed")
)

// Notifier is invoked after every successful transition so the host view
// can refresh itself.
type Notifier func(entityID string)

// TransitionObserver receives every transition attempt, successful or not.
// The audit trail hangs off this hook.
type TransitionObserver interface {
	TransitionAttempted(ctx context.Context, entityID, transitionID string, payload schema.Payload, outcome string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier registers the host's "updated" callback.
func WithNotifier(fn Notifier) Option {
	return func(c *Controller) { c.notify = fn }
}

// WithObserver registers a transition observer.
func WithObserver(o TransitionObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller drives the action area of one entity view: pick an action,
// collect form input when the action demands it, submit the transition,
// and reload the catalog afterwards. Exactly one controller exists per
// host view instance; at most one form session is open at a time.
type Controller struct {
	entityID  string
	catalog   *Catalog
	authority Authority
	logger    logger.Logger
	notify    Notifier
	observer  TransitionObserver

	mu      sync.Mutex
	state   State
	session *form.Session
	action  *Action
	closed  bool
}

func NewController(entityID string, catalog *Catalog, authority Authority, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		entityID:  entityID,
		catalog:   catalog,
		authority: authority,
		logger: log.WithFields(map[string]interface{}{
			"component": "action-controller",
			"entityId":  entityID,
		}),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the open form session, if any.
func (c *Controller) Session() *form.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SelectAction begins the flow for one action. A form-bearing action opens
// a fresh session bound at the payload root, never pre-filled from prior
// entity data. An action without a form executes immediately with a
// minimal payload.
func (c *Controller) SelectAction(ctx context.Context, a Action) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}

	if a.NeedsForm() {
		session, err := form.Open(a.RequireForm, "", nil, c.logger)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.session = session
		action := a
		c.action = &action
		c.state = StateAwaitingForm
		c.mu.Unlock()
		return nil
	}

	action := a
	c.action = &action
	c.state = StateExecuting
	c.mu.Unlock()

	return c.execute(ctx, a, schema.Payload{})
}

// Confirm submits the open form. Validation failure keeps the controller
// in AwaitingForm with errors on the session; a remote rejection also
// returns here so the user can retry without re-entering data.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state != StateAwaitingForm || c.session == nil {
		c.mu.Unlock()
		return ErrNoOpenForm
	}
	session := c.session
	action := *c.action
	c.state = StateExecuting
	c.mu.Unlock()

	start := time.Now()
	err := session.Submit(ctx, func(ctx context.Context, payload schema.Payload) error {
		return c.authority.Transition(ctx, c.entityID, action.ID, payload)
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}

	if err != nil {
		// Validation and remote failures both return to the form so the
		// user's input is never lost.
		c.state = StateAwaitingForm
		c.mu.Unlock()

		if !errors.Is(err, form.ErrValidationFailed) {
			c.recordTransition(ctx, action, session.Payload(), "failure", start)
		}
		return err
	}

	c.session = nil
	c.action = nil
	c.mu.Unlock()

	c.recordTransition(ctx, action, session.Payload(), "success", start)
	session.Close()
	c.settle(ctx)
	return nil
}

// Cancel discards the open form session without side effects.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingForm || c.session == nil {
		return ErrNoOpenForm
	}
	c.session.Close()
	c.session = nil
	c.action = nil
	c.state = StateIdle
	return nil
}

// Close detaches the controller from its host view. In-flight responses
// arriving afterwards are dropped rather than acted on.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.state = StateIdle
}

// execute runs a form-less transition.
func (c *Controller) execute(ctx context.Context, a Action, payload schema.Payload) error {
	start := time.Now()
	err := c.authority.Transition(ctx, c.entityID, a.ID, payload)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}

	if err != nil {
		c.state = StateIdle
		c.action = nil
		c.mu.Unlock()
		c.recordTransition(ctx, a, payload, "failure", start)
		return err
	}

	c.action = nil
	c.mu.Unlock()

	c.recordTransition(ctx, a, payload, "success", start)
	c.settle(ctx)
	return nil
}

// settle is the transient Settled state: reload the catalog for the new
// entity state, notify the host, and return to Idle.
func (c *Controller) settle(ctx context.Context) {
	c.mu.Lock()
	c.state = StateSettled
	c.mu.Unlock()

	c.catalog.Invalidate(c.entityID)
	c.catalog.Load(ctx, c.entityID)

	if c.notify != nil {
		c.notify(c.entityID)
	}

	c.mu.Lock()
	if !c.closed {
		c.state = StateIdle
	}
	c.mu.Unlock()
}

func (c *Controller) recordTransition(ctx context.Context, a Action, payload schema.Payload, outcome string, start time.Time) {
	elapsed := time.Since(start)
	metrics.TransitionsExecuted.WithLabelValues(outcome).Inc()
	metrics.TransitionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if c.observer != nil {
		c.observer.TransitionAttempted(ctx, c.entityID, a.ID, payload, outcome)
	}

	c.logger.Info("transition attempt recorded", map[string]interface{}{
		"transitionId": a.ID,
		"outcome":      outcome,
		"durationMs":   elapsed.Milliseconds(),
	})
}
