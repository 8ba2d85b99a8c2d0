// Package form owns the mutable state of one in-progress form instance:
// working payload, per-field error map, and submission lifecycle.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ticketing-workflow/internal/common/logger"
	"ticketing-workflow/internal/common/metrics"
	"ticketing-workflow/internal/schema"

	"github.com/google/uuid"
)

// Status is the submission lifecycle of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var (
	// ErrSubmitInFlight rejects a second Submit while one is running.
	ErrSubmitInFlight = errors.New("submit already in flight")
	// ErrValidationFailed blocks submission; per-field messages are in
	// the session's error map, never surfaced as a toast.
	ErrValidationFailed = errors.New("form validation failed")
	// ErrUnknownField rejects writes to names outside the bound schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrSessionClosed rejects use after the session was discarded.
	ErrSessionClosed = errors.New("session closed")
)

// SubmitFunc performs the actual submission, typically a transition POST.
// It is invoked exactly once per successful validation pass.
type SubmitFunc func(ctx context.Context, payload schema.Payload) error

// Session is the working state of one open form. It owns its payload copy;
// nothing else mutates it. One session belongs to one host view.
type Session struct {
	mu sync.Mutex

	id      string
	list    schema.FieldList
	prefix  string
	payload schema.Payload
	bound   map[string]*schema.BoundField
	order   []string
	errs    map[string]*schema.FieldError
	status  Status
	dirty   bool
	closed  bool
	log     logger.Logger
}

// Open creates a session in idle state. initial seeds the working payload;
// pass nil for a fresh root, the dynamic-action case. Initial field values
// inside the seed are left as provided and only coerced when touched.
func Open(list schema.FieldList, prefix string, initial schema.Payload, log logger.Logger) (*Session, error) {
	payload := schema.Payload{}
	if initial != nil {
		payload = initial.Clone()
	}

	bound, err := schema.Interpreter{}.Bind(list, prefix, payload)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		list:    list,
		prefix:  prefix,
		payload: payload,
		bound:   make(map[string]*schema.BoundField, len(bound)),
		order:   make([]string, 0, len(bound)),
		errs:    make(map[string]*schema.FieldError),
		status:  StatusIdle,
		log:     log.WithFields(map[string]interface{}{"sessionId": id}),
	}

	for i := range bound {
		b := &bound[i]
		s.bound[b.Field.Name] = b
		s.order = append(s.order, b.Field.Name)
	}

	metrics.ActiveSessions.Inc()
	return s, nil
}

// ID returns the session's correlation id.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Fields returns the bound fields in display order.
func (s *Session) Fields() []schema.Field {
	out := make([]schema.Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.bound[name].Field)
	}
	return out
}

// SetValue coerces and stores one field value, clearing that field's
// previous error. A coercion failure is recorded in the error map and
// returned; the previous stored value is left untouched.
func (s *Session) SetValue(name string, raw interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	b, ok := s.bound[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	delete(s.errs, name)
	if ferr := b.Set(raw); ferr != nil {
		s.errs[name] = ferr
		return ferr
	}
	s.dirty = true
	return nil
}

// Value reads the stored, coerced value of one field.
func (s *Session) Value(name string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bound[name]
	if !ok {
		return nil, false
	}
	return b.Value()
}

// Validate runs the required-field rule over every bound field and returns
// whether the session may be submitted. The error map is rebuilt, keeping
// coercion errors already attached to untouched fields.
func (s *Session) Validate() (bool, map[string]*schema.FieldError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Session) validateLocked() (bool, map[string]*schema.FieldError) {
	for _, name := range s.order {
		b := s.bound[name]
		if existing, ok := s.errs[name]; ok && existing.Kind == schema.ErrKindCoercion {
			continue
		}
		if ferr := b.Validate(); ferr != nil {
			s.errs[name] = ferr
			metrics.ValidationFailures.WithLabelValues(string(b.Field.Type)).Inc()
		} else {
			delete(s.errs, name)
		}
	}

	out := make(map[string]*schema.FieldError, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return len(out) == 0, out
}

// Errors returns a copy of the current error map.
func (s *Session) Errors() map[string]*schema.FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*schema.FieldError, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

// Payload returns a copy of the working payload.
func (s *Session) Payload() schema.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload.Clone()
}

// Submit validates and, only on a clean pass, invokes fn exactly once.
// A failed submission keeps all values so the user can correct and retry;
// the session is never discarded here.
func (s *Session) Submit(ctx context.Context, fn SubmitFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status == StatusSubmitting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}

	ok, _ := s.validateLocked()
	if !ok {
		s.mu.Unlock()
		return ErrValidationFailed
	}

	s.status = StatusSubmitting
	payload := s.payload.Clone()
	s.mu.Unlock()

	err := fn(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = StatusFailed
		s.log.Warn("form submission failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	s.status = StatusSucceeded
	return nil
}

// Close discards the session. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	metrics.ActiveSessions.Dec()
}
