// Package workflow talks to the external workflow authority and drives the
// action-selection/execution flow for one entity.
package workflow

import "ticketing-workflow/internal/schema"

// Action is one transition offered to the current viewer for one entity.
// Actions are fetched fresh per entity state and never cached across
// transitions: the available set is a function of the state that just
// changed.
type Action struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Variant     string           `json:"variant,omitempty"`
	RequireForm schema.FieldList `json:"require_form,omitempty"`
}

// NeedsForm reports whether selecting this action must open a form session
// before the transition can be executed.
func (a Action) NeedsForm() bool {
	return len(a.RequireForm) > 0
}
