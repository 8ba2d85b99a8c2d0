// Package schema holds the field descriptors served by the service
// directory and the interpreter that turns them into bound, validated
// slots inside a submission payload.
package schema

import "fmt"

// FieldType enumerates the supported input kinds.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
)

// Valid reports whether t is one of the six supported kinds.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldTextarea, FieldBoolean, FieldDate, FieldSelect:
		return true
	}
	return false
}

// Field is an immutable descriptor of one input field. Options is required
// and non-empty only for select fields; other kinds ignore it.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// HasOption reports whether v is one of the declared options.
func (f Field) HasOption(v string) bool {
	for _, opt := range f.Options {
		if opt == v {
			return true
		}
	}
	return false
}

// FieldList is an ordered field sequence; order is display/tab order.
type FieldList []Field

// Check verifies structural invariants: names non-empty and unique within
// the list, types known, and select fields carrying at least one option.
// Duplicate names would silently collapse to a single payload key, so the
// whole list is rejected instead.
func (l FieldList) Check() error {
	seen := make(map[string]struct{}, len(l))
	for _, f := range l {
		if f.Name == "" {
			return fmt.Errorf("field with empty name (label %q)", f.Label)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Find returns the field with the given name.
func (l FieldList) Find(name string) (Field, bool) {
	for _, f := range l {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
