package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for date fields. Display formatting is a
// host-view concern and never changes the stored value.
const DateLayout = "2006-01-02"

// FieldErrorKind classifies a per-field validation failure.
type FieldErrorKind string

const (
	// ErrKindRequired marks a required field left empty at submit time.
	ErrKindRequired FieldErrorKind = "required"
	// ErrKindCoercion marks input that cannot be converted to the
	// declared type, e.g. non-numeric text in a number field.
	ErrKindCoercion FieldErrorKind = "coercion"
	// ErrKindNoValidOption marks a select field whose schema carries zero
	// options: no valid value can ever be chosen. Distinct from a value
	// that simply has not been chosen yet.
	ErrKindNoValidOption FieldErrorKind = "no_valid_option"
)

// FieldError is one entry in a form session's error map.
type FieldError struct {
	Field   string         `json:"field"`
	Kind    FieldErrorKind `json:"kind"`
	Message string         `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requiredError(f Field) *FieldError {
	return &FieldError{
		Field:   f.Name,
		Kind:    ErrKindRequired,
		Message: fmt.Sprintf("%s wajib diisi", f.Label),
	}
}

func coercionError(f Field, message string) *FieldError {
	return &FieldError{
		Field:   f.Name,
		Kind:    ErrKindCoercion,
		Message: message,
	}
}

func noValidOptionError(f Field) *FieldError {
	return &FieldError{
		Field:   f.Name,
		Kind:    ErrKindNoValidOption,
		Message: fmt.Sprintf("%s tidak memiliki pilihan yang valid", f.Label),
	}
}

// Coerce converts raw user input into the stored representation for f.
// present=false means the input coerces to the unset state: the value is
// removed from the payload rather than stored as a zero. Invalid input
// yields a FieldError; nothing in this package ever stores NaN.
func Coerce(f Field, raw interface{}) (value interface{}, present bool, ferr *FieldError) {
	switch f.Type {
	case FieldText, FieldTextarea:
		// Literal string, no trimming.
		s, ok := raw.(string)
		if !ok {
			if raw == nil {
				return nil, false, nil
			}
			return nil, false, coercionError(f, fmt.Sprintf("%s harus berupa teks", f.Label))
		}
		if s == "" {
			return nil, false, nil
		}
		return s, true, nil

	case FieldNumber:
		switch v := raw.(type) {
		case nil:
			return nil, false, nil
		case float64:
			return v, true, nil
		case int:
			return float64(v), true, nil
		case int64:
			return float64(v), true, nil
		case string:
			if v == "" {
				// Empty input means unset, never zero.
				return nil, false, nil
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, false, coercionError(f, fmt.Sprintf("%s harus berupa angka", f.Label))
			}
			return n, true, nil
		default:
			return nil, false, coercionError(f, fmt.Sprintf("%s harus berupa angka", f.Label))
		}

	case FieldBoolean:
		switch v := raw.(type) {
		case nil:
			// Absent renders as unchecked.
			return false, true, nil
		case bool:
			return v, true, nil
		default:
			return nil, false, coercionError(f, fmt.Sprintf("%s harus berupa ya/tidak", f.Label))
		}

	case FieldDate:
		s, ok := raw.(string)
		if !ok {
			if raw == nil {
				return nil, false, nil
			}
			return nil, false, coercionError(f, fmt.Sprintf("%s harus berupa tanggal", f.Label))
		}
		if s == "" {
			return nil, false, nil
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, false, coercionError(f, fmt.Sprintf("format tanggal %s tidak valid", f.Label))
		}
		return s, true, nil

	case FieldSelect:
		s, ok := raw.(string)
		if !ok {
			if raw == nil {
				return nil, false, nil
			}
			return nil, false, coercionError(f, fmt.Sprintf("%s bukan pilihan yang valid", f.Label))
		}
		if s == "" {
			return nil, false, nil
		}
		if !f.HasOption(s) {
			return nil, false, coercionError(f, fmt.Sprintf("%s bukan pilihan yang valid", f.Label))
		}
		return s, true, nil
	}

	return nil, false, coercionError(f, fmt.Sprintf("tipe field %s tidak dikenal", f.Name))
}

// ValidateRequired applies the required-field rule against the stored value.
// Boolean fields are exempt even when flagged required, a legacy-compat rule
// that callers rely on. A select field without options fails with a distinct
// no-valid-option error regardless of stored state.
func ValidateRequired(f Field, value interface{}, present bool) *FieldError {
	if f.Type == FieldSelect && len(f.Options) == 0 {
		if f.Required {
			return noValidOptionError(f)
		}
		return nil
	}

	if !f.Required || f.Type == FieldBoolean {
		return nil
	}

	if !present || value == nil {
		return requiredError(f)
	}
	if s, ok := value.(string); ok && s == "" {
		return requiredError(f)
	}
	return nil
}

// BoundField is one editable slot produced by the interpreter: the field
// descriptor plus its read/write path inside a payload.
type BoundField struct {
	Field   Field
	prefix  string
	payload Payload
}

// Path returns the dotted read/write path, e.g. "dynamic_form_data.reason".
func (b *BoundField) Path() string {
	if b.prefix == "" {
		return b.Field.Name
	}
	return b.prefix + "." + b.Field.Name
}

// Set coerces raw and stores it. An unset coercion result deletes the slot.
func (b *BoundField) Set(raw interface{}) *FieldError {
	value, present, ferr := Coerce(b.Field, raw)
	if ferr != nil {
		return ferr
	}
	if !present {
		b.payload.DeleteField(b.prefix, b.Field.Name)
		return nil
	}
	b.payload.SetField(b.prefix, b.Field.Name, value)
	return nil
}

// Value reads the current stored value.
func (b *BoundField) Value() (interface{}, bool) {
	return b.payload.GetField(b.prefix, b.Field.Name)
}

// Validate applies the required rule to the current stored value.
func (b *BoundField) Validate() *FieldError {
	value, present := b.Value()
	return ValidateRequired(b.Field, value, present)
}

// Interpreter binds a field list into a payload at a caller-supplied
// prefix. It has no state of its own; all mutation goes through the
// payload handed in by the owning form session.
type Interpreter struct{}

// Bind produces one bound slot per field, in list order. An empty or nil
// list binds zero slots and is not an error. A structurally broken list
// (duplicate names, unknown types) is rejected as a whole.
func (Interpreter) Bind(list FieldList, prefix string, p Payload) ([]BoundField, error) {
	if len(list) == 0 {
		return nil, nil
	}
	if err := list.Check(); err != nil {
		return nil, err
	}
	if strings.Contains(prefix, ".") {
		return nil, fmt.Errorf("prefix %q must be a single key", prefix)
	}

	bound := make([]BoundField, 0, len(list))
	for _, f := range list {
		bound = append(bound, BoundField{Field: f, prefix: prefix, payload: p})
	}
	return bound, nil
}
