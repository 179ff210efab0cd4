package authmodel

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidCredentials is user-correctable: wrong identifier or password, or
	// input that fails local validation.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork is transient: the backend could not be reached or failed.
	ErrNetwork = errors.New("network error")
	// ErrRefreshFailure is session-fatal: the refresh token was rejected.
	ErrRefreshFailure = errors.New("refresh failed")
	// ErrDecode marks a token that could not be decoded.
	ErrDecode = errors.New("token decode failed")
)

// Field names a login form field an error is attached to.
type Field string

const (
	FieldIdentifier Field = "identifier"
	FieldPassword   Field = "password"
	FieldForm       Field = "form"
)

// FieldError is a login error tagged with the form field it belongs to.
type FieldError struct {
	Field   Field
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NewFieldError builds an ErrInvalidCredentials-class error for field.
func NewFieldError(field Field, message string) *FieldError {
	return &FieldError{Field: field, Message: message, Err: ErrInvalidCredentials}
}

// FieldErrors converts an API error body into field errors. Unknown field
// names are attached to the form.
func FieldErrors(resp ErrorResponse) []*FieldError {
	names := make([]string, 0, len(resp.Fields))
	for name := range resp.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*FieldError
	for _, name := range names {
		msg := resp.Fields[name]
		f := Field(name)
		switch f {
		case FieldIdentifier, FieldPassword:
		default:
			f = FieldForm
		}
		out = append(out, NewFieldError(f, msg))
	}
	return out
}

// FieldOf returns the field an error is attached to, or FieldForm when the
// error carries no field.
func FieldOf(err error) Field {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return FieldForm
}
