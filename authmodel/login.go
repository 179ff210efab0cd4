package authmodel

import (
	"fmt"
	"strings"
)

// DefaultMinPasswordLength is the shortest password the login form accepts.
const DefaultMinPasswordLength = 8

// Validate checks a login request before it is sent. The returned error is a
// *FieldError wrapping ErrInvalidCredentials.
func (lr LoginRequest) Validate(minPasswordLength int) error {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	identifier := strings.TrimSpace(lr.Identifier)
	if identifier == "" {
		return NewFieldError(FieldIdentifier, "username or email is required")
	}
	if strings.Contains(identifier, "@") && !looksLikeEmail(identifier) {
		return NewFieldError(FieldIdentifier, "invalid email address")
	}
	if lr.Password == "" {
		return NewFieldError(FieldPassword, "password is required")
	}
	if len(lr.Password) < minPasswordLength {
		return NewFieldError(FieldPassword, fmt.Sprintf("password must be at least %d characters long", minPasswordLength))
	}
	return nil
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
