package authmodel_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/stretchr/testify/require"
)

func TestLoginRequest_Validate(t *testing.T) {
	t.Run("valid email", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "user@example.com", Password: "password123"}.Validate(8)
		require.NoError(t, err)
	})

	t.Run("valid username", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "admin", Password: "password123"}.Validate(8)
		require.NoError(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "user@example.com", Password: "short"}.Validate(8)
		require.Error(t, err)
		require.True(t, errors.Is(err, authmodel.ErrInvalidCredentials))
		require.Equal(t, authmodel.FieldPassword, authmodel.FieldOf(err))
		require.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("empty identifier", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "  ", Password: "password123"}.Validate(8)
		require.Equal(t, authmodel.FieldIdentifier, authmodel.FieldOf(err))
	})

	t.Run("malformed email", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "user@", Password: "password123"}.Validate(8)
		require.Equal(t, authmodel.FieldIdentifier, authmodel.FieldOf(err))
	})

	t.Run("zero minimum falls back to default", func(t *testing.T) {
		err := authmodel.LoginRequest{Identifier: "admin", Password: "1234567"}.Validate(0)
		require.Equal(t, authmodel.FieldPassword, authmodel.FieldOf(err))
	})
}

func TestFieldErrors(t *testing.T) {
	errs := authmodel.FieldErrors(authmodel.ErrorResponse{
		Error: "validation failed",
		Fields: map[string]string{
			"password":   "too weak",
			"identifier": "unknown user",
			"captcha":    "missing",
		},
	})
	require.Len(t, errs, 3)
	require.Equal(t, authmodel.FieldForm, errs[0].Field) // "captcha" sorts first
	require.Equal(t, authmodel.FieldIdentifier, errs[1].Field)
	require.Equal(t, authmodel.FieldPassword, errs[2].Field)
	for _, e := range errs {
		require.ErrorIs(t, e, authmodel.ErrInvalidCredentials)
	}
}

func TestFieldOf_PlainError(t *testing.T) {
	require.Equal(t, authmodel.FieldForm, authmodel.FieldOf(errors.New("boom")))
}
