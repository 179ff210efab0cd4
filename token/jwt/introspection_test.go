package jwt_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/lunar-session/internal/config"
	interrors "github.com/jrsteele09/lunar-session/internal/errors"
	"github.com/jrsteele09/lunar-session/token"
	"github.com/jrsteele09/lunar-session/token/jwt"
	"github.com/jrsteele09/lunar-session/users"
	"github.com/stretchr/testify/require"
)

type revokedSet map[string]struct{}

func (r revokedSet) IsRevoked(jti string) bool {
	_, ok := r[jti]
	return ok
}

func TestNewSigningKey_RejectsEmptySecret(t *testing.T) {
	_, err := jwt.NewSigningKey("")
	require.Error(t, err)
}

func TestInspector_RejectsOtherAlgorithms(t *testing.T) {
	key, err := jwt.NewSigningKey("test-secret")
	require.NoError(t, err)

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, jwtlib.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = jwt.NewInspector(key, nil).Verify(raw)
	require.ErrorIs(t, err, interrors.ErrInvalidToken)
}

func TestCreatorAndInspector(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	jwt.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.NowTimeFunc = time.Now })

	key, err := jwt.NewSigningKey("test-secret")
	require.NoError(t, err)
	revoked := revokedSet{}
	creator := jwt.NewCreator(config.New(), key)
	inspector := jwt.NewInspector(key, revoked)

	user := &users.User{ID: "user-1", Username: "admin", Role: users.RoleAdmin}
	raw, exp, err := creator.CreateAccessToken(user)
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute), exp)

	t.Run("client side decode agrees with server", func(t *testing.T) {
		claims, err := token.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "admin", claims.Role)
		require.True(t, claims.ExpiresAt.Equal(exp))
	})

	t.Run("valid token", func(t *testing.T) {
		claims, err := inspector.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.NotEmpty(t, claims.JTI)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwt.NewSigningKey("other")
		require.NoError(t, err)
		_, err = jwt.NewInspector(other, nil).Verify(raw)
		require.ErrorIs(t, err, interrors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		jwt.NowTimeFunc = func() time.Time { return now.Add(time.Hour) }
		defer func() { jwt.NowTimeFunc = func() time.Time { return now } }()
		_, err := inspector.Verify(raw)
		require.ErrorIs(t, err, interrors.ErrTokenExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		claims, err := inspector.Verify(raw)
		require.NoError(t, err)
		revoked[claims.JTI] = struct{}{}
		_, err = inspector.Verify(raw)
		require.ErrorIs(t, err, interrors.ErrTokenRevoked)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := inspector.Verify("")
		require.ErrorIs(t, err, interrors.ErrInvalidToken)
	})
}
