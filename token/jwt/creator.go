package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/jrsteele09/lunar-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator issues access tokens
type Creator struct {
	config config.DevServerConfig
	key    *SigningKey
}

func NewCreator(cfg config.DevServerConfig, key *SigningKey) *Creator {
	return &Creator{config: cfg, key: key}
}

// CreateAccessToken creates a signed access token for user. The expiry is
// returned alongside so callers can fill in expires_in.
func (c *Creator) CreateAccessToken(user *users.User) (string, time.Time, error) {
	now := NowTimeFunc()
	exp := now.Add(c.config.GetAccessTokenExpiry())

	// jti lets the server revoke an access token on logout
	claims := jwtlib.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"jti":      uuid.New().String(),
	}

	signed, err := c.key.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create access token for %s: %w", user.ID, err)
	}
	return signed, exp, nil
}
