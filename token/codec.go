package token

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/pkg/errors"
)

// Claims are the access token claims a client may read. They are decoded
// without verifying the signature; verification is the server's job.
type Claims struct {
	Subject   string
	Role      string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Decode extracts the claims from the middle segment of a JWT. Any failure,
// including a missing "exp" claim, is reported as authmodel.ErrDecode.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrap(authmodel.ErrDecode, "empty token")
	}

	// The header is not inspected; only the payload segment is decoded.
	parts := strings.Split(rawToken, ".")
	if len(parts) != 3 {
		return nil, errors.Wrapf(authmodel.ErrDecode, "token has %d segments, want 3", len(parts))
	}
	payload, err := jwtlib.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, errors.Wrapf(authmodel.ErrDecode, "payload segment: %v", err)
	}
	claims := jwtlib.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.Wrapf(authmodel.ErrDecode, "payload json: %v", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrapf(authmodel.ErrDecode, "exp claim: %v", err)
	}
	if exp == nil {
		return nil, errors.Wrap(authmodel.ErrDecode, "token missing exp claim")
	}

	out := &Claims{ExpiresAt: exp.Time}
	out.Subject, _ = claims["sub"].(string)
	out.Role, _ = claims["role"].(string)
	out.ID, _ = claims["jti"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// DecodeExpiry returns the expiry timestamp embedded in the token.
func DecodeExpiry(rawToken string) (time.Time, error) {
	claims, err := Decode(rawToken)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt, nil
}

// IsExpiringSoon reports whether the token's remaining lifetime at now is
// below threshold. A token that cannot be decoded is always expiring.
func IsExpiringSoon(rawToken string, now time.Time, threshold time.Duration) bool {
	exp, err := DecodeExpiry(rawToken)
	if err != nil {
		return true
	}
	return exp.Sub(now) < threshold
}

// Remaining returns the lifetime left on the token at now, or zero when the
// token is expired or undecodable.
func Remaining(rawToken string, now time.Time) time.Duration {
	exp, err := DecodeExpiry(rawToken)
	if err != nil || !exp.After(now) {
		return 0
	}
	return exp.Sub(now)
}
