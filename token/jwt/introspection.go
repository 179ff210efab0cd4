package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	interrors "github.com/jrsteele09/lunar-session/internal/errors"
)

// AccessClaims are the verified claims of an access token.
type AccessClaims struct {
	Subject   string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// RevokedChecker reports whether an access token id was revoked.
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// Inspector verifies access tokens issued by a Creator
type Inspector struct {
	key            *SigningKey
	revokedChecker RevokedChecker
}

// NewInspector returns an inspector for tokens signed with key. revokedChecker may be nil.
func NewInspector(key *SigningKey, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{key: key, revokedChecker: revokedChecker}
}

// Verify checks the signature, expiry and revocation status of rawToken
func (i *Inspector) Verify(rawToken string) (*AccessClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, interrors.ErrInvalidToken
	}

	parsed, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.key.keyFunc,
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, interrors.Wrapf(interrors.ErrTokenExpired, "verify")
		}
		return nil, interrors.Wrapf(interrors.ErrInvalidToken, "verify: %v", err)
	}
	if !parsed.Valid {
		return nil, interrors.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, interrors.Wrapf(interrors.ErrInvalidToken, "error extracting claims from token")
	}

	out := &AccessClaims{}
	out.Subject, _ = claims["sub"].(string)
	out.Role, _ = claims["role"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.JTI != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(out.JTI) {
		return nil, interrors.ErrTokenRevoked
	}
	return out, nil
}
