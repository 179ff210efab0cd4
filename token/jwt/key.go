package jwt

import (
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// SigningKey is the shared HS256 secret of the dev server. Tokens signed with
// any other algorithm are rejected.
type SigningKey struct {
	secret []byte
}

// NewSigningKey returns a key for secret, which must not be empty.
func NewSigningKey(secret string) (*SigningKey, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	return &SigningKey{secret: []byte(secret)}, nil
}

func (k *SigningKey) sign(claims jwtlib.MapClaims) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("sign HS256: %w", err)
	}
	return signed, nil
}

// keyFunc hands the secret to the parser once the header names HS256.
func (k *SigningKey) keyFunc(t *jwtlib.Token) (any, error) {
	if t.Method != jwtlib.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return k.secret, nil
}
