package authmodel

import "github.com/jrsteele09/lunar-session/users"

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	// Identifier is either the username or the email address of the account.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RefreshRequest is the body of POST /api/auth/refresh and POST /api/auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned from the login and refresh endpoints.
type TokenResponse struct {
	// AccessToken is the JWT used as the bearer credential on protected calls.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Lifespan: short-lived (15 minutes on the dev server)
	AccessToken string `json:"access_token"`

	// RefreshToken is an opaque string used only to mint a new pair.
	// It rotates on every use; presenting an old one fails.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is a hint in seconds. The authoritative expiry is the JWT "exp" claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	User *users.User `json:"user,omitempty"`
}

// HasPair reports whether both halves of the credential pair are present.
func (tr *TokenResponse) HasPair() bool {
	return tr != nil && tr.AccessToken != "" && tr.RefreshToken != ""
}

// ErrorResponse is the JSON error body used by the LunarBase API.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
