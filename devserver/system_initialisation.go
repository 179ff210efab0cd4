package devserver

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/lunar-session/users"
)

// DefaultAdminUsername is seeded when no user is named.
const DefaultAdminUsername = "admin"

// EnsureUser creates the account unless one with the same identifier exists.
// identifier is an email address or a username; a bare username gets an
// email derived from the base URL. An empty password is replaced by a random
// one, which is returned so it can be shown once.
func (s *Server) EnsureUser(identifier, password string, role users.RoleType) (*users.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = DefaultAdminUsername
	}
	if existing, err := s.repos.Users.GetByIdentifier(identifier); err == nil && existing != nil {
		return existing, "", nil
	}

	username, email := identifier, generateEmailFromBaseURL(identifier, s.config.GetBaseURL())
	if at := strings.Index(identifier, "@"); at > 0 {
		username, email = identifier[:at], identifier
	}

	generated := ""
	if password == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return nil, "", fmt.Errorf("[devserver EnsureUser] failed to generate password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(passwordBytes)
		generated = password
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("[devserver EnsureUser] failed to hash password: %w", err)
	}

	user := &users.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
	}
	if err := s.repos.Users.Upsert(user); err != nil {
		return nil, "", fmt.Errorf("[devserver EnsureUser] failed to create user: %w", err)
	}

	s.logger.Info().Str("username", username).Str("email", email).Str("role", string(role)).Msg("Seeded user")
	return user, generated, nil
}

// generateEmailFromBaseURL creates an email address from a username and base URL
// Example: ("admin", "https://auth.example.com/path") -> "admin@auth.example.com"
func generateEmailFromBaseURL(user, baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0] // Remove any path
	domain = strings.SplitN(domain, ":", 2)[0] // Remove port if present
	if !strings.Contains(domain, ".") {
		domain += ".local"
	}
	return fmt.Sprintf("%s@%s", user, domain)
}
