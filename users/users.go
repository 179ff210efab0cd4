package users

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a LunarBase admin role
type RoleType string

const (
	RoleAdmin  RoleType = "admin"  // Full access, including users, roles and settings
	RoleEditor RoleType = "editor" // Can manage collections and records
	RoleViewer RoleType = "viewer" // Read-only access to the admin UI
)

// User is the authenticated identity carried by a session.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Role         RoleType `json:"role"`
	PasswordHash string   `json:"-"` // Only populated server side - never serialize
}

// IsAdmin returns true if the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Matches reports whether identifier names this user, by email (case-insensitive) or username.
func (u *User) Matches(identifier string) bool {
	if u == nil {
		return false
	}
	return strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier)
}

// Equal compares the identity fields of two users, ignoring server-side data.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.ID == other.ID && u.Username == other.Username && u.Email == other.Email && u.Role == other.Role
}

// Public returns a copy without server-side fields.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
