// Package store defines the durable slot that holds a persisted session.
//
// A session is stored as one record so that both tokens are always read and
// written together. Implementations live in the sub-packages: memory, file,
// redis and postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jrsteele09/lunar-session/users"
)

// DefaultName is the storage name the session record is kept under.
const DefaultName = "lunarbase-auth"

// ErrPartialCredentials is returned for a record holding only one of the two tokens.
var ErrPartialCredentials = errors.New("record holds a partial credential pair")

// Record is the persisted form of a session.
type Record struct {
	User            *users.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	AccessToken     string      `json:"accessToken"`
	RefreshToken    string      `json:"refreshToken"`
}

// HasCredentials reports whether both tokens are present.
func (r *Record) HasCredentials() bool {
	return r != nil && r.AccessToken != "" && r.RefreshToken != ""
}

// Validate enforces that the tokens are both present or both absent.
func (r *Record) Validate() error {
	if r == nil {
		return nil
	}
	if (r.AccessToken == "") != (r.RefreshToken == "") {
		return ErrPartialCredentials
	}
	if r.IsAuthenticated && !r.HasCredentials() {
		return fmt.Errorf("authenticated record without credentials: %w", ErrPartialCredentials)
	}
	return nil
}

// Equal compares two records field by field. Two nil records are equal.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.IsAuthenticated == other.IsAuthenticated &&
		r.AccessToken == other.AccessToken &&
		r.RefreshToken == other.RefreshToken &&
		r.User.Equal(other.User)
}

// Store is a durable slot for one session record.
type Store interface {
	// Load returns the persisted record, or nil and no error when the slot is empty.
	Load(ctx context.Context) (*Record, error)
	// Save replaces the persisted record.
	Save(ctx context.Context, record *Record) error
	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Watcher is implemented by stores that can report changes made by other
// processes. Watch blocks until ctx is done, calling onChange after each
// change to the slot, and returns nil on cancellation.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// ConditionalClearer is implemented by stores that can empty the slot only
// while it still holds a given refresh token, as one atomic step.
type ConditionalClearer interface {
	ClearIfHolds(ctx context.Context, refreshToken string) (cleared bool, err error)
}

// ClearIfHolds empties st when its record carries refreshToken. Stores
// without ConditionalClearer get a load, compare and clear sequence, which is
// not atomic across processes.
func ClearIfHolds(ctx context.Context, st Store, refreshToken string) (bool, error) {
	if cc, ok := st.(ConditionalClearer); ok {
		return cc.ClearIfHolds(ctx, refreshToken)
	}
	record, err := st.Load(ctx)
	if err != nil {
		return false, err
	}
	if record == nil || record.RefreshToken != refreshToken {
		return false, nil
	}
	return true, st.Clear(ctx)
}

// Marshal encodes a record in the persisted JSON layout.
func Marshal(record *Record) ([]byte, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("store.Marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a record from the persisted JSON layout.
func Unmarshal(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("store.Unmarshal: %w", err)
	}
	return &record, nil
}
