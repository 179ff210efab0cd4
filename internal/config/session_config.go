package config

import "time"

type SessionConfig interface {
	GetStorageName() string
	GetRefreshThreshold() time.Duration
	GetCheckInterval() time.Duration
	GetMinPasswordLength() int
}

type Session struct {
	env EnvVars
}

var _ SessionConfig = Session{}

// GetStorageName is the fixed name of the persisted session record
func (s Session) GetStorageName() string {
	return s.env.get("LUNAR_STORAGE_NAME", "lunarbase-auth")
}

// GetRefreshThreshold is the remaining access token lifetime below which a refresh is due
func (s Session) GetRefreshThreshold() time.Duration {
	return s.env.duration("LUNAR_REFRESH_THRESHOLD", 5*time.Minute)
}

func (s Session) GetCheckInterval() time.Duration {
	return s.env.duration("LUNAR_CHECK_INTERVAL", 60*time.Second)
}

func (s Session) GetMinPasswordLength() int {
	return s.env.integer("LUNAR_MIN_PASSWORD_LENGTH", 8)
}
