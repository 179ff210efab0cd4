package config

import "time"

type DevServerConfig interface {
	GetDevServerAddr() string
	GetSigningSecret() string
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type DevServer struct {
	env EnvVars
}

var _ DevServerConfig = DevServer{}

func (d DevServer) GetDevServerAddr() string {
	return d.env.get("LUNAR_DEV_ADDR", ":8090")
}

func (d DevServer) GetSigningSecret() string {
	return d.env.get("LUNAR_DEV_SIGNING_SECRET", "lunar-dev-secret")
}

func (d DevServer) GetRefreshTokenLength() int {
	return d.env.integer("LUNAR_DEV_REFRESH_TOKEN_LENGTH", 32) // 32 bytes = 256 bits
}

func (d DevServer) GetAccessTokenExpiry() time.Duration {
	return d.env.duration("LUNAR_DEV_ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (d DevServer) GetRefreshTokenExpiry() time.Duration {
	return d.env.duration("LUNAR_DEV_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour) // 7 days
}
