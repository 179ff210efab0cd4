package config

import (
	"os"
	"strconv"
	"time"
)

const (
	appNameVar        = "LUNAR_APP_NAME"
	baseURLVar        = "LUNAR_BASE_URL"
	envVar            = "LUNAR_ENV"
	logLevelVar       = "LUNAR_LOG_LEVEL"
	requestTimeoutVar = "LUNAR_REQUEST_TIMEOUT"
	metricsAddrVar    = "LUNAR_METRICS_ADDR"
)

// EnvVars resolves settings from the environment, falling back to values read
// from a config file.
type EnvVars struct {
	file values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "LunarBase")
}

// GetBaseURL returns the LunarBase API base URL (e.g., "https://lunar.example.com")
func (e EnvVars) GetBaseURL() string {
	return e.get(baseURLVar, "http://localhost:8090")
}

func (e EnvVars) GetEnv() string {
	return e.get(envVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

func (e EnvVars) GetRequestTimeout() time.Duration {
	return e.duration(requestTimeoutVar, 30*time.Second)
}

func (e EnvVars) GetMetricsAddr() string {
	return e.get(metricsAddrVar, "")
}

func (e EnvVars) get(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if value := e.file[name]; value != "" {
		return value
	}
	return defaultValue
}

func (e EnvVars) duration(name string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(e.get(name, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (e EnvVars) integer(name string, defaultValue int) int {
	n, err := strconv.Atoi(e.get(name, ""))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
