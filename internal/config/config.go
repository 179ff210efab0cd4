package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	StoreConfig
	DevServerConfig
	CorsConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
	GetRequestTimeout() time.Duration
	GetMetricsAddr() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Session
	Store
	DevServer
	Cors
}

// New returns a configuration read from environment variables only.
func New() Config {
	return build(nil)
}

// Load returns a configuration backed by the YAML file at path, with
// environment variables taking precedence. An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return build(file), nil
}

func build(file values) Config {
	env := EnvVars{file: file}
	return mainConfig{
		EnvVars:   env,
		Session:   Session{env: env},
		Store:     Store{env: env},
		DevServer: DevServer{env: env},
		Cors:      Cors{env: env},
	}
}
