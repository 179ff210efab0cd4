package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// values maps environment variable names to values read from a config file.
type values map[string]string

// File is the YAML layout of a lunarctl config file.
//
//	base_url: https://lunar.example.com
//	log_level: debug
//	session:
//	  refresh_threshold: 5m
//	store:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
type File struct {
	AppName        string `yaml:"app_name"`
	BaseURL        string `yaml:"base_url"`
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"log_level"`
	RequestTimeout string `yaml:"request_timeout"`
	MetricsAddr    string `yaml:"metrics_addr"`

	Session struct {
		StorageName       string `yaml:"storage_name"`
		RefreshThreshold  string `yaml:"refresh_threshold"`
		CheckInterval     string `yaml:"check_interval"`
		MinPasswordLength string `yaml:"min_password_length"`
	} `yaml:"session"`

	Store struct {
		Backend        string `yaml:"backend"`
		Dir            string `yaml:"dir"`
		Passphrase     string `yaml:"passphrase"`
		RedisURL       string `yaml:"redis_url"`
		RedisPrefix    string `yaml:"redis_prefix"`
		DatabaseURL    string `yaml:"database_url"`
		DatabaseSchema string `yaml:"database_schema"`
	} `yaml:"store"`

	DevServer struct {
		Addr               string `yaml:"addr"`
		SigningSecret      string `yaml:"signing_secret"`
		AccessTokenExpiry  string `yaml:"access_token_expiry"`
		RefreshTokenExpiry string `yaml:"refresh_token_expiry"`
		AllowedOrigins     string `yaml:"allowed_origins"`
	} `yaml:"devserver"`
}

func readFile(path string) (values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.readFile: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (values, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.parseFile: %w", err)
	}
	return f.values(), nil
}

func (f File) values() values {
	return values{
		appNameVar:                       f.AppName,
		baseURLVar:                       f.BaseURL,
		envVar:                           f.Env,
		logLevelVar:                      f.LogLevel,
		requestTimeoutVar:                f.RequestTimeout,
		metricsAddrVar:                   f.MetricsAddr,
		"LUNAR_STORAGE_NAME":             f.Session.StorageName,
		"LUNAR_REFRESH_THRESHOLD":        f.Session.RefreshThreshold,
		"LUNAR_CHECK_INTERVAL":           f.Session.CheckInterval,
		"LUNAR_MIN_PASSWORD_LENGTH":      f.Session.MinPasswordLength,
		"LUNAR_STORE":                    f.Store.Backend,
		"LUNAR_STORE_DIR":                f.Store.Dir,
		"LUNAR_STORE_PASSPHRASE":         f.Store.Passphrase,
		"LUNAR_REDIS_URL":                f.Store.RedisURL,
		"LUNAR_REDIS_PREFIX":             f.Store.RedisPrefix,
		"LUNAR_DATABASE_URL":             f.Store.DatabaseURL,
		"LUNAR_DATABASE_SCHEMA":          f.Store.DatabaseSchema,
		"LUNAR_DEV_ADDR":                 f.DevServer.Addr,
		"LUNAR_DEV_SIGNING_SECRET":       f.DevServer.SigningSecret,
		"LUNAR_DEV_ACCESS_TOKEN_EXPIRY":  f.DevServer.AccessTokenExpiry,
		"LUNAR_DEV_REFRESH_TOKEN_EXPIRY": f.DevServer.RefreshTokenExpiry,
		"LUNAR_ALLOWED_ORIGINS":          f.DevServer.AllowedOrigins,
	}
}
