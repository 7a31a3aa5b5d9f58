package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	ServerAddr     string
	DatabaseURL    string
	SigningKey     []byte
	AllowedOrigins []string
	RedisURL       string
	CacheTTL       time.Duration
	MaxThreadDepth int
}

// Options holds the optional settings. Zero values select the defaults.
type Options struct {
	RedisURL       string
	CacheTTL       time.Duration
	MaxThreadDepth int
}

const (
	defaultCacheTTL       = 60 * time.Second
	defaultMaxThreadDepth = 64
)

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func validateDatabaseURL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "sqlite3":
		return nil
	}
	return fmt.Errorf("unsupported database scheme %q", u.Scheme)
}

func NewConfig(serverAddr, databaseURL, base64Secret string, allowedOrigins []string, opts Options) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}
	if err := validateDatabaseURL(databaseURL); err != nil {
		return nil, err
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if opts.RedisURL != "" {
		if _, err := url.Parse(opts.RedisURL); err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	}
	if opts.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl cannot be negative")
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.MaxThreadDepth < 0 {
		return nil, fmt.Errorf("max thread depth cannot be negative")
	}
	if opts.MaxThreadDepth == 0 {
		opts.MaxThreadDepth = defaultMaxThreadDepth
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseURL:    databaseURL,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		RedisURL:       opts.RedisURL,
		CacheTTL:       opts.CacheTTL,
		MaxThreadDepth: opts.MaxThreadDepth,
	}, nil
}
