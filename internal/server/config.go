// Package server provides configuration helpers that define runtime defaults,
// validation, and flood-guard parameters for the relay service.
package server

import (
	"strings"
	"time"

	"github.com/Tyrowin/roomrelay/internal/activity"
)

// Defaults applied by Sanitize.
const (
	DefaultPort            = ":8080"
	DefaultMaxMessageSize  = 64 * 1024
	DefaultSendBufferSize  = 256
	DefaultBurst           = 50
	DefaultRefillInterval  = time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the per-connection frame flood guard. It sits below
// the relay's chat and join limits and simply drops excess frames.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	RateLimit       RateLimitConfig
	StaticDir       string
	ShutdownTimeout time.Duration
	Activity        activity.Config
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := Config{
		Port: DefaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: DefaultMaxMessageSize,
		SendBufferSize: DefaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          DefaultBurst,
			RefillInterval: DefaultRefillInterval,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		Activity:        activity.DefaultConfig(),
	}
	return &cfg
}

// Sanitize returns a copy of cfg with unset or invalid fields replaced by
// defaults and origins trimmed of blanks.
func (cfg Config) Sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = DefaultBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = DefaultRefillInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	cfg.Activity = cfg.Activity.WithDefaults()

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
	return cfg
}

// ParseOrigins splits a comma-separated origin list.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
