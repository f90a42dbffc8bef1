package server

import (
	"net"
	"strconv"
	"time"
)

type Config struct {
	// Host and Port form the listen address. PORT from the environment
	// overrides Port.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AllowedOrigins for CORS; "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// RateLimitPerMinute is the per-client request budget for scan routes.
	// Zero disables rate limiting.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateBurst          int `mapstructure:"rate_burst"`

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Port:               3000,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 30,
		RateBurst:          5,
		MaxBodyBytes:       64 << 10,
		ReadTimeout:        15 * time.Second,
		ShutdownTimeout:    30 * time.Second,
	}
}

// ListenAddr is the address handed to http.Server.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
