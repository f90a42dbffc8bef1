package webclient

import "time"

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// UserAgent is sent on every request unless the request sets its own.
	UserAgent string `mapstructure:"user_agent"`
	// MaxBodyBytes caps how much of a response is read. Zero means no cap.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// Retries is how many times a connection error or 5xx is retried.
	Retries      int           `mapstructure:"retries"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		UserAgent:    "a11yscan/1.0 (+https://github.com/raysh454/a11yscan)",
		MaxBodyBytes: 8 << 20,
		Retries:      2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}
