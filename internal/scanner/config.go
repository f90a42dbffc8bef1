package scanner

import (
	"time"

	"github.com/raysh454/a11yscan/internal/navigate"
)

type Config struct {
	// MaxConcurrent bounds scans sharing the browser. Each holds one page.
	MaxConcurrent int64 `mapstructure:"max_concurrent"`

	// QueueTimeout bounds the wait for a free slot.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
	// AcquireTimeout bounds browser launch plus context creation.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	Navigation navigate.Options `mapstructure:"navigation"`
	// CookieReadiness overrides the readiness strategy for cookie scans,
	// where late trackers matter more than DOM size.
	CookieReadiness navigate.Strategy `mapstructure:"cookie_readiness"`

	// JobHistory caps how many finished jobs are kept for GET /jobs.
	JobHistory int `mapstructure:"job_history"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   4,
		QueueTimeout:    2 * time.Minute,
		AcquireTimeout:  time.Minute,
		Navigation:      navigate.DefaultOptions(),
		CookieReadiness: navigate.StrategyNetworkIdle,
		JobHistory:      100,
	}
}
