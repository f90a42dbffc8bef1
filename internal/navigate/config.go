package navigate

import "time"

// Strategy selects the secondary readiness heuristic run after the load event.
type Strategy string

const (
	StrategyNone         Strategy = "none"
	StrategyElementCount Strategy = "element_count"
	StrategyNetworkIdle  Strategy = "network_idle"
)

type Options struct {
	// Timeout bounds navigation up to the load event.
	Timeout time.Duration `mapstructure:"timeout"`

	Readiness Strategy `mapstructure:"readiness"`
	// MinElements is the body element count element_count waits for.
	MinElements int `mapstructure:"min_elements"`
	// IdleAfter is how long the network must stay quiet for network_idle.
	IdleAfter        time.Duration `mapstructure:"idle_after"`
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`

	// SettleDelay always runs last, so late scripts can finish.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// PollInterval is how often element_count re-checks the DOM.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func DefaultOptions() Options {
	return Options{
		Timeout:          60 * time.Second,
		Readiness:        StrategyElementCount,
		MinElements:      20,
		IdleAfter:        500 * time.Millisecond,
		ReadinessTimeout: 8 * time.Second,
		SettleDelay:      1500 * time.Millisecond,
		PollInterval:     250 * time.Millisecond,
	}
}

// Valid reports whether s names a known strategy. Empty counts as none.
func (s Strategy) Valid() bool {
	switch s {
	case "", StrategyNone, StrategyElementCount, StrategyNetworkIdle:
		return true
	}
	return false
}
