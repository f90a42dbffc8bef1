// Package navigate drives a page to its target and decides when it has
// settled enough to audit.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// elementCountExpr counts rendered elements under <body>.
const elementCountExpr = `document.body ? document.body.getElementsByTagName("*").length : 0`

// Readiness is the outcome of the best-effort secondary wait. Err is set when
// the heuristic timed out or failed; callers log it and carry on.
type Readiness struct {
	Strategy Strategy
	Elapsed  time.Duration
	Elements int
	Err      error
}

// Satisfied reports whether the heuristic condition was met.
func (r Readiness) Satisfied() bool { return r.Err == nil }

type Controller struct {
	logger logging.Logger
}

func NewController(logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Controller{
		logger: logger.With(logging.Field{Key: "component", Value: "navigate"}),
	}
}

// NavigateAndSettle loads url, runs the readiness heuristic and the settle
// delay. Only the navigation itself can fail; the returned Readiness carries
// the heuristic's outcome.
func (c *Controller) NavigateAndSettle(ctx context.Context, page browser.Page, url string, opts Options) (Readiness, error) {
	navCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := page.Navigate(navCtx, url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return Readiness{}, model.NewScanError(model.ErrNavigationTimeout, "navigating",
				fmt.Errorf("%s did not load within %s: %w", url, opts.Timeout, err))
		}
		return Readiness{}, model.NewScanError(model.ErrNavigationFailed, "navigating", err)
	}
	c.logger.Debug("page loaded",
		logging.Field{Key: "url", Value: url},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})

	ready := c.waitReady(ctx, page, opts)
	if ready.Err != nil {
		// Best effort: a slow or chatty page is still audited.
		c.logger.Warn("readiness heuristic not met",
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "strategy", Value: string(ready.Strategy)},
			logging.Field{Key: "elements", Value: ready.Elements},
			logging.Err(ready.Err))
	}

	if opts.SettleDelay > 0 {
		if err := sleepCtx(ctx, opts.SettleDelay); err != nil {
			return ready, model.NewScanError(model.ErrNavigationFailed, "navigating", err)
		}
	}
	return ready, nil
}

func (c *Controller) waitReady(ctx context.Context, page browser.Page, opts Options) Readiness {
	r := Readiness{Strategy: opts.Readiness}
	if r.Strategy == "" {
		r.Strategy = StrategyNone
	}
	if r.Strategy == StrategyNone {
		return r
	}

	waitCtx := ctx
	if opts.ReadinessTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.ReadinessTimeout)
		defer cancel()
	}

	start := time.Now()
	switch r.Strategy {
	case StrategyElementCount:
		r.Elements, r.Err = c.waitElements(waitCtx, page, opts)
	case StrategyNetworkIdle:
		r.Err = page.WaitNetworkIdle(waitCtx, opts.IdleAfter)
	default:
		r.Err = fmt.Errorf("unknown readiness strategy %q", r.Strategy)
	}
	r.Elapsed = time.Since(start)
	return r
}

func (c *Controller) waitElements(ctx context.Context, page browser.Page, opts Options) (int, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	last := 0
	for {
		var n int
		if err := page.Evaluate(ctx, elementCountExpr, &n); err != nil {
			if ctx.Err() != nil {
				return last, fmt.Errorf("saw %d of %d elements: %w", last, opts.MinElements, ctx.Err())
			}
			return last, fmt.Errorf("count elements: %w", err)
		}
		last = n
		if n >= opts.MinElements {
			return n, nil
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return last, fmt.Errorf("saw %d of %d elements: %w", last, opts.MinElements, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
