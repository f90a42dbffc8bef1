// Package scanner sequences one scan: validate the request, take a private
// browsing context from the shared browser, navigate, audit, normalise, and
// always release the context.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/checklist"
	"github.com/raysh454/a11yscan/internal/compliance"
	"github.com/raysh454/a11yscan/internal/cookies"
	"github.com/raysh454/a11yscan/internal/engine"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/navigate"
	"github.com/raysh454/a11yscan/internal/report"
)

// BrowserProvider hands out the shared browser.
type BrowserProvider interface {
	Ensure(ctx context.Context) (browser.Browser, error)
}

// ContextFactory carves an isolated context out of the browser.
type ContextFactory interface {
	NewContext(ctx context.Context, b browser.Browser) (*browser.ScanContext, error)
}

// Navigator loads a page and waits for it to settle.
type Navigator interface {
	NavigateAndSettle(ctx context.Context, page browser.Page, url string, opts navigate.Options) (navigate.Readiness, error)
}

// Deps are the collaborators of a Scanner. Compliance is optional.
type Deps struct {
	Browsers   BrowserProvider
	Factory    ContextFactory
	Navigator  Navigator
	Engine     engine.Engine
	Observer   *cookies.Observer
	Compliance *compliance.Table
}

type Scanner struct {
	cfg    Config
	deps   Deps
	sem    *semaphore.Weighted
	logger logging.Logger
	now    func() time.Time
}

func New(cfg Config, deps Deps, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger.With(logging.Field{Key: "component", Value: "scanner"}),
		now:    time.Now,
	}
}

// Scan audits req.URL for accessibility violations.
func (s *Scanner) Scan(ctx context.Context, req model.ScanRequest, progress Progress) (*model.NormalizedScanResult, error) {
	var res *model.NormalizedScanResult
	err := s.run(ctx, req, progress, func(ctx context.Context, r *run, sc *browser.ScanContext) error {
		if err := s.deps.Engine.Prepare(ctx, sc.Page); err != nil {
			return err
		}

		r.enter(StateNavigating)
		if _, err := s.deps.Navigator.NavigateAndSettle(ctx, sc.Page, req.URL, s.cfg.Navigation); err != nil {
			return err
		}

		r.enter(StateAuditing)
		raw, err := s.deps.Engine.Audit(ctx, sc.Page)
		if err != nil {
			return err
		}

		r.enter(StateNormalizing)
		res = s.normalize(raw, req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ScanCookies observes the cookies and third-party requests of one visit.
func (s *Scanner) ScanCookies(ctx context.Context, req model.ScanRequest, progress Progress) (*model.CookieComplianceResult, error) {
	var res *model.CookieComplianceResult
	err := s.run(ctx, req, progress, func(ctx context.Context, r *run, sc *browser.ScanContext) error {
		sess, err := s.deps.Observer.Attach(sc.Page, req.URL)
		if err != nil {
			return err
		}

		r.enter(StateNavigating)
		opts := s.cfg.Navigation
		if s.cfg.CookieReadiness != "" {
			opts.Readiness = s.cfg.CookieReadiness
		}
		if _, err := s.deps.Navigator.NavigateAndSettle(ctx, sc.Page, req.URL, opts); err != nil {
			return err
		}

		r.enter(StateAuditing)
		out, err := sess.Collect(ctx)
		if err != nil {
			return err
		}

		r.enter(StateNormalizing)
		out.Timestamp = s.now().UTC()
		res = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Screenshot renders req.URL and returns it as PNG. The page settles the
// same way an accessibility scan does.
func (s *Scanner) Screenshot(ctx context.Context, req model.ScanRequest, full bool, progress Progress) ([]byte, error) {
	var img []byte
	err := s.run(ctx, req, progress, func(ctx context.Context, r *run, sc *browser.ScanContext) error {
		r.enter(StateNavigating)
		if _, err := s.deps.Navigator.NavigateAndSettle(ctx, sc.Page, req.URL, s.cfg.Navigation); err != nil {
			return err
		}

		r.enter(StateCapturing)
		out, err := sc.Page.Screenshot(ctx, full)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return errors.New("empty screenshot")
		}
		img = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Scanner) normalize(raw json.RawMessage, req model.ScanRequest) *model.NormalizedScanResult {
	res := report.Normalize(raw, req.URL, s.now())
	res.Checklist = checklist.Map(raw)
	if req.Country != "" && s.deps.Compliance != nil {
		if info, ok := s.deps.Compliance.Lookup(req.Country); ok {
			res.Compliance = &info
		}
	}
	return &res
}

// run tracks the state of one scan and reports it.
type run struct {
	id       string
	url      string
	state    State
	start    time.Time
	progress Progress
	logger   logging.Logger
}

func (r *run) publish(st State, err error) {
	if r.progress == nil {
		return
	}
	ev := Event{ScanID: r.id, URL: r.url, State: st, At: time.Now().UTC()}
	if err != nil {
		ev.Error = err.Error()
	}
	r.progress(ev)
}

func (r *run) enter(st State) {
	r.state = st
	r.logger.Debug("scan state", logging.Field{Key: "state", Value: string(st)})
	r.publish(st, nil)
}

// failed classifies err by the current state unless it already carries a
// kind, logs it and reports the failed state.
func (r *run) failed(err error) error {
	err = model.NewScanError(kindFor(r.state), string(r.state), err)
	r.logger.Error("scan failed",
		logging.Field{Key: "stage", Value: string(r.state)},
		logging.Field{Key: "elapsed", Value: time.Since(r.start).String()},
		logging.Err(err))
	r.publish(StateFailed, err)
	return err
}

type body func(ctx context.Context, r *run, sc *browser.ScanContext) error

func (s *Scanner) run(ctx context.Context, req model.ScanRequest, progress Progress, fn body) error {
	r := &run{id: uuid.New().String(), url: req.URL, progress: progress, start: time.Now()}
	r.logger = s.logger.With(logging.Field{Key: "scan_id", Value: r.id}, logging.Field{Key: "url", Value: req.URL})

	r.enter(StateValidating)
	if err := req.Validate(); err != nil {
		r.logger.Info("rejected scan request", logging.Err(err))
		return err
	}

	if err := s.execute(ctx, r, fn); err != nil {
		return err
	}
	r.enter(StateResponding)
	r.logger.Info("scan finished", logging.Field{Key: "elapsed", Value: time.Since(r.start).String()})
	return nil
}

// execute holds a slot and a scan context for fn and releases both on every
// path. The caller's ctx bounds queueing only: once a slot is held the
// browser work runs to its own timeouts.
func (s *Scanner) execute(ctx context.Context, r *run, fn body) error {
	r.enter(StateAcquiring)
	if err := s.acquireSlot(ctx); err != nil {
		return r.failed(err)
	}
	defer s.sem.Release(1)

	work := context.WithoutCancel(ctx)
	acqCtx, cancel := withTimeout(work, s.cfg.AcquireTimeout)
	defer cancel()

	b, err := s.deps.Browsers.Ensure(acqCtx)
	if err != nil {
		return r.failed(err)
	}
	sc, err := s.deps.Factory.NewContext(acqCtx, b)
	if err != nil {
		return r.failed(err)
	}
	defer func() {
		r.publish(StateReleasing, nil)
		sc.Close()
	}()

	if err := fn(work, r, sc); err != nil {
		return r.failed(err)
	}
	return nil
}

func (s *Scanner) acquireSlot(ctx context.Context) error {
	qctx, cancel := withTimeout(ctx, s.cfg.QueueTimeout)
	defer cancel()
	if err := s.sem.Acquire(qctx, 1); err != nil {
		return model.NewScanError(model.ErrBrowserUnavailable, string(StateAcquiring),
			errors.Join(errors.New("no free scan slot"), err))
	}
	return nil
}

// kindFor classifies an error that carries no kind yet by the stage it
// surfaced in.
func kindFor(st State) error {
	switch st {
	case StateNavigating:
		return model.ErrNavigationFailed
	case StateAuditing, StateNormalizing:
		return model.ErrAuditError
	case StateCapturing:
		return model.ErrCaptureFailed
	default:
		return model.ErrBrowserUnavailable
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
