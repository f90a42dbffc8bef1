package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// RuleTags is the fixed rule selection: WCAG 2.0 Level A and AA.
var RuleTags = []string{"wcag2a", "wcag2aa"}

const axePresentExpr = `typeof window.axe !== "undefined" && typeof window.axe.run === "function"`

// axeRunExpr stringifies the result in the page so the whole tree comes back
// in one value regardless of depth.
var axeRunExpr = func() string {
	tags, _ := json.Marshal(RuleTags)
	return fmt.Sprintf(`axe.run(document, {runOnly: {type: "tag", values: %s}}).then(function (r) { return JSON.stringify(r); })`, tags)
}()

// Axe runs axe-core inside the page.
type Axe struct {
	cfg    Config
	fs     afero.Fs
	client webclient.WebClient
	logger logging.Logger

	mu     sync.Mutex
	source string
	group  singleflight.Group
}

// NewAxe builds the engine. fs defaults to the OS filesystem; client may be
// nil when only ScriptPath is used.
func NewAxe(cfg Config, fs afero.Fs, client webclient.WebClient, logger logging.Logger) *Axe {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Axe{
		cfg:    cfg,
		fs:     fs,
		client: client,
		logger: logger.With(logging.Field{Key: "engine", Value: "axe"}),
	}
}

func (a *Axe) Name() string { return "axe-core" }

// Prepare turns on CSP bypass for the next document so injection is not
// blocked by the page's script-src policy, and warms the script cache.
func (a *Axe) Prepare(ctx context.Context, page browser.Page) error {
	if err := page.SetBypassCSP(ctx, true); err != nil {
		return model.NewScanError(model.ErrInjectionFailed, "acquiring", fmt.Errorf("enable csp bypass: %w", err))
	}
	if _, err := a.Source(ctx); err != nil {
		return model.NewScanError(model.ErrInjectionFailed, "acquiring", err)
	}
	return nil
}

func (a *Axe) Audit(ctx context.Context, page browser.Page) (json.RawMessage, error) {
	src, err := a.Source(ctx)
	if err != nil {
		return nil, model.NewScanError(model.ErrInjectionFailed, "auditing", err)
	}

	injectCtx, cancel := withTimeout(ctx, a.cfg.InjectTimeout)
	defer cancel()
	if err := page.InjectScript(injectCtx, src); err != nil {
		return nil, model.NewScanError(model.ErrInjectionFailed, "auditing", fmt.Errorf("inject axe-core: %w", err))
	}

	var present bool
	if err := page.Evaluate(injectCtx, axePresentExpr, &present); err != nil {
		return nil, model.NewScanError(model.ErrInjectionFailed, "auditing", fmt.Errorf("check axe-core: %w", err))
	}
	if !present {
		return nil, model.NewScanError(model.ErrInjectionFailed, "auditing", errors.New("axe.run is not defined after injection"))
	}

	auditCtx, cancelAudit := withTimeout(ctx, a.cfg.AuditTimeout)
	defer cancelAudit()
	var out string
	if err := page.EvaluateAsync(auditCtx, axeRunExpr, &out); err != nil {
		return nil, model.NewScanError(model.ErrAuditError, "auditing", err)
	}
	if !json.Valid([]byte(out)) {
		return nil, model.NewScanError(model.ErrAuditError, "auditing", errors.New("axe.run returned a non-JSON result"))
	}
	return json.RawMessage(out), nil
}

// Source returns the axe-core bundle. The first successful load is cached;
// concurrent first loads share one read or download.
func (a *Axe) Source(ctx context.Context) (string, error) {
	a.mu.Lock()
	src := a.source
	a.mu.Unlock()
	if src != "" {
		return src, nil
	}

	v, err, _ := a.group.Do("source", func() (any, error) {
		s, err := a.load(ctx)
		if err != nil {
			return "", err
		}
		a.mu.Lock()
		a.source = s
		a.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Axe) load(ctx context.Context) (string, error) {
	if a.cfg.ScriptPath != "" {
		b, err := afero.ReadFile(a.fs, a.cfg.ScriptPath)
		if err == nil && len(b) > 0 {
			a.logger.Info("loaded axe-core from disk", logging.Field{Key: "path", Value: a.cfg.ScriptPath})
			return string(b), nil
		}
		if err == nil {
			err = errors.New("file is empty")
		}
		if a.cfg.ScriptURL == "" || a.client == nil {
			return "", fmt.Errorf("read %s: %w", a.cfg.ScriptPath, err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("reading axe-core from disk", logging.Err(err))
		}
	}

	if a.cfg.ScriptURL == "" || a.client == nil {
		return "", errors.New("no axe-core source configured")
	}
	resp, err := a.client.Do(ctx, &webclient.Request{
		Method:  http.MethodGet,
		URL:     a.cfg.ScriptURL,
		Headers: http.Header{"Accept": []string{scriptAccept}},
	})
	if err != nil {
		return "", fmt.Errorf("download axe-core: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("download axe-core: %s returned %d", a.cfg.ScriptURL, resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return "", fmt.Errorf("download axe-core: %s returned an empty body", a.cfg.ScriptURL)
	}
	a.logger.Info("downloaded axe-core", logging.Field{Key: "url", Value: a.cfg.ScriptURL}, logging.Field{Key: "bytes", Value: len(resp.Body)})
	return string(resp.Body), nil
}

const scriptAccept = "application/javascript, text/javascript;q=0.9, */*;q=0.1"

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
