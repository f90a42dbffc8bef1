package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/a11yscan/internal/browser"
)

// ─── Page ──────────────────────────────────────────────────────────────

// FakePage implements browser.Page in memory. Every hook is optional; the
// zero value navigates successfully and evaluates everything to null.
type FakePage struct {
	ID int

	NavigateFn      func(ctx context.Context, url string) error
	InjectFn        func(ctx context.Context, source string) error
	EvaluateFn      func(ctx context.Context, expression string) (any, error)
	EvaluateAsyncFn func(ctx context.Context, expression string) (any, error)
	WaitIdleFn      func(ctx context.Context, idleAfter time.Duration) error
	ScreenshotFn    func(ctx context.Context, full bool) ([]byte, error)
	CloseErr        error

	// RequestURLs are replayed to OnRequest hooks during Navigate.
	RequestURLs []string
	Jar         []browser.Cookie
	Document    string

	mu                sync.Mutex
	hooks             []func(string)
	Navigated         []string
	Injected          []string
	Evaluated         []string
	BypassCSP         bool
	bypassSetAfterNav bool
	closeCalls        int
}

func (p *FakePage) SetBypassCSP(_ context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BypassCSP = enabled
	if len(p.Navigated) > 0 {
		p.bypassSetAfterNav = true
	}
	return nil
}

// BypassSetAfterNavigate reports whether SetBypassCSP came too late.
func (p *FakePage) BypassSetAfterNavigate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bypassSetAfterNav
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.Navigated = append(p.Navigated, url)
	hooks := append([]func(string){}, p.hooks...)
	reqs := append([]string{}, p.RequestURLs...)
	p.mu.Unlock()

	for _, r := range reqs {
		for _, fn := range hooks {
			fn(r)
		}
	}
	if p.NavigateFn != nil {
		return p.NavigateFn(ctx, url)
	}
	return ctx.Err()
}

func (p *FakePage) InjectScript(ctx context.Context, source string) error {
	p.mu.Lock()
	p.Injected = append(p.Injected, source)
	p.mu.Unlock()
	if p.InjectFn != nil {
		return p.InjectFn(ctx, source)
	}
	return nil
}

func (p *FakePage) Evaluate(ctx context.Context, expression string, out any) error {
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, expression)
	p.mu.Unlock()
	if p.EvaluateFn == nil {
		return Decode(nil, out)
	}
	v, err := p.EvaluateFn(ctx, expression)
	if err != nil {
		return err
	}
	return Decode(v, out)
}

func (p *FakePage) EvaluateAsync(ctx context.Context, expression string, out any) error {
	p.mu.Lock()
	p.Evaluated = append(p.Evaluated, expression)
	p.mu.Unlock()
	if p.EvaluateAsyncFn == nil {
		return Decode(nil, out)
	}
	v, err := p.EvaluateAsyncFn(ctx, expression)
	if err != nil {
		return err
	}
	return Decode(v, out)
}

func (p *FakePage) WaitNetworkIdle(ctx context.Context, idleAfter time.Duration) error {
	if p.WaitIdleFn != nil {
		return p.WaitIdleFn(ctx, idleAfter)
	}
	return nil
}

func (p *FakePage) OnRequest(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

func (p *FakePage) Cookies(_ context.Context) ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.Jar...), nil
}

// SetCookie adds a cookie to this page's private jar.
func (p *FakePage) SetCookie(c browser.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Jar = append(p.Jar, c)
}

func (p *FakePage) HTML(_ context.Context) (string, error) {
	return p.Document, nil
}

// PNGSignature is what FakePage.Screenshot returns without a ScreenshotFn.
var PNGSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (p *FakePage) Screenshot(ctx context.Context, full bool) ([]byte, error) {
	if p.ScreenshotFn != nil {
		return p.ScreenshotFn(ctx, full)
	}
	return append([]byte(nil), PNGSignature...), nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return p.CloseErr
}

// CloseCalls returns how often Close was invoked.
func (p *FakePage) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// Decode copies v into out through JSON, mirroring how the devtools
// protocol returns values by value. out may be nil or *[]byte.
func Decode(v any, out any) error {
	if out == nil {
		return nil
	}
	var raw []byte
	switch x := v.(type) {
	case json.RawMessage:
		raw = x
	case []byte:
		raw = x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	if bp, ok := out.(*[]byte); ok {
		*bp = append([]byte(nil), raw...)
		return nil
	}
	return json.Unmarshal(raw, out)
}

// ─── Browser ───────────────────────────────────────────────────────────

// FakeBrowser implements browser.Browser. NewPageFn customises each page;
// otherwise a bare FakePage is returned.
type FakeBrowser struct {
	NewPageFn  func(id int) *FakePage
	NewPageErr error

	mu         sync.Mutex
	Pages      []*FakePage
	closeCalls int
}

func (b *FakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := len(b.Pages) + 1
	var p *FakePage
	if b.NewPageFn != nil {
		p = b.NewPageFn(id)
	} else {
		p = &FakePage{}
	}
	p.ID = id
	b.Pages = append(b.Pages, p)
	return p, nil
}

func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return nil
}

// PageCount returns how many pages were opened.
func (b *FakeBrowser) PageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Pages)
}

// Page returns the i-th opened page (1-based).
func (b *FakeBrowser) Page(i int) *FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 1 || i > len(b.Pages) {
		return nil
	}
	return b.Pages[i-1]
}

// CloseCalls returns how often Close was invoked.
func (b *FakeBrowser) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeCalls
}

// ─── Launcher / Installer ──────────────────────────────────────────────

// ErrMissingBinary mimics the exec error for an absent browser.
var ErrMissingBinary = errors.New(`exec: "google-chrome": executable file not found in $PATH`)

// FakeLauncher returns Errs[i] on the i-th call (nil or past the end means
// success with Browser). Delay slows every launch down.
type FakeLauncher struct {
	Browser browser.Browser
	Errs    []error
	Delay   time.Duration

	calls atomic.Int32
	mu    sync.Mutex
	Opts  []browser.LaunchOptions
}

func (l *FakeLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	n := int(l.calls.Add(1)) - 1
	l.mu.Lock()
	l.Opts = append(l.Opts, opts)
	l.mu.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n < len(l.Errs) && l.Errs[n] != nil {
		return nil, l.Errs[n]
	}
	if l.Browser == nil {
		return &FakeBrowser{}, nil
	}
	return l.Browser, nil
}

// Calls returns how many launches were attempted.
func (l *FakeLauncher) Calls() int { return int(l.calls.Load()) }

// FakeInstaller counts installs and returns Err.
type FakeInstaller struct {
	Err   error
	OnRun func()
	calls atomic.Int32
}

func (i *FakeInstaller) Install(context.Context) error {
	i.calls.Add(1)
	if i.OnRun != nil {
		i.OnRun()
	}
	return i.Err
}

// Calls returns how many installs were attempted.
func (i *FakeInstaller) Calls() int { return int(i.calls.Load()) }

// ContainsExpr reports whether any recorded expression contains substr.
func (p *FakePage) ContainsExpr(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.Evaluated {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
