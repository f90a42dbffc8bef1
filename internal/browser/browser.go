// Package browser owns the headless browser process and hands out isolated
// pages to scans.
package browser

import (
	"context"
	"time"
)

// State is the lifecycle of the shared browser handle.
type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// Browser is one running browser process.
type Browser interface {
	// NewPage opens a page inside a fresh, isolated browsing context.
	NewPage(ctx context.Context) (Page, error)

	Close() error
}

// Page is the capability object scans drive. Every page lives in its own
// browsing context: cookies, cache and storage are not shared.
type Page interface {
	// SetBypassCSP must be called before Navigate to take effect.
	SetBypassCSP(ctx context.Context, enabled bool) error

	// Navigate loads url and returns once the load event fired.
	Navigate(ctx context.Context, url string) error

	// InjectScript evaluates source in the page's main world.
	InjectScript(ctx context.Context, source string) error

	// Evaluate runs expression and decodes its JSON value into out. out may
	// be a *[]byte to receive the raw JSON, or nil to discard the result.
	Evaluate(ctx context.Context, expression string, out any) error

	// EvaluateAsync is Evaluate for expressions returning a promise.
	EvaluateAsync(ctx context.Context, expression string, out any) error

	// WaitNetworkIdle blocks until no request has been in flight for idleAfter.
	WaitNetworkIdle(ctx context.Context, idleAfter time.Duration) error

	// OnRequest registers fn for every outgoing request URL. Register
	// before Navigate.
	OnRequest(fn func(url string))

	// Cookies returns every cookie visible to the page's browsing context.
	Cookies(ctx context.Context) ([]Cookie, error)

	// HTML returns the serialised document.
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the viewport, or the whole page when full is set,
	// as PNG.
	Screenshot(ctx context.Context, full bool) ([]byte, error)

	// Close releases the page and its browsing context.
	Close() error
}

// Cookie is a browser cookie as reported by the devtools protocol.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero for session cookies
	Session  bool
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// LaunchOptions is what the Manager hands to a Launcher.
type LaunchOptions struct {
	// ExecPath is the browser binary; empty lets the launcher resolve it.
	ExecPath string
	Headless bool
	Flags    map[string]any
}

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Installer fetches a browser binary at runtime.
type Installer interface {
	Install(ctx context.Context) error
}
