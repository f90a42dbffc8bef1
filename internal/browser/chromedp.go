package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/a11yscan/internal/logging"
)

// ChromeDPLauncher launches Chrome/Chromium through chromedp's exec allocator.
type ChromeDPLauncher struct {
	logger logging.Logger
}

func NewChromeDPLauncher(logger logging.Logger) *ChromeDPLauncher {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &ChromeDPLauncher{logger: logger.With(logging.Field{Key: "backend", Value: "chromedp"})}
}

func (l *ChromeDPLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	for name, value := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives the launch call, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", ctx.Err())
	}

	l.logger.Debug("browser process started", logging.Field{Key: "exec_path", Value: opts.ExecPath})
	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logging.Logger
}

// NewPage opens a tab in a new incognito browser context.
func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser closed: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	p := &chromePage{
		ctx:      tabCtx,
		cancel:   cancel,
		inflight: make(map[network.RequestID]struct{}),
		lastSeen: time.Now(),
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run creates the target; it must use tabCtx itself, so the
	// caller's deadline is applied by racing it instead.
	created := make(chan error, 1)
	go func() { created <- chromedp.Run(tabCtx, network.Enable()) }()
	select {
	case err := <-created:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create page: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, fmt.Errorf("create page: %w", ctx.Err())
	}
	return p, nil
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	lastSeen  time.Time
	onRequest []func(string)
}

func (p *chromePage) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		p.inflight[e.RequestID] = struct{}{}
		p.lastSeen = time.Now()
		hooks := p.onRequest
		p.mu.Unlock()
		if e.Request != nil {
			for _, fn := range hooks {
				fn(e.Request.URL)
			}
		}
	case *network.EventLoadingFinished:
		p.finish(e.RequestID)
	case *network.EventLoadingFailed:
		p.finish(e.RequestID)
	}
}

func (p *chromePage) finish(id network.RequestID) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.lastSeen = time.Now()
	p.mu.Unlock()
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) SetBypassCSP(ctx context.Context, enabled bool) error {
	return p.run(ctx, page.SetBypassCSP(enabled))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) InjectScript(ctx context.Context, source string) error {
	// Discard the completion value: library bundles often end in an object
	// that cannot be returned by value.
	return p.run(ctx, chromedp.Evaluate(source+"\n;void 0;", nil))
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expression, out))
}

func (p *chromePage) EvaluateAsync(ctx context.Context, expression string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expression, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *chromePage) WaitNetworkIdle(ctx context.Context, idleAfter time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		idle := len(p.inflight) == 0 && time.Since(p.lastSeen) >= idleAfter
		p.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *chromePage) OnRequest(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRequest = append(p.onRequest, fn)
}

func (p *chromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		// Storage.getCookies is a browser-level command scoped by context ID.
		cs, err := storage.GetCookies().
			WithBrowserContextID(c.BrowserContextID).
			Do(cdp.WithExecutor(ctx, c.Browser))
		if err != nil {
			return err
		}
		raw = cs
		return nil
	}))
	if err != nil {
		return nil, err
	}

	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		ck := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Session:  c.Session,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		}
		if !c.Session && c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
			ck.Expires = time.Unix(sec, nsec).UTC()
		}
		out = append(out, ck)
	}
	return out, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html))
	return html, err
}

func (p *chromePage) Screenshot(ctx context.Context, full bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if full {
		// Quality 100 keeps the capture in PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab and disposes its browser context. Safe to call twice.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return p.closeErr
}
