package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/compliance"
	"github.com/raysh454/a11yscan/internal/cookies"
	"github.com/raysh454/a11yscan/internal/engine"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/navigate"
	"github.com/raysh454/a11yscan/internal/scanner"
	"github.com/raysh454/a11yscan/internal/server"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Application is the global runtime state container.
// It holds config and the core services that are shared across modules.
// Pass Application into modules that need access to the global state rather
// than using package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger

	Browsers  *browser.Manager
	WebClient webclient.WebClient
	Scanner   *scanner.Scanner
	Jobs      *scanner.Jobs
	Server    *server.Server

	// internal context for cancellation / lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// Options swaps out the pieces that touch the outside world. Zero values
// select the production implementations.
type Options struct {
	Fs        afero.Fs
	Launcher  browser.Launcher
	Installer browser.Installer
	Engine    engine.Engine
}

// NewApplication builds the service graph. Nothing is launched until the
// first scan asks for the browser.
func NewApplication(cfg *Config, logger logging.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	wc, err := webclient.NewNetHTTPClient(cfg.WebClient, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("new webclient: %w", err)
	}

	resolver := browser.NewResolver(cfg.Browser, opts.Fs)
	if opts.Launcher == nil {
		opts.Launcher = browser.NewChromeDPLauncher(logger)
	}
	if opts.Installer == nil && len(cfg.Browser.InstallCommand) > 0 {
		opts.Installer = browser.NewCommandInstaller(cfg.Browser, resolver.InstallDir(), logger)
	}
	mgr := browser.NewManager(cfg.Browser, opts.Launcher, opts.Installer, resolver, logger)

	if opts.Engine == nil {
		opts.Engine = engine.NewAxe(cfg.Engine, opts.Fs, wc, logger)
	}

	table := compliance.Default()
	sc := scanner.New(cfg.Scanner, scanner.Deps{
		Browsers:   mgr,
		Factory:    browser.NewFactory(logger),
		Navigator:  navigate.NewController(logger),
		Engine:     opts.Engine,
		Observer:   cookies.NewObserver(cfg.Cookies, logger),
		Compliance: table,
	}, logger)
	jobs := scanner.NewJobs(sc, cfg.Scanner.JobHistory, logger)

	srv := server.New(cfg.Server, server.Deps{Scanner: sc, Jobs: jobs, Compliance: table}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:    cfg,
		Logger:    logger,
		Browsers:  mgr,
		WebClient: wc,
		Scanner:   sc,
		Jobs:      jobs,
		Server:    srv,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Warm launches the shared browser ahead of the first request. A failure is
// logged and cached by the manager; the server stays up for /health.
func (a *Application) Warm(ctx context.Context) {
	start := time.Now()
	if _, err := a.Browsers.Ensure(ctx); err != nil {
		a.Logger.Warn("browser warm-up failed", logging.Err(err))
		return
	}
	a.Logger.Info("browser ready", logging.Field{Key: "elapsed", Value: time.Since(start).String()})
}

// Done is closed once Shutdown has run.
func (a *Application) Done() <-chan struct{} {
	return a.ctx.Done()
}

// Shutdown releases the shared browser and idle HTTP connections.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	done := make(chan error, 1)
	go func() {
		var errs []error
		if err := a.Browsers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := a.WebClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close webclient: %w", err))
		}
		done <- errors.Join(errs...)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	// cancel internal ctx to signal local components/tests
	a.cancel()
	return err
}
