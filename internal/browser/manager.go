package browser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// launchFuture is the single shared launch. done is closed once browser or
// err is set; both are immutable afterwards.
type launchFuture struct {
	done    chan struct{}
	browser Browser
	err     error
}

// Manager owns the process-wide browser. The first Ensure launches it, every
// concurrent caller waits on that same launch, and the outcome (handle or
// failure) is cached until Close.
type Manager struct {
	cfg       Config
	launcher  Launcher
	installer Installer
	resolver  *Resolver
	logger    logging.Logger

	// ctx bounds the launch itself, independent of any single request.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	launch *launchFuture
	state  State
	closed bool
}

// NewManager wires a manager. installer may be nil to disable self-healing.
func NewManager(cfg Config, launcher Launcher, installer Installer, resolver *Resolver, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop{}
	}
	if resolver == nil {
		resolver = NewResolver(cfg, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		launcher:  launcher,
		installer: installer,
		resolver:  resolver,
		logger:    logger.With(logging.Field{Key: "component", Value: "browser-manager"}),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// Ensure returns the shared browser, launching it on first use. ctx only
// bounds how long this caller waits; it never aborts the shared launch.
func (m *Manager) Ensure(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, model.NewScanError(model.ErrBrowserUnavailable, "acquiring", errors.New("browser manager closed"))
	}
	f := m.launch
	if f == nil {
		f = &launchFuture{done: make(chan struct{})}
		m.launch = f
		m.state = StateLaunching
		go m.run(f)
	}
	m.mu.Unlock()

	select {
	case <-f.done:
		return f.browser, f.err
	case <-ctx.Done():
		return nil, model.NewScanError(model.ErrBrowserUnavailable, "acquiring", ctx.Err())
	}
}

// State reports where the shared handle is in its lifecycle.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) run(f *launchFuture) {
	b, err := m.launchWithRecovery(m.ctx)

	m.mu.Lock()
	if err != nil {
		f.err = model.NewScanError(model.ErrBrowserUnavailable, "acquiring", err)
		m.state = StateFailed
		m.logger.Error("browser unavailable", logging.Err(err))
	} else {
		f.browser = b
		m.state = StateReady
		m.logger.Info("browser ready")
	}
	m.mu.Unlock()
	close(f.done)
}

// launchWithRecovery tries once; a missing binary earns exactly one install
// and one more launch. Nothing else is retried. LaunchTimeout bounds each
// launch on its own; the install is bounded only by the installer.
func (m *Manager) launchWithRecovery(ctx context.Context) (Browser, error) {
	path := m.resolver.Resolve()
	m.logger.Info("launching browser", logging.Field{Key: "exec_path", Value: path})

	b, err := m.launchOnce(ctx, path)
	if err == nil {
		return b, nil
	}
	m.logger.Warn("browser launch failed", logging.Err(err), logging.Field{Key: "exec_path", Value: path})

	if !IsMissingBinary(err) || m.installer == nil {
		return nil, err
	}

	if ierr := m.installer.Install(ctx); ierr != nil {
		return nil, fmt.Errorf("install browser after launch failure (%v): %w", err, ierr)
	}

	path = m.resolver.Resolve()
	m.logger.Info("relaunching browser after install", logging.Field{Key: "exec_path", Value: path})
	b, err = m.launchOnce(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("relaunch after install: %w", err)
	}
	return b, nil
}

func (m *Manager) launchOnce(ctx context.Context, path string) (Browser, error) {
	if m.cfg.LaunchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.LaunchTimeout)
		defer cancel()
	}
	return m.launcher.Launch(ctx, m.launchOptions(path))
}

func (m *Manager) launchOptions(path string) LaunchOptions {
	flags := make(map[string]any, len(containerFlags))
	for k, v := range containerFlags {
		flags[k] = v
	}
	return LaunchOptions{
		ExecPath: path,
		Headless: m.cfg.Headless,
		Flags:    flags,
	}
}

// Close tears down the browser. Later Ensure calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	f := m.launch
	m.mu.Unlock()

	m.cancel()
	if f == nil {
		return nil
	}
	<-f.done
	if f.browser == nil {
		return nil
	}
	m.logger.Info("closing browser")
	return f.browser.Close()
}

var missingBinaryMarkers = []string{
	"executable file not found",
	"no such file or directory",
	"playwright install",
	"could not find",
	"cannot find",
}

// IsMissingBinary reports whether a launch error means the browser binary is
// not installed.
func IsMissingBinary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range missingBinaryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
