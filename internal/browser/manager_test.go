package browser_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/testutil"
)

func newManager(l browser.Launcher, i browser.Installer) *browser.Manager {
	cfg := browser.DefaultConfig()
	cfg.LaunchTimeout = 5 * time.Second
	r := browser.NewResolver(cfg, afero.NewMemMapFs()).
		WithEnv(func(string) string { return "" }).
		WithSystemPaths(nil)
	return browser.NewManager(cfg, l, i, r, &testutil.DummyLogger{})
}

func TestManager_ConcurrentEnsureLaunchesOnce(t *testing.T) {
	t.Parallel()
	fb := &testutil.FakeBrowser{}
	l := &testutil.FakeLauncher{Browser: fb, Delay: 50 * time.Millisecond}
	m := newManager(l, nil)
	defer m.Close()

	const n = 16
	var wg sync.WaitGroup
	handles := make([]browser.Browser, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = m.Ensure(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, l.Calls())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, fb, handles[i])
	}
	assert.Equal(t, browser.StateReady, m.State())
}

func TestManager_LaunchOptionsCarryContainerFlags(t *testing.T) {
	t.Parallel()
	l := &testutil.FakeLauncher{}
	m := newManager(l, nil)
	defer m.Close()

	_, err := m.Ensure(context.Background())
	require.NoError(t, err)
	require.Len(t, l.Opts, 1)
	opts := l.Opts[0]
	assert.True(t, opts.Headless)
	assert.Equal(t, true, opts.Flags["no-sandbox"])
	assert.Equal(t, true, opts.Flags["disable-dev-shm-usage"])
}

func TestManager_FailureIsCached(t *testing.T) {
	t.Parallel()
	l := &testutil.FakeLauncher{Errs: []error{errors.New("crashpad: permission denied")}}
	inst := &testutil.FakeInstaller{}
	m := newManager(l, inst)
	defer m.Close()

	_, err := m.Ensure(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
	assert.Equal(t, browser.StateFailed, m.State())

	start := time.Now()
	_, err2 := m.Ensure(context.Background())
	require.Error(t, err2)
	assert.ErrorIs(t, err2, model.ErrBrowserUnavailable)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 1, l.Calls(), "a failed launch must not be retried by later callers")
	assert.Equal(t, 0, inst.Calls(), "only a missing binary triggers install")
}

func TestManager_MissingBinaryInstallsOnceAndRetriesOnce(t *testing.T) {
	t.Parallel()

	t.Run("retry succeeds", func(t *testing.T) {
		t.Parallel()
		l := &testutil.FakeLauncher{Errs: []error{testutil.ErrMissingBinary}}
		inst := &testutil.FakeInstaller{}
		m := newManager(l, inst)
		defer m.Close()

		b, err := m.Ensure(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, b)
		assert.Equal(t, 1, inst.Calls())
		assert.Equal(t, 2, l.Calls())
	})

	t.Run("retry fails", func(t *testing.T) {
		t.Parallel()
		l := &testutil.FakeLauncher{Errs: []error{testutil.ErrMissingBinary, testutil.ErrMissingBinary, testutil.ErrMissingBinary}}
		inst := &testutil.FakeInstaller{}
		m := newManager(l, inst)
		defer m.Close()

		_, err := m.Ensure(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
		assert.Equal(t, 1, inst.Calls())
		assert.Equal(t, 2, l.Calls())

		_, err = m.Ensure(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, inst.Calls())
		assert.Equal(t, 2, l.Calls())
	})

	t.Run("install fails", func(t *testing.T) {
		t.Parallel()
		l := &testutil.FakeLauncher{Errs: []error{testutil.ErrMissingBinary}}
		inst := &testutil.FakeInstaller{Err: errors.New("npx: not found")}
		m := newManager(l, inst)
		defer m.Close()

		_, err := m.Ensure(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
		assert.Contains(t, err.Error(), "npx: not found")
		assert.Equal(t, 1, l.Calls())
	})

	t.Run("no installer", func(t *testing.T) {
		t.Parallel()
		l := &testutil.FakeLauncher{Errs: []error{testutil.ErrMissingBinary}}
		m := newManager(l, nil)
		defer m.Close()

		_, err := m.Ensure(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, l.Calls())
	})
}

func TestManager_InstallOutlastsLaunchTimeout(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cfg := browser.DefaultConfig()
	cfg.LaunchTimeout = 200 * time.Millisecond
	cfg.InstallTimeout = 10 * time.Second
	cfg.InstallCommand = []string{"sleep", "0.5"}
	r := browser.NewResolver(cfg, afero.NewMemMapFs()).
		WithEnv(func(string) string { return "" }).
		WithSystemPaths(nil)

	l := &testutil.FakeLauncher{Errs: []error{testutil.ErrMissingBinary}}
	inst := browser.NewCommandInstaller(cfg, "", nil)
	m := browser.NewManager(cfg, l, inst, r, &testutil.DummyLogger{})
	defer m.Close()

	b, err := m.Ensure(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 2, l.Calls())
	assert.Equal(t, browser.StateReady, m.State())
}

func TestManager_LaunchTimeoutAppliesPerLaunch(t *testing.T) {
	t.Parallel()
	cfg := browser.DefaultConfig()
	cfg.LaunchTimeout = 50 * time.Millisecond
	r := browser.NewResolver(cfg, afero.NewMemMapFs()).
		WithEnv(func(string) string { return "" }).
		WithSystemPaths(nil)

	l := &testutil.FakeLauncher{Delay: time.Second}
	m := browser.NewManager(cfg, l, nil, r, &testutil.DummyLogger{})
	defer m.Close()

	start := time.Now()
	_, err := m.Ensure(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestManager_CallerContextBoundsWaitOnly(t *testing.T) {
	t.Parallel()
	l := &testutil.FakeLauncher{Delay: 200 * time.Millisecond}
	m := newManager(l, nil)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Ensure(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBrowserUnavailable)

	// The shared launch carried on regardless.
	b, err := m.Ensure(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 1, l.Calls())
}

func TestManager_Close(t *testing.T) {
	t.Parallel()
	fb := &testutil.FakeBrowser{}
	m := newManager(&testutil.FakeLauncher{Browser: fb}, nil)

	_, err := m.Ensure(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, fb.CloseCalls())

	_, err = m.Ensure(context.Background())
	assert.ErrorIs(t, err, model.ErrBrowserUnavailable)
}

func TestManager_CloseBeforeLaunch(t *testing.T) {
	t.Parallel()
	l := &testutil.FakeLauncher{}
	m := newManager(l, nil)
	require.NoError(t, m.Close())
	assert.Equal(t, 0, l.Calls())
}

func TestIsMissingBinary(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"exec not found", &exec.Error{Name: "chrome", Err: exec.ErrNotFound}, true},
		{"wrapped exec", fmt.Errorf("start browser: %w", &exec.Error{Name: "chrome", Err: exec.ErrNotFound}), true},
		{"playwright hint", errors.New("Executable doesn't exist. Please run: npx playwright install"), true},
		{"enoent", errors.New("fork/exec /usr/bin/chromium: no such file or directory"), true},
		{"crash", errors.New("chrome failed to start: Trace/breakpoint trap"), false},
		{"timeout", context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, browser.IsMissingBinary(tc.err))
		})
	}
}
