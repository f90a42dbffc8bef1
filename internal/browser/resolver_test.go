package browser_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/browser"
)

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte("#!/bin/true"), 0o755))
}

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolver_OverrideWins(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs, "/usr/bin/chromium")

	cfg := browser.DefaultConfig()
	cfg.ExecPath = "/custom/chrome"
	r := browser.NewResolver(cfg, fs).
		WithEnv(envOf(nil)).
		WithSystemPaths([]string{"/usr/bin/chromium"})

	assert.Equal(t, "/custom/chrome", r.Resolve())
}

func TestResolver_EnvMustExist(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs, "/opt/chromium/chrome")
	touch(t, fs, "/usr/bin/chromium")

	r := browser.NewResolver(browser.DefaultConfig(), fs).
		WithSystemPaths([]string{"/usr/bin/chromium"})

	r.WithEnv(envOf(map[string]string{"CHROME_BIN": "/missing/chrome", "CHROMIUM_PATH": "/opt/chromium/chrome"}))
	assert.Equal(t, "/opt/chromium/chrome", r.Resolve())

	r.WithEnv(envOf(map[string]string{"CHROME_BIN": "/missing/chrome"}))
	assert.Equal(t, "/usr/bin/chromium", r.Resolve())
}

func TestResolver_ConstrainedHostPrefersVendored(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs, "/usr/bin/chromium")
	touch(t, fs, "/srv/browsers/chromium-1100/chrome-linux/chrome")
	touch(t, fs, "/srv/browsers/chromium-1200/chrome-linux/chrome")

	cfg := browser.DefaultConfig()
	cfg.InstallDir = "/srv/browsers"

	normal := browser.NewResolver(cfg, fs).
		WithEnv(envOf(nil)).
		WithSystemPaths([]string{"/usr/bin/chromium"})
	assert.Equal(t, "/usr/bin/chromium", normal.Resolve())

	cfg.ConstrainedHost = true
	constrained := browser.NewResolver(cfg, fs).
		WithEnv(envOf(nil)).
		WithSystemPaths([]string{"/usr/bin/chromium"})
	assert.Equal(t, "/srv/browsers/chromium-1200/chrome-linux/chrome", constrained.Resolve())
}

func TestResolver_FallsBackToVendoredWithoutSystemBrowser(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs, "/home/app/.cache/ms-playwright/chromium_headless_shell-1187/chrome-linux/headless_shell")

	r := browser.NewResolver(browser.DefaultConfig(), fs).
		WithEnv(envOf(map[string]string{"HOME": "/home/app"})).
		WithSystemPaths([]string{"/usr/bin/chromium"})

	assert.Equal(t, "/home/app/.cache/ms-playwright", r.InstallDir())
	assert.Equal(t, "/home/app/.cache/ms-playwright/chromium_headless_shell-1187/chrome-linux/headless_shell", r.Resolve())
}

func TestResolver_NothingFound(t *testing.T) {
	t.Parallel()
	r := browser.NewResolver(browser.DefaultConfig(), afero.NewMemMapFs()).
		WithEnv(envOf(nil)).
		WithSystemPaths([]string{"/usr/bin/chromium"})

	assert.Empty(t, r.Resolve())
	assert.Empty(t, r.InstallDir())
}

func TestResolver_InstallDirFromPlaywrightEnv(t *testing.T) {
	t.Parallel()
	r := browser.NewResolver(browser.DefaultConfig(), afero.NewMemMapFs())

	r.WithEnv(envOf(map[string]string{"PLAYWRIGHT_BROWSERS_PATH": "/pw", "HOME": "/home/app"}))
	assert.Equal(t, "/pw", r.InstallDir())

	// "0" means "inside node_modules", which we do not search.
	r.WithEnv(envOf(map[string]string{"PLAYWRIGHT_BROWSERS_PATH": "0", "HOME": "/home/app"}))
	assert.Equal(t, "/home/app/.cache/ms-playwright", r.InstallDir())
}
