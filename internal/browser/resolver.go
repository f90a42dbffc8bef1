package browser

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Environment variables consulted for a browser binary, in order.
var envExecVars = []string{"CHROME_BIN", "CHROMIUM_PATH", "PUPPETEER_EXECUTABLE_PATH"}

// Well-known OS package locations.
var systemExecPaths = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/google-chrome",
	"/snap/bin/chromium",
	"/opt/google/chrome/chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// Vendored layouts under the install dir. Desktop builds are preferred over
// the headless shell.
var vendoredPatterns = []string{
	filepath.Join("chromium-*", "chrome-linux", "chrome"),
	filepath.Join("chromium-*", "chrome-linux64", "chrome"),
	filepath.Join("chromium_headless_shell-*", "chrome-linux", "headless_shell"),
	filepath.Join("chromium_headless_shell-*", "chrome-headless-shell-linux64", "chrome-headless-shell"),
}

// Resolver picks the browser binary to launch.
type Resolver struct {
	fs              afero.Fs
	getenv          func(string) string
	override        string
	constrainedHost bool
	installDir      string
	systemPaths     []string
}

// NewResolver builds a resolver over fs. A nil fs means the OS filesystem.
func NewResolver(cfg Config, fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{
		fs:              fs,
		getenv:          os.Getenv,
		override:        cfg.ExecPath,
		constrainedHost: cfg.ConstrainedHost,
		installDir:      cfg.InstallDir,
		systemPaths:     systemExecPaths,
	}
}

// WithEnv replaces the environment lookup, for tests.
func (r *Resolver) WithEnv(getenv func(string) string) *Resolver {
	r.getenv = getenv
	return r
}

// WithSystemPaths replaces the OS package candidates, for tests.
func (r *Resolver) WithSystemPaths(paths []string) *Resolver {
	r.systemPaths = paths
	return r
}

// Resolve returns the binary to launch, or "" to let the launcher find one.
//
// Order: explicit override, environment, then vendored install and OS
// packages (vendored first on constrained hosts, last otherwise).
func (r *Resolver) Resolve() string {
	if r.override != "" {
		return r.override
	}
	for _, key := range envExecVars {
		if p := r.getenv(key); p != "" && r.isFile(p) {
			return p
		}
	}

	if r.constrainedHost {
		if p := r.Vendored(); p != "" {
			return p
		}
		return r.system()
	}
	if p := r.system(); p != "" {
		return p
	}
	return r.Vendored()
}

// Vendored searches the install dir for a runtime-installed binary.
func (r *Resolver) Vendored() string {
	dir := r.InstallDir()
	if dir == "" {
		return ""
	}
	for _, pattern := range vendoredPatterns {
		matches, err := afero.Glob(r.fs, filepath.Join(dir, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		// Highest revision last.
		sort.Strings(matches)
		for i := len(matches) - 1; i >= 0; i-- {
			if r.isFile(matches[i]) {
				return matches[i]
			}
		}
	}
	return ""
}

// InstallDir is the configured dir, PLAYWRIGHT_BROWSERS_PATH, or the
// playwright default cache under the user's home.
func (r *Resolver) InstallDir() string {
	if r.installDir != "" {
		return r.installDir
	}
	if p := r.getenv("PLAYWRIGHT_BROWSERS_PATH"); p != "" && p != "0" {
		return p
	}
	if home := r.getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", "ms-playwright")
	}
	return ""
}

func (r *Resolver) system() string {
	for _, p := range r.systemPaths {
		if r.isFile(p) {
			return p
		}
	}
	return ""
}

func (r *Resolver) isFile(p string) bool {
	fi, err := r.fs.Stat(p)
	return err == nil && !fi.IsDir()
}
