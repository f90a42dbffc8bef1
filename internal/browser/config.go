package browser

import "time"

type Config struct {
	// ExecPath is an explicit browser binary override.
	ExecPath string `mapstructure:"exec_path"`

	// ConstrainedHost prefers the vendored install over OS packages when
	// resolving the binary. Set on PaaS hosts without a system Chrome.
	ConstrainedHost bool `mapstructure:"constrained_host"`

	// InstallDir is searched for vendored binaries and is where
	// InstallCommand puts them.
	InstallDir string `mapstructure:"install_dir"`

	// InstallCommand runs once when the first launch reports a missing
	// binary. Empty disables self-healing.
	InstallCommand []string `mapstructure:"install_command"`

	InstallTimeout time.Duration `mapstructure:"install_timeout"`
	LaunchTimeout  time.Duration `mapstructure:"launch_timeout"`
	Headless       bool          `mapstructure:"headless"`
}

func DefaultConfig() Config {
	return Config{
		InstallDir:     "",
		InstallCommand: []string{"npx", "--yes", "playwright", "install", "chromium"},
		InstallTimeout: 5 * time.Minute,
		LaunchTimeout:  30 * time.Second,
		Headless:       true,
	}
}

// containerFlags disable the OS sandbox layers that fail inside containers.
var containerFlags = map[string]any{
	"no-sandbox":             true,
	"disable-setuid-sandbox": true,
	"disable-dev-shm-usage":  true,
	"disable-gpu":            true,
	"no-first-run":           true,
	"mute-audio":             true,
}
