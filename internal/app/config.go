package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/cookies"
	"github.com/raysh454/a11yscan/internal/demoserver"
	"github.com/raysh454/a11yscan/internal/engine"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/scanner"
	"github.com/raysh454/a11yscan/internal/server"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// EnvPrefix namespaces environment overrides: A11YSCAN_SCANNER_MAX_CONCURRENT
// sets scanner.max_concurrent.
const EnvPrefix = "A11YSCAN"

// Config is the runtime configuration of every module.
type Config struct {
	Log       logging.Config    `mapstructure:"log"`
	Server    server.Config     `mapstructure:"server"`
	Browser   browser.Config    `mapstructure:"browser"`
	WebClient webclient.Config  `mapstructure:"webclient"`
	Engine    engine.Config     `mapstructure:"engine"`
	Cookies   cookies.Config    `mapstructure:"cookies"`
	Scanner   scanner.Config    `mapstructure:"scanner"`
	Demo      demoserver.Config `mapstructure:"demo"`
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:       logging.DefaultConfig(),
		Server:    server.DefaultConfig(),
		Browser:   browser.DefaultConfig(),
		WebClient: webclient.DefaultConfig(),
		Engine:    engine.DefaultConfig(),
		Cookies:   cookies.DefaultConfig(),
		Scanner:   scanner.DefaultConfig(),
		Demo:      demoserver.DefaultConfig(),
	}
}

// envKeys are the settings that can be overridden from the environment.
// Each maps to A11YSCAN_<KEY> with dots replaced by underscores.
var envKeys = []string{
	"log.level", "log.format", "log.output", "log.file_path",
	"server.host", "server.allowed_origins", "server.rate_limit_per_minute", "server.rate_burst",
	"browser.install_dir", "browser.install_command", "browser.headless", "browser.launch_timeout",
	"webclient.timeout", "webclient.retries",
	"engine.script_path", "engine.script_url", "engine.audit_timeout",
	"scanner.max_concurrent", "scanner.queue_timeout", "scanner.job_history",
	"scanner.navigation.timeout", "scanner.navigation.readiness", "scanner.navigation.settle_delay",
	"scanner.cookie_readiness",
	"demo.port",
}

// aliases are well-known variables set by hosting platforms.
var aliases = map[string][]string{
	"server.port":              {"PORT"},
	"browser.exec_path":        {"CHROME_PATH"},
	"browser.constrained_host": {"RENDER"},
}

// Load reads .env (if present), then the optional config file at path, then
// the environment, on top of DefaultConfig.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	for key, names := range aliases {
		own := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, own}, names...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("server.rate_limit_per_minute must not be negative"))
	}
	if c.WebClient.Retries < 0 {
		errs = append(errs, errors.New("webclient.retries must not be negative"))
	}
	if c.Scanner.MaxConcurrent < 1 {
		errs = append(errs, errors.New("scanner.max_concurrent must be at least 1"))
	}
	if !c.Scanner.Navigation.Readiness.Valid() {
		errs = append(errs, fmt.Errorf("scanner.navigation.readiness %q is not one of none, element_count, network_idle", c.Scanner.Navigation.Readiness))
	}
	if !c.Scanner.CookieReadiness.Valid() {
		errs = append(errs, fmt.Errorf("scanner.cookie_readiness %q is not one of none, element_count, network_idle", c.Scanner.CookieReadiness))
	}
	if c.Scanner.Navigation.Timeout <= 0 {
		errs = append(errs, errors.New("scanner.navigation.timeout must be positive"))
	}
	if c.Engine.ScriptPath == "" && c.Engine.ScriptURL == "" {
		errs = append(errs, errors.New("engine needs script_path or script_url"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", c.Log.Format))
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			errs = append(errs, errors.New("log.file_path is required when log.output is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("log.output %q is not stdout, stderr or file", c.Log.Output))
	}
	return errors.Join(errs...)
}

// fileExists is used to pick up a default config file next to the binary.
func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// DefaultConfigFile returns a11yscan.yaml in the working directory when
// present, or "".
func DefaultConfigFile() string {
	for _, p := range []string{"a11yscan.yaml", "a11yscan.yml"} {
		if fileExists(p) {
			return p
		}
	}
	return ""
}
