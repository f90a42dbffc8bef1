package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/navigate"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Server.ListenAddr())
	assert.Equal(t, navigate.StrategyElementCount, cfg.Scanner.Navigation.Readiness)
	assert.Equal(t, navigate.StrategyNetworkIdle, cfg.Scanner.CookieReadiness)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.Server.Port = 70000
	cfg.Scanner.MaxConcurrent = 0
	cfg.Scanner.Navigation.Readiness = "eventually"
	cfg.Engine.ScriptPath = ""
	cfg.Engine.ScriptURL = ""
	cfg.Log.Output = "file"
	cfg.WebClient.Retries = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.port 70000",
		"max_concurrent",
		`readiness "eventually"`,
		"script_path or script_url",
		"log.file_path",
		"webclient.retries",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeFile(t, "a11yscan.yaml", `
server:
  port: 4000
  allowed_origins: ["https://app.example.com"]
scanner:
  max_concurrent: 8
  navigation:
    timeout: 30s
    readiness: network_idle
log:
  level: debug
  format: text
`)
	t.Setenv("PORT", "8081")
	t.Setenv("RENDER", "true")
	t.Setenv("CHROME_PATH", "/opt/chrome/chrome")
	t.Setenv("A11YSCAN_SCANNER_MAX_CONCURRENT", "2")
	t.Setenv("A11YSCAN_SCANNER_NAVIGATION_SETTLE_DELAY", "250ms")
	t.Setenv("A11YSCAN_WEBCLIENT_RETRIES", "5")

	cfg, err := app.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port, "PORT wins over the file")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Browser.ConstrainedHost)
	assert.Equal(t, "/opt/chrome/chrome", cfg.Browser.ExecPath)
	assert.Equal(t, int64(2), cfg.Scanner.MaxConcurrent)
	assert.Equal(t, 30*time.Second, cfg.Scanner.Navigation.Timeout)
	assert.Equal(t, navigate.StrategyNetworkIdle, cfg.Scanner.Navigation.Readiness)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.Navigation.SettleDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 5, cfg.WebClient.Retries)

	// Untouched settings keep their defaults.
	def := app.DefaultConfig()
	assert.Equal(t, def.Scanner.Navigation.MinElements, cfg.Scanner.Navigation.MinElements)
	assert.Equal(t, def.Engine, cfg.Engine)
	assert.Equal(t, def.WebClient.RetryWaitMax, cfg.WebClient.RetryWaitMax)
	assert.Equal(t, def.Cookies, cfg.Cookies)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := app.Load("")
	require.NoError(t, err)
	assert.Equal(t, app.DefaultConfig().Scanner, cfg.Scanner)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, "bad.yaml", "scanner:\n  max_concurrent: 0\nlog:\n  format: xml\n")
	_, err := app.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent")
	assert.Contains(t, err.Error(), `log.format "xml"`)

	_, err = app.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
