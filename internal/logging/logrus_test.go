package logging_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/logging"
)

func TestNew_JSONIncludesComponentAndFields(t *testing.T) {
	t.Parallel()
	l, err := logging.New(logging.DefaultConfig(), "scanner")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.With(logging.Field{Key: "scan_id", Value: "abc"}).Info("scan started", logging.Field{Key: "url", Value: "https://example.com"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan started", entry["msg"])
	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, "https://example.com", entry["url"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	t.Parallel()
	cfg := logging.DefaultConfig()
	cfg.Level = "warn"
	l, err := logging.New(cfg, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()
	cfg := logging.DefaultConfig()
	cfg.Level = "loud"
	l, err := logging.New(cfg, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Debug("dropped")
	l.Info("kept")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNew_RejectsUnknownFormatAndOutput(t *testing.T) {
	t.Parallel()
	cfg := logging.DefaultConfig()
	cfg.Format = "xml"
	_, err := logging.New(cfg, "")
	assert.Error(t, err)

	cfg = logging.DefaultConfig()
	cfg.Output = "syslog"
	_, err = logging.New(cfg, "")
	assert.Error(t, err)

	cfg = logging.DefaultConfig()
	cfg.Output = "file"
	_, err = logging.New(cfg, "")
	assert.Error(t, err, "file output without a path")
}

func TestNew_FileOutputCreatesDirectory(t *testing.T) {
	t.Parallel()
	cfg := logging.DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "a11yscan.log")

	l, err := logging.New(cfg, "test")
	require.NoError(t, err)
	l.Info("written to file")
}

func TestErrField(t *testing.T) {
	t.Parallel()
	assert.Equal(t, logging.Field{Key: "error", Value: nil}, logging.Err(nil))
	assert.Equal(t, assert.AnError.Error(), logging.Err(assert.AnError).Value)
}
