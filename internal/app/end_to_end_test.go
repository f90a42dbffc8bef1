package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/demoserver"
	"github.com/raysh454/a11yscan/internal/engine"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/navigate"
	"github.com/raysh454/a11yscan/internal/testutil"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Drives the real browser and axe-core against the fixture site. Skips when
// either is unavailable.
func TestEndToEnd_MissingAltFixture(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end scan in -short mode")
	}
	logger := &testutil.DummyLogger{}

	fixtures := httptest.NewServer(demoserver.NewDemoServer(demoserver.DefaultConfig(), logger).Handler())
	defer fixtures.Close()

	cfg := app.DefaultConfig()
	cfg.Browser.InstallCommand = nil
	cfg.Scanner.Navigation = navigate.Options{Timeout: 30 * time.Second, Readiness: navigate.StrategyNone}

	wc, err := webclient.NewNetHTTPClient(cfg.WebClient, logger, nil)
	require.NoError(t, err)
	defer wc.Close()
	axe := engine.NewAxe(cfg.Engine, afero.NewOsFs(), wc, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	if _, err := axe.Source(ctx); err != nil {
		t.Skipf("axe-core not available: %v", err)
	}

	a, err := app.NewApplication(cfg, logger, app.Options{Engine: axe})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()
	if _, err := a.Browsers.Ensure(ctx); err != nil {
		t.Skipf("chrome not available: %v", err)
	}

	api := httptest.NewServer(a.Server)
	defer api.Close()

	body, err := json.Marshal(model.ScanRequest{URL: fixtures.URL + "/missing-alt", Country: "United States"})
	require.NoError(t, err)
	resp, err := http.Post(api.URL+"/scan", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.NormalizedScanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))

	var ids []string
	for _, v := range res.Violations {
		ids = append(ids, v.ID)
	}
	assert.Contains(t, ids, "image-alt")
	assert.Positive(t, res.Passes)
	assert.False(t, res.Timestamp.IsZero())
	assert.Less(t, res.Score, 100)
	require.NotNil(t, res.Compliance)
	assert.Contains(t, res.Compliance.Standard, "ADA")
}
