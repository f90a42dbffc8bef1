// Package demoserver serves fixture pages with known accessibility and
// cookie-consent problems. Every page has a broken version 1 and, where it
// makes sense, a fixed version 2 that can be switched at runtime.
package demoserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/a11yscan/internal/logging"
)

// DemoServer is a simple HTTP server for demonstrating scan results.
type DemoServer struct {
	cfg      Config
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
	logger   logging.Logger
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}
	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = cfg.InitialVersion
	}

	return &DemoServer{
		cfg:      cfg,
		pages:    pageMap,
		versions: versions,
		logger:   logger.With(logging.Field{Key: "component", Value: "demoserver"}),
	}
}

// Handler returns the fixture routes.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	// Register page handlers
	for p := range s.pages {
		r.Get(p, s.pageHandler(p))
	}

	// Control panel for version switching
	r.Get("/demo/control", s.controlPanelHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Get("/demo/get-versions", s.getVersionsHandler)
	r.Post("/demo/bump-all", s.bumpAllVersionsHandler)
	r.Post("/demo/reset", s.resetVersionsHandler)

	r.Get("/static/*", s.staticHandler)
	return r
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo server starting",
			logging.Field{Key: "url", Value: fmt.Sprintf("http://localhost:%d", s.cfg.Port)},
			logging.Field{Key: "control_panel", Value: fmt.Sprintf("http://localhost:%d/demo/control", s.cfg.Port)})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// pageVersion returns the current version of p, falling back to the closest
// lower one that exists.
func (s *DemoServer) pageVersion(p string) (PageVersion, bool) {
	s.mu.RLock()
	pageDef, ok := s.pages[p]
	version := s.versions[p]
	s.mu.RUnlock()
	if !ok {
		return PageVersion{}, false
	}
	for v := version; v >= 1; v-- {
		if pv, exists := pageDef.Versions[v]; exists {
			return pv, true
		}
	}
	return PageVersion{}, false
}

// pageHandler returns a handler for a specific page path.
func (s *DemoServer) pageHandler(p string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageVersion, ok := s.pageVersion(p)
		if !ok {
			http.NotFound(w, r)
			return
		}

		// Set headers
		for k, v := range pageVersion.Headers {
			w.Header().Set(k, v)
		}

		// Set cookies
		for _, c := range pageVersion.Cookies {
			http.SetCookie(w, toHTTPCookie(c))
		}

		contentType := pageVersion.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)

		body := strings.ReplaceAll(pageVersion.HTML, thirdPartyOrigin, alternateOrigin(r))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func toHTTPCookie(c CookieDef) *http.Cookie {
	cookie := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		MaxAge:   c.MaxAge,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	switch c.SameSite {
	case "Strict":
		cookie.SameSite = http.SameSiteStrictMode
	case "Lax":
		cookie.SameSite = http.SameSiteLaxMode
	case "None":
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// alternateOrigin swaps localhost and 127.0.0.1 on the request's port.
func alternateOrigin(r *http.Request) string {
	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		host, port = r.Host, ""
	}
	other := "127.0.0.1"
	if host == "127.0.0.1" {
		other = "localhost"
	}
	if port != "" {
		other = net.JoinHostPort(other, port)
	}
	return "http://" + other
}

// 1x1 transparent GIF.
var pixelGIF, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// staticHandler serves placeholder assets by extension.
func (s *DemoServer) staticHandler(w http.ResponseWriter, r *http.Request) {
	switch path.Ext(r.URL.Path) {
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16"><rect width="16" height="16" fill="#888"/></svg>`))
	case ".gif":
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write(pixelGIF)
	default:
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`// Demo static file: ` + r.URL.Path + `
console.log("Loaded: ` + r.URL.Path + `");
`))
	}
}

var controlPanel = template.Must(template.New("control").Parse(controlPanelHTML))

// controlPanelHandler serves the control panel for version management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := struct {
		Pages    map[string]PageDefinition
		Versions map[string]int
	}{
		Pages:    s.pages,
		Versions: s.versions,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, data); err != nil {
		s.logger.Warn("rendering control panel", logging.Err(err))
	}
}

// setVersionHandler sets the version for a specific page.
func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	p := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil || version < 1 {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.pages[p]
	if ok {
		s.versions[p] = version
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}

	s.logger.Info("page version set", logging.Field{Key: "path", Value: p}, logging.Field{Key: "version", Value: version})
	writeJSON(w, map[string]any{
		"success": true,
		"path":    p,
		"version": version,
	})
}

// PageInfo describes one fixture page for /demo/get-versions.
type PageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

// getVersionsHandler returns the current versions of all pages.
func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pages := make([]PageInfo, 0, len(s.pages))
	for p, pageDef := range s.pages {
		versions := make([]int, 0, len(pageDef.Versions))
		for v := range pageDef.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		pages = append(pages, PageInfo{
			Path:              p,
			Description:       pageDef.Description,
			CurrentVersion:    s.versions[p],
			AvailableVersions: versions,
		})
	}
	s.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	writeJSON(w, pages)
}

// bumpAllVersionsHandler increments the version of all pages.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for p := range s.versions {
		s.versions[p]++
		// Cap at max available version
		maxV := 1
		for v := range s.pages[p].Versions {
			if v > maxV {
				maxV = v
			}
		}
		if s.versions[p] > maxV {
			s.versions[p] = maxV
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

// resetVersionsHandler resets all pages to version 1.
func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for p := range s.versions {
		s.versions[p] = 1
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions reset to 1",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const controlPanelHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Fixture Control Panel</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1000px; margin: 0 auto; padding: 20px; background: #f5f5f5; color: #222; }
        h1 { border-bottom: 2px solid #0b5cad; padding-bottom: 10px; }
        .page-card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .page-header { display: flex; justify-content: space-between; align-items: center; }
        .page-path { font-size: 1.2em; font-weight: bold; color: #0b5cad; }
        .version-controls { display: flex; gap: 10px; align-items: center; margin-top: 10px; }
        .version-btn { padding: 8px 16px; border: 1px solid #0b5cad; border-radius: 4px; cursor: pointer; background: white; color: #0b5cad; }
        .version-btn[aria-pressed="true"] { background: #0b5cad; color: white; }
        .global-btn { padding: 10px 20px; margin-right: 10px; border: none; border-radius: 4px; cursor: pointer; background: #1d6b32; color: white; }
        .global-btn.reset { background: #a4161a; }
    </style>
</head>
<body>
    <h1>Fixture Control Panel</h1>
    <p>Version 1 of a page carries the problem; later versions fix it. Scan a page, switch its version, and scan again.</p>

    <section aria-labelledby="global">
        <h2 id="global">Global controls</h2>
        <button class="global-btn" onclick="post('/demo/bump-all')">Bump all versions</button>
        <button class="global-btn reset" onclick="post('/demo/reset')">Reset all to v1</button>
        <p id="status" role="status"></p>
    </section>

    <h2>Pages</h2>
    {{range $path, $page := .Pages}}
    <div class="page-card">
        <div class="page-header">
            <a href="{{$path}}" target="_blank" class="page-path">{{$path}}</a>
            <span>Current: v{{index $.Versions $path}}</span>
        </div>
        <p>{{$page.Description}}</p>
        <div class="version-controls">
            <span>Set version:</span>
            {{range $v, $_ := $page.Versions}}
            <button class="version-btn" aria-pressed="{{if eq (index $.Versions $path) $v}}true{{else}}false{{end}}"
                    onclick="setVersion('{{$path}}', {{$v}})">v{{$v}}</button>
            {{end}}
        </div>
    </div>
    {{end}}

    <script>
        function setVersion(path, version) {
            fetch('/demo/set-version', {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: 'path=' + encodeURIComponent(path) + '&version=' + version
            }).then(function () { location.reload(); });
        }
        function post(url) {
            fetch(url, {method: 'POST'})
                .then(function (r) { return r.json(); })
                .then(function (data) {
                    document.getElementById('status').textContent = data.message;
                    location.reload();
                });
        }
    </script>
</body>
</html>`
