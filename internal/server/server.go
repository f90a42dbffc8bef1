package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/raysh454/a11yscan/internal/checklist"
	"github.com/raysh454/a11yscan/internal/compliance"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/scanner"
)

// ScanService runs synchronous scans.
type ScanService interface {
	Scan(ctx context.Context, req model.ScanRequest, progress scanner.Progress) (*model.NormalizedScanResult, error)
	ScanCookies(ctx context.Context, req model.ScanRequest, progress scanner.Progress) (*model.CookieComplianceResult, error)
	Screenshot(ctx context.Context, req model.ScanRequest, full bool, progress scanner.Progress) ([]byte, error)
}

// defaultScreenshotURL is rendered when /screenshot gets no url. It doubles
// as an end-to-end browser check.
const defaultScreenshotURL = "https://example.com"

// JobService runs scans in the background.
type JobService interface {
	Start(ctx context.Context, kind scanner.JobKind, req model.ScanRequest) (*scanner.Job, error)
	Get(jobID string) *scanner.Job
	List() []scanner.Job
	Cancel(jobID string)
}

type Deps struct {
	Scanner    ScanService
	Jobs       JobService
	Compliance *compliance.Table
}

// Server is the HTTP + WebSocket API surface for a11yscan.
type Server struct {
	cfg      Config
	deps     Deps
	router   chi.Router
	upgrader websocket.Upgrader
	limiter  *clientLimiter
	logger   logging.Logger
}

func New(cfg Config, deps Deps, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	if deps.Compliance == nil {
		deps.Compliance = compliance.Default()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger.With(logging.Field{Key: "component", Value: "server"}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newClientLimiter(cfg.RateLimitPerMinute, cfg.RateBurst)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/scan-cookie", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/scan", s.optionsHandler("POST"))
	r.Options("/jobs/scan-cookie", s.optionsHandler("POST"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))

	r.Get("/health", s.handleHealth)

	// Static reference data
	r.Get("/compliance", s.handleListCompliance)
	r.Get("/compliance/{country}", s.handleGetCompliance)
	r.Get("/checklist", s.handleChecklist)

	// Everything that drives the browser is rate limited per client.
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/scan", s.handleScan)
		r.Post("/scan-cookie", s.handleScanCookie)
		r.Get("/screenshot", s.handleScreenshot)

		r.Post("/jobs/scan", s.handleStartJob(scanner.JobScan))
		r.Post("/jobs/scan-cookie", s.handleStartJob(scanner.JobCookie))

		r.Get("/ws/scan", s.handleScanWS)
	})

	// Jobs over REST
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch origin := r.Header.Get("Origin"); {
		case slices.Contains(s.cfg.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	s.router.ServeHTTP(ww, r)

	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
		{Key: "status", Value: ww.Status()},
		{Key: "bytes", Value: ww.BytesWritten()},
		{Key: "elapsed", Value: time.Since(start).String()},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Info("http_request", fields...)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      0, // scans and websockets outlive any fixed write deadline
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeScanRequest reads the JSON body. An empty body decodes to an empty
// request so that validation reports the missing url.
func (s *Server) decodeScanRequest(w http.ResponseWriter, r *http.Request) (model.ScanRequest, bool) {
	var req model.ScanRequest
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("decoding scan request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	return req, true
}

// statusFor maps a scan error to its HTTP status.
func statusFor(err error) int {
	if model.IsClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// handleScan godoc
// @Summary Audit a page for WCAG 2.0 A/AA violations
// @Accept json
// @Produce json
// @Param body body ScanRequest true "page to audit"
// @Success 200 {object} model.NormalizedScanResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scan [post]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScanRequest(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Scanner.Scan(r.Context(), req, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("scan completed",
		logging.Field{Key: "url", Value: res.URL},
		logging.Field{Key: "violations", Value: len(res.Violations)},
		logging.Field{Key: "score", Value: res.Score})
	writeJSON(w, http.StatusOK, res)
}

// handleScanCookie godoc
// @Summary Observe the cookies and third-party requests of a page visit
// @Accept json
// @Produce json
// @Param body body ScanRequest true "page to visit"
// @Success 200 {object} model.CookieComplianceResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scan-cookie [post]
func (s *Server) handleScanCookie(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScanRequest(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Scanner.ScanCookies(r.Context(), req, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("cookie scan completed",
		logging.Field{Key: "url", Value: res.URL},
		logging.Field{Key: "cookies", Value: res.Summary.TotalCookies},
		logging.Field{Key: "score", Value: res.ComplianceScore})
	writeJSON(w, http.StatusOK, res)
}

// handleScreenshot godoc
// @Summary Render a page and return it as PNG
// @Produce png
// @Param url query string false "page to render (default https://example.com)"
// @Param full query bool false "capture the whole page instead of the viewport"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /screenshot [get]
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		target = defaultScreenshotURL
	}
	var full bool
	if v := q.Get("full"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "full must be true or false")
			return
		}
		full = parsed
	}

	img, err := s.deps.Scanner.Screenshot(r.Context(), model.ScanRequest{URL: target}, full, nil)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("screenshot captured",
		logging.Field{Key: "url", Value: target},
		logging.Field{Key: "bytes", Value: len(img)})
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleListCompliance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ComplianceListResponse{Countries: s.deps.Compliance.List()})
}

func (s *Server) handleGetCompliance(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	info, ok := s.deps.Compliance.Lookup(country)
	if !ok {
		writeError(w, http.StatusNotFound, "no compliance information for "+country)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, checklist.Criteria())
}

// Jobs (REST)

func (s *Server) handleStartJob(kind scanner.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.decodeScanRequest(w, r)
		if !ok {
			return
		}
		// The job outlives this request.
		job, err := s.deps.Jobs.Start(context.WithoutCancel(r.Context()), kind, req)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "kind", Value: string(kind)})
		writeJSON(w, http.StatusAccepted, s.deps.Jobs.Get(job.ID))
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Jobs.Get(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.deps.Jobs.Cancel(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Jobs.List())
}

// WebSockets

// handleScanWS streams the state transitions of one scan, then its result.
// Query: url, country, kind=scan|cookie.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ScanRequest{URL: q.Get("url"), Country: q.Get("country")}
	kind := scanner.JobScan
	if q.Get("kind") == string(scanner.JobCookie) {
		kind = scanner.JobCookie
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	job, err := s.deps.Jobs.Start(r.Context(), kind, req)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Err(err))
		_ = conn.WriteJSON(WSError{Type: "error", Error: err.Error()})
		return
	}

	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "kind", Value: string(kind)})

	// Drain client frames so a close or a dropped connection cancels the job
	// without waiting for the next event.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.deps.Jobs.Cancel(job.ID)
				return
			}
		}
	}()

	_ = conn.WriteJSON(s.deps.Jobs.Get(job.ID))

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.deps.Jobs.Cancel(job.ID)
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
