package webclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/raysh454/a11yscan/internal/logging"
)

// NetHTTPClient fetches over net/http. Connection errors and 5xx
// responses are retried with exponential backoff up to Config.Retries times.
type NetHTTPClient struct {
	client *retryablehttp.Client
	cfg    Config
	logger logging.Logger
}

func NewNetHTTPClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("webclient retries must not be negative, got %d", cfg.Retries)
	}
	logger = logger.With(logging.Field{Key: "backend", Value: "nethttp"})

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = leveled{logger}
	rc.RetryMax = cfg.Retries
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	// Hand the last response back once retries run out; callers decide what
	// a non-2xx status means.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	logger.Debug("created nethttp webclient",
		logging.Field{Key: "timeout", Value: httpClient.Timeout.String()},
		logging.Field{Key: "retries", Value: cfg.Retries})

	return &NetHTTPClient{client: rc, cfg: cfg, logger: logger}, nil
}

// Do sends req, retrying transient failures, and reads the whole body.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body any
	if len(req.Body) > 0 {
		body = req.Body
	}
	rreq, err := retryablehttp.NewRequest(method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	rreq = rreq.WithContext(ctx)
	for k, vs := range req.Headers {
		for _, v := range vs {
			rreq.Header.Add(k, v)
		}
	}
	if nhc.cfg.UserAgent != "" && rreq.Header.Get("User-Agent") == "" {
		rreq.Header.Set("User-Agent", nhc.cfg.UserAgent)
	}

	resp, err := nhc.client.Do(rreq)
	if err != nil {
		nhc.logger.Warn("http request failed",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: req.URL},
			logging.Err(err))
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	payload, err := nhc.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL, err)
	}
	return &Response{
		Request:    req,
		Body:       payload,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
	}, nil
}

func (nhc *NetHTTPClient) readBody(r io.Reader) ([]byte, error) {
	limit := nhc.cfg.MaxBodyBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return b, nil
}

// Get is Do for a plain GET.
func (nhc *NetHTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	return nhc.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (nhc *NetHTTPClient) Close() error {
	nhc.client.HTTPClient.CloseIdleConnections()
	return nil
}

// leveled adapts logging.Logger to retryablehttp.LeveledLogger. Request
// chatter goes to debug.
type leveled struct {
	logger logging.Logger
}

func (l leveled) Error(msg string, kv ...any) { l.logger.Warn(msg, kvFields(kv)...) }
func (l leveled) Info(msg string, kv ...any)  { l.logger.Debug(msg, kvFields(kv)...) }
func (l leveled) Debug(msg string, kv ...any) { l.logger.Debug(msg, kvFields(kv)...) }
func (l leveled) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kvFields(kv)...) }

func kvFields(kv []any) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logging.Field{Key: key, Value: kv[i+1]})
	}
	return fields
}
