package observability

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-call identifier for correlating client and server logs.
const RequestIDHeader = "X-Request-Id"

// Transport logs outbound requests. Headers, query strings and bodies are never
// logged since they may carry credentials or passwords.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base (http.DefaultTransport if nil) with request logging.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		// RoundTrippers must not modify the caller's request
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	ctx := req.Context()
	target := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	start := time.Now()

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		logger.WarnContext(ctx, "request failed",
			"method", req.Method,
			"url", target,
			"request_id", requestID,
			"duration", duration,
			"error", err,
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "request completed",
		"method", req.Method,
		"url", target,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", duration,
	)

	return resp, nil
}
