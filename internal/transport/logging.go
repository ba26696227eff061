// Package transport contains http.Client middleware shared by every
// remote collaborator (backend gateway, identity provider, upload
// service).
//
// WHAT IS CLIENT-SIDE MIDDLEWARE?
// On the server we wrap http.Handler; on the client the equivalent seam
// is http.RoundTripper — the interface http.Client uses to execute a
// single request. Wrapping it adds cross-cutting behaviour (logging,
// request IDs) without touching any call site:
//
//	func (t *myTripper) RoundTrip(req *http.Request) (*http.Response, error) {
//	    // Do something BEFORE the request goes out
//	    resp, err := t.next.RoundTrip(req)
//	    // Do something AFTER the response arrives
//	    return resp, err
//	}
package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
)

// loggingTripper wraps a RoundTripper and logs each request with slog.
type loggingTripper struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// NewLoggingClient returns an *http.Client whose requests are logged:
// method, path, status, duration, and a generated request ID. The same
// ID is sent in the X-Request-ID header so client and backend logs can
// be correlated.
func NewLoggingClient(logger *slog.Logger) *http.Client {
	return &http.Client{
		Transport: &loggingTripper{
			next:   http.DefaultTransport,
			logger: logger,
		},
	}
}

func (t *loggingTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	reqID := xid.New().String()

	// Clone before mutating — RoundTrippers must not modify the caller's
	// request (it may be retried or inspected after we return).
	req = req.Clone(req.Context())
	req.Header.Set("X-Request-ID", reqID)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Warn("request failed",
			slog.String("requestID", reqID),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	t.logger.Debug("request completed",
		slog.String("requestID", reqID),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Int64("bytes", resp.ContentLength),
	)
	return resp, nil
}
