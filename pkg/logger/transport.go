package logger

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Transport logs every outgoing request made through the wrapped RoundTripper
type Transport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// NewTransport wraps next (http.DefaultTransport when nil) with request logging
func NewTransport(logger *slog.Logger, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("uri", redactedURI(req.URL)),
		slog.Duration("duration", duration),
	}

	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		level = slog.LevelWarn
		attrs = append(attrs, slog.Int("status", resp.StatusCode))
	default:
		attrs = append(attrs, slog.Int("status", resp.StatusCode))
	}

	// Constant message, structured fields tell the story
	t.logger.LogAttrs(req.Context(), level, "HTTP", attrs...)

	return resp, err
}

// redactedURI drops credentials that may travel in the query string
func redactedURI(u *url.URL) string {
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		c := *u
		c.RawQuery = q.Encode()
		return c.RequestURI()
	}
	return u.RequestURI()
}
