package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError interface for HTTP-aware errors with detailed causes
type HTTPError interface {
	HTTPCode() int
	Cause() error
	error
}

// Header constants
const (
	acceptHeader        = "Accept"
	authorizationHeader = "Authorization"
	retryAfterHeader    = "Retry-After"
)

// maxErrorBody bounds how much of a failed response body is kept for diagnostics
const maxErrorBody = 512

var (
	jsonAccept = []string{"application/json"}

	// ErrUnexpectedStatus is wrapped by every StatusError
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrMalformedBody is returned when a response body cannot be decoded
	ErrMalformedBody = errors.New("malformed response body")
)

func addHeaderIfNotSet(h http.Header, key string, value []string) {
	if val := h[key]; len(val) == 0 {
		h[key] = value
	}
}

// PrepareJSONRequest sets the JSON accept header and, when token is not empty,
// a bearer Authorization header. Headers already present are left alone.
func PrepareJSONRequest(req *http.Request, token string) {
	addHeaderIfNotSet(req.Header, acceptHeader, jsonAccept)
	if token != "" {
		addHeaderIfNotSet(req.Header, authorizationHeader, []string{"Bearer " + token})
	}
}

// StatusError describes a non-2xx response
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

func (e *StatusError) HTTPCode() int { return e.Code }
func (e *StatusError) Cause() error  { return ErrUnexpectedStatus }
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Throttled reports whether the server asked us to slow down or is temporarily failing
func (e *StatusError) Throttled() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// CheckResponse returns nil for 2xx responses and a *StatusError otherwise.
// The body of a failed response is partially consumed.
func CheckResponse(resp *http.Response, now time.Time) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:       resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: ParseRetryAfter(resp.Header.Get(retryAfterHeader), now),
	}
}

// ParseRetryAfter understands both delay-seconds and HTTP-date forms.
// Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// DecodeJSON decodes r into v, wrapping failures with ErrMalformedBody
func DecodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	return nil
}
