package beaconchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/beaconincome/pkg/httpkit"
)

const (
	DefaultBaseURL = "https://beaconcha.in"
	// MaxIndicesPerRequest is the largest validator batch the API accepts in one call
	MaxIndicesPerRequest = 100
)

// Sentinel errors for API responses
var (
	ErrAPIStatus    = errors.New("API reported failure status")
	ErrNoIndices    = errors.New("no validator indices requested")
	ErrTooManyItems = errors.New("too many validator indices requested")
)

// Client represents a Beaconcha.in API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	now        func() time.Time
}

// NewClient creates a new Beaconcha.in API client with custom HTTP client and base URL.
// apiKey is sent as a bearer token and may be empty.
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		now:        time.Now,
	}
}

// LeaderboardRequest represents parameters for getting a leaderboard page
type LeaderboardRequest struct {
	Limit    uint64
	Offset   uint64
	Sort     string // e.g. performance7d
	Order    string // asc or desc
	Currency string
}

// ValidatorPerformance represents a validator's income from the Beaconcha.in API.
// Performance values are in gwei and null for inactive validators.
type ValidatorPerformance struct {
	ValidatorIndex  int64               `json:"validatorindex"`
	Performance1d   decimal.NullDecimal `json:"performance1d"`
	Performance7d   decimal.NullDecimal `json:"performance7d"`
	Performance31d  decimal.NullDecimal `json:"performance31d"`
	Performance365d decimal.NullDecimal `json:"performance365d"`
}

// Epoch represents the latest epoch summary
type Epoch struct {
	Epoch           int64 `json:"epoch"`
	ValidatorsCount int64 `json:"validatorscount"`
}

// envelope is the wrapper every v1 endpoint responds with
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// GetLeaderboard retrieves one page of the validator leaderboard
func (c *Client) GetLeaderboard(ctx context.Context, req LeaderboardRequest) ([]ValidatorPerformance, error) {
	q := url.Values{}
	q.Set("limit", strconv.FormatUint(req.Limit, 10))
	q.Set("offset", strconv.FormatUint(req.Offset, 10))
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Order != "" {
		q.Set("order", req.Order)
	}
	if req.Currency != "" {
		q.Set("currency", req.Currency)
	}

	data, err := c.get(ctx, "/api/v1/validator/leaderboard?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodePerformances(data)
}

// GetPerformance retrieves income for an explicit batch of validator indices
func (c *Client) GetPerformance(ctx context.Context, indices []int64) ([]ValidatorPerformance, error) {
	if len(indices) == 0 {
		return nil, ErrNoIndices
	}
	if len(indices) > MaxIndicesPerRequest {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(indices), MaxIndicesPerRequest)
	}

	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = strconv.FormatInt(idx, 10)
	}

	data, err := c.get(ctx, "/api/v1/validator/"+strings.Join(ids, ",")+"/performance")
	if err != nil {
		return nil, err
	}
	return decodePerformances(data)
}

// LatestEpoch retrieves the latest epoch, which carries the active validator count
func (c *Client) LatestEpoch(ctx context.Context) (Epoch, error) {
	data, err := c.get(ctx, "/api/v1/epoch/latest")
	if err != nil {
		return Epoch{}, err
	}

	var epoch Epoch
	if err := httpkit.DecodeJSON(bytes.NewReader(data), &epoch); err != nil {
		return Epoch{}, fmt.Errorf("decoding epoch: %w", err)
	}
	return epoch, nil
}

// get issues one GET and returns the envelope's data payload
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpkit.PrepareJSONRequest(httpReq, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if err := httpkit.CheckResponse(resp, c.now()); err != nil {
		return nil, err
	}

	var env envelope
	if err := httpkit.DecodeJSON(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if !strings.EqualFold(env.Status, "OK") {
		return nil, fmt.Errorf("%w: %q", ErrAPIStatus, env.Status)
	}
	return env.Data, nil
}

// decodePerformances accepts both a list and the single object the API
// returns when exactly one validator was requested.
func decodePerformances(data json.RawMessage) ([]ValidatorPerformance, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []ValidatorPerformance{}, nil
	}

	if trimmed[0] == '{' {
		var one ValidatorPerformance
		if err := httpkit.DecodeJSON(bytes.NewReader(trimmed), &one); err != nil {
			return nil, fmt.Errorf("decoding validator: %w", err)
		}
		return []ValidatorPerformance{one}, nil
	}

	var many []ValidatorPerformance
	if err := httpkit.DecodeJSON(bytes.NewReader(trimmed), &many); err != nil {
		return nil, fmt.Errorf("decoding validators: %w", err)
	}
	return many, nil
}
