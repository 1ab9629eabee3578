// Package torn is the client for the Torn game API: the owner's display case,
// item details and images for the sync job, and key verification for admin login.
package torn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/gilrm92/trading-spot/internal/platform/retry"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultBaseURL = "https://api.torn.com"

	retryMaxAttempts      = 3
	retryInitialBackoff   = 500 * time.Millisecond
	retryMaxBackoff       = 5 * time.Second
	retryRateLimitBackoff = 10 * time.Second

	// Torn reports "Too many requests" as error code 5 inside a 200 response.
	apiCodeTooManyRequests = 5
)

// Client talks to the Torn API over plain HTTP. All calls pass the API key as a
// query parameter, which is how the API authenticates.
type Client struct {
	baseURL string
	http    *http.Client
	cb      circuitbreaker.CircuitBreaker[any]
	policy  retry.Policy
	metrics *metrics.UpstreamMetrics
	clock   clockwork.Clock
}

var (
	_ domain.ItemSource         = (*Client)(nil)
	_ domain.CredentialVerifier = (*Client)(nil)
)

type Option func(*Client)

// WithRetryPolicy overrides the default backoff, mostly for tests.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a Torn API client. m may be nil; a nil clock means the real one.
func NewClient(baseURL string, timeout time.Duration, m *metrics.UpstreamMetrics, clock clockwork.Clock, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 30*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "torn",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.BreakerState.Set(metrics.BreakerStateValue(e.NewState.String()))
			}
		}).
		Build()

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
		policy: retry.Policy{
			MaxAttempts:      retryMaxAttempts,
			InitialBackoff:   retryInitialBackoff,
			MaxBackoff:       retryMaxBackoff,
			RateLimitBackoff: retryRateLimitBackoff,
		},
		metrics: m,
		clock:   clock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type displayResponse struct {
	Error   *apiError            `json:"error"`
	Display []domain.DisplayItem `json:"display"`
}

// DisplayItems returns the key owner's display case.
func (c *Client) DisplayItems(ctx context.Context, apiKey string) ([]domain.DisplayItem, error) {
	var resp displayResponse
	query := url.Values{"selections": {"display"}}
	if err := c.get(ctx, "display", "/user/", query, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apiFailure("display", resp.Error)
	}
	if resp.Display == nil {
		return []domain.DisplayItem{}, nil
	}
	return resp.Display, nil
}

type itemDetailsResponse struct {
	Error       *apiError           `json:"error"`
	ItemDetails *domain.ItemDetails `json:"itemdetails"`
}

func (c *Client) ItemDetails(ctx context.Context, apiKey string, uid int64) (*domain.ItemDetails, error) {
	var resp itemDetailsResponse
	path := "/v2/torn/" + strconv.FormatInt(uid, 10) + "/itemdetails"
	if err := c.get(ctx, "itemdetails", path, nil, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apiFailure("item details", resp.Error)
	}
	if resp.ItemDetails == nil {
		return &domain.ItemDetails{}, nil
	}
	return resp.ItemDetails, nil
}

type itemsResponse struct {
	Error *apiError `json:"error"`
	Items []struct {
		ID    int64   `json:"id"`
		Image *string `json:"image"`
	} `json:"items"`
}

// ItemImage looks up the catalogue entries for tornID and returns the image of the
// entry matching uid, falling back to the first entry.
func (c *Client) ItemImage(ctx context.Context, apiKey string, tornID, uid int64) (*string, error) {
	var resp itemsResponse
	path := "/v2/torn/" + strconv.FormatInt(tornID, 10) + "/items"
	query := url.Values{"sort": {"ASC"}}
	if err := c.get(ctx, "items", path, query, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apiFailure("items", resp.Error)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	match := resp.Items[0]
	for _, it := range resp.Items {
		if it.ID == uid {
			match = it
			break
		}
	}
	if match.Image == nil || *match.Image == "" {
		return nil, nil
	}
	return match.Image, nil
}

type basicResponse struct {
	Error   *apiError       `json:"error"`
	Profile *domain.Profile `json:"profile"`
}

// VerifyKey resolves apiKey to its owner. An API-level error means the key is not usable.
func (c *Client) VerifyKey(ctx context.Context, apiKey string) (*domain.Profile, error) {
	var resp basicResponse
	query := url.Values{"striptags": {"true"}}
	if err := c.get(ctx, "user_basic", "/v2/user/basic", query, apiKey, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredential, resp.Error.Error)
	}
	if resp.Profile == nil {
		return nil, fmt.Errorf("%w: no profile returned", domain.ErrInvalidCredential)
	}
	return resp.Profile, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, apiKey string, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", apiKey)
	target := c.baseURL + path + "?" + query.Encode()

	p := c.policy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Torn API request failed, retrying", "endpoint", endpoint, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}

	_, err := retry.Do(ctx, p, classify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.attempt(ctx, endpoint, target, out)
	})
	if err == nil {
		return nil
	}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.upstream
	}
	return &domain.UpstreamError{Op: endpoint, Err: err}
}

func (c *Client) attempt(ctx context.Context, endpoint, target string, out any) error {
	if !c.cb.TryAcquirePermit() {
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, Err: circuitbreaker.ErrOpen}, permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, Err: err}, permanent: true}
	}
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.http.Do(req)
	c.observe(endpoint, resp, c.clock.Since(start))
	if err != nil {
		c.cb.RecordError(err)
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, Err: redactKey(err)}, permanent: ctx.Err() != nil}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		err := &requestError{
			upstream:   &domain.UpstreamError{Op: endpoint, StatusCode: resp.StatusCode},
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			rateLimit:  resp.StatusCode == http.StatusTooManyRequests,
		}
		c.cb.RecordError(err)
		return err
	}
	c.cb.RecordSuccess()

	if resp.StatusCode != http.StatusOK {
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, StatusCode: resp.StatusCode}, permanent: true}
	}

	// Check the error envelope first so a rate-limit error body can be retried.
	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}, permanent: true}
	}
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil && envelope.Error.Code == apiCodeTooManyRequests {
		return &requestError{upstream: apiFailure(endpoint, envelope.Error), rateLimit: true}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &requestError{upstream: &domain.UpstreamError{Op: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}, permanent: true}
	}
	return nil
}

func (c *Client) observe(endpoint string, resp *http.Response, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.Requests.WithLabelValues(endpoint, status).Inc()
	c.metrics.Duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func apiFailure(op string, e *apiError) *domain.UpstreamError {
	msg := e.Error
	if msg == "" {
		msg = "Unknown error"
	}
	return &domain.UpstreamError{Op: op, Message: msg}
}

// requestError carries retry classification alongside the upstream error.
type requestError struct {
	upstream   *domain.UpstreamError
	retryAfter time.Duration
	rateLimit  bool
	permanent  bool
}

func (e *requestError) Error() string             { return e.upstream.Error() }
func (e *requestError) Unwrap() error             { return e.upstream }
func (e *requestError) RetryAfter() time.Duration { return e.retryAfter }

func classify(err error) retry.Action {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		return retry.Retry
	}
	switch {
	case reqErr.permanent:
		return retry.Stop
	case reqErr.rateLimit:
		return retry.After
	default:
		return retry.Retry
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// net/http errors include the full URL, which carries the API key.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
