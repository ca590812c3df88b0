package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// ErrMissingCredentials is returned by Authenticate when no client id or secret is configured.
var ErrMissingCredentials = fmt.Errorf("spotify adapter: client id and secret: %w", domain.ErrMissingCredentials)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Config holds the Web API settings.
type Config struct {
	ClientID        string
	ClientSecret    string
	BaseURL         string
	TokenURL        string
	Market          string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RateLimit       float64 // requests per second, 0 disables limiting
	RateBurst       int
	BreakerFailures uint32 // consecutive failures before the breaker opens, 0 disables it
	BreakerTimeout  time.Duration
}

// Client is an HTTP client for the Spotify Web API.
type Client struct {
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	baseURL     string
	market      string
	maxRetries  int
	baseBackoff time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	log         zerolog.Logger
}

// compile-time interface assertion
var _ ports.Catalog = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource replaces the client-credentials flow, e.g. with oauth2.StaticTokenSource in tests.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient constructs a Spotify client. Missing credentials are reported by Authenticate
// so that the server can start and fail individual flows instead.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		market:      cfg.Market,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		log:         zerolog.Nop(),
	}

	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.BreakerFailures > 0 {
		c.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil && cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		// The token endpoint gets its own client so API retries never replay a token request.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
		c.tokens = cc.TokenSource(tokenCtx)
	}

	return c
}

func newBreaker(failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[*http.Response] {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "spotify",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller-side cancellation says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
}

// Authenticate obtains a bearer token, fetching a new one when the cached token expired.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.tokens == nil {
		return ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("spotify adapter: authenticate: %w", err)
	}
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("spotify adapter: authenticate: %w", &domain.TransportError{Op: "spotify token", Err: err})
	}
	return nil
}

// newRequest builds an authorized GET request for path relative to the API base URL.
func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	if c.tokens == nil {
		return nil, ErrMissingCredentials
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, &domain.TransportError{Op: "spotify token", Err: err}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: create request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
