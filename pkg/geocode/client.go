// Package geocode resolves free-text addresses to coordinates via a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/listing-match/internal/resilience"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client geocodes addresses.
type Client interface {
	// Geocode resolves a single address. An address with no hit returns a
	// Result with Matched=false and a nil error.
	Geocode(ctx context.Context, q Query) (*Result, error)
}

// Query is an address to geocode. Address is free text; City and District
// are appended when they are not already part of it.
type Query struct {
	Address  string
	District string
	City     string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Source      string // "nominatim" or "cache"
	Matched     bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL points the client at a different Nominatim-compatible server.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy requires
// an identifying agent.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithCountryCodes restricts results to a comma-separated list of ISO 3166-1 codes.
func WithCountryCodes(codes string) Option {
	return func(g *geocoder) {
		g.countryCodes = codes
	}
}

// WithLimiter injects the rate limiter. Clients sharing an upstream should
// share a limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *geocoder) {
		g.limiter = l
	}
}

// WithMinInterval spaces upstream requests at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(g *geocoder) {
		if d <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetry sets how transient upstream failures (429, 5xx, timeouts) are retried.
func WithRetry(p resilience.Policy) Option {
	return func(g *geocoder) {
		g.retry = p
	}
}

// WithCache enables an in-process cache of results keyed by the normalized query.
func WithCache() Option {
	return func(g *geocoder) {
		g.cache = make(map[string]Result)
	}
}

type geocoder struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
	limiter      *rate.Limiter
	retry        resilience.Policy

	mu    sync.Mutex
	cache map[string]Result
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  "listing-match/1.0",
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1), // Nominatim policy: 1 req/s
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode resolves q, consulting the cache first when enabled.
func (g *geocoder) Geocode(ctx context.Context, q Query) (*Result, error) {
	key := cacheKey(q)
	if r, ok := g.cached(key); ok {
		return r, nil
	}

	result, err := resilience.Do(ctx, g.retry, func(ctx context.Context) (*Result, error) {
		return g.geocodeNominatim(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	g.store(key, result)
	return result, nil
}
