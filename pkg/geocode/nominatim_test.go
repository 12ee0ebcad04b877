package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/resilience"
)

func TestNominatimGeocode_Match(t *testing.T) {
	var gotQuery, gotUA, gotCountry string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotCountry = r.URL.Query().Get("countrycodes")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"49.1950602","lon":"16.6068371","display_name":"Brno, Czechia"}]`)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithUserAgent("test-agent"),
		WithCountryCodes("cz"),
		WithLimiter(newTestLimiter()),
	)

	res, err := c.Geocode(context.Background(), Query{Address: "Masarykova 1", District: "Brno-střed", City: "Brno"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 49.19506, res.Latitude, 0.0001)
	assert.InDelta(t, 16.60684, res.Longitude, 0.0001)
	assert.Equal(t, "nominatim", res.Source)
	assert.Equal(t, "Brno, Czechia", res.DisplayName)
	assert.Equal(t, "Masarykova 1, Brno-střed, Brno", gotQuery)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "cz", gotCountry)
}

func TestNominatimGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(newTestLimiter()))
	res, err := c.Geocode(context.Background(), Query{City: "Nowhere"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestNominatimGeocode_EmptyQuerySkipsUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithLimiter(newTestLimiter()))
	res, err := c.Geocode(context.Background(), Query{Address: "  "})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int32(0), calls.Load())
}

func TestNominatimGeocode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "returned status 500"},
		{"rate limited", http.StatusTooManyRequests, ``, "returned status 429"},
		{"bad json", http.StatusOK, `{not json`, "parse response"},
		{"bad lat", http.StatusOK, `[{"lat":"north","lon":"16.6"}]`, "parse lat"},
		{"bad lon", http.StatusOK, `[{"lat":"49.2","lon":""}]`, "parse lon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL), WithLimiter(newTestLimiter()), WithRetry(resilience.Policy{MaxAttempts: 1}))
			_, err := c.Geocode(context.Background(), Query{City: "Brno"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNominatimGeocode_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"lat":"49.2","lon":"16.6"}]`)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
		WithRetry(resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)
	res, err := c.Geocode(context.Background(), Query{City: "Brno"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNominatimGeocode_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithLimiter(newTestLimiter()),
		WithRetry(resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)
	_, err := c.Geocode(context.Background(), Query{City: "Brno"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned status 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNominatimGeocode_DefaultBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Praha", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `[{"lat":"50.0875","lon":"14.4213"}]`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, DefaultBaseURL),
		baseURL:    DefaultBaseURL,
		userAgent:  "test",
		limiter:    newTestLimiter(),
	}
	res, err := g.geocodeNominatim(context.Background(), Query{City: "Praha"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 14.4213, res.Longitude, 0.0001)
}

func TestNominatimGeocode_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(time.Hour))

	// First call consumes the single burst token.
	_, err := c.Geocode(context.Background(), Query{City: "Brno"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Geocode(ctx, Query{City: "Ostrava"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestFormatOneLine(t *testing.T) {
	tests := []struct {
		q    Query
		want string
	}{
		{Query{Address: "Masarykova 1", City: "Brno"}, "Masarykova 1, Brno"},
		{Query{Address: "Masarykova 1, Brno", City: "brno"}, "Masarykova 1, Brno"},
		{Query{City: "Brno", District: "Žabovřesky"}, "Žabovřesky, Brno"},
		{Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatOneLine(tt.q))
		})
	}
}
