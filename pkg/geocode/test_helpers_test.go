package geocode

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// newTestLimiter never blocks.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient returns a client that sends requests aimed at upstream to
// the test server instead, keeping path and query intact.
func newRewriteClient(testServerURL, upstream string) *http.Client {
	target, _ := url.Parse(testServerURL)
	return &http.Client{Transport: redirectTransport{target: target, upstream: upstream}}
}

type redirectTransport struct {
	target   *url.URL
	upstream string
}

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.HasPrefix(req.URL.String(), t.upstream) {
		return http.DefaultTransport.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(out)
}
