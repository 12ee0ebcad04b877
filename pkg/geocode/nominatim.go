package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/resilience"
)

// nominatimHit is one element of the /search?format=jsonv2 response. Nominatim
// encodes coordinates as strings.
type nominatimHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// geocodeNominatim geocodes a single query using the Nominatim search API.
func (g *geocoder) geocodeNominatim(ctx context.Context, q Query) (*Result, error) {
	text := formatOneLine(q)
	if text == "" {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {text},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if g.countryCodes != "" {
		params.Set("countrycodes", g.countryCodes)
	}

	reqURL := strings.TrimRight(g.baseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var hits []nominatimHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(hits) == 0 {
		zap.L().Debug("geocode: no match", zap.String("query", text))
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", hits[0].Lat)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", hits[0].Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: hits[0].DisplayName,
		Source:      "nominatim",
		Matched:     true,
	}, nil
}

// formatOneLine joins the query parts, skipping parts already contained in the address.
func formatOneLine(q Query) string {
	addr := strings.TrimSpace(q.Address)
	parts := []string{}
	if addr != "" {
		parts = append(parts, addr)
	}
	lower := strings.ToLower(addr)
	for _, p := range []string{q.District, q.City} {
		p = strings.TrimSpace(p)
		if p == "" || strings.Contains(lower, strings.ToLower(p)) {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
