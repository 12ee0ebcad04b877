// Package matcher scores listings against requests and selects the best
// candidates for each side.
package matcher

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-match/internal/config"
)

// DefaultConfig returns the stock scoring constants. Criterion maxima sum to 100.
func DefaultConfig() config.MatchConfig {
	return config.MatchConfig{
		PricePoints:        45,
		PriceNearPoints:    20,
		PriceMissingPoints: 10,
		PriceTolerance:     1.10,

		AreaPoints:        25,
		AreaNearPoints:    12,
		AreaMissingPoints: 8,
		AreaTolerance:     0.90,

		LayoutPoints:        20,
		LayoutNearPoints:    8,
		LayoutMissingPoints: 6,

		LocationPoints:         10,
		LocationDistrictPoints: 5,

		MinScore:        40,
		TopN:            10,
		DefaultRadiusKM: 20,
		Workers:         8,
	}
}

// MaxScore returns the highest score the config can award.
func MaxScore(c config.MatchConfig) int {
	return c.PricePoints + c.AreaPoints + c.LayoutPoints + c.LocationPoints
}

// ValidateConfig checks that a MatchConfig is internally consistent.
func ValidateConfig(c config.MatchConfig) error {
	var errs []string

	points := []struct {
		name       string
		max        int
		near, miss int
	}{
		{"price", c.PricePoints, c.PriceNearPoints, c.PriceMissingPoints},
		{"area", c.AreaPoints, c.AreaNearPoints, c.AreaMissingPoints},
		{"layout", c.LayoutPoints, c.LayoutNearPoints, c.LayoutMissingPoints},
		{"location", c.LocationPoints, c.LocationDistrictPoints, 0},
	}
	for _, p := range points {
		if p.max < 0 || p.near < 0 || p.miss < 0 {
			errs = append(errs, fmt.Sprintf("%s points must be >= 0", p.name))
			continue
		}
		if p.near > p.max || p.miss > p.max {
			errs = append(errs, fmt.Sprintf("%s tier points must not exceed %d", p.name, p.max))
		}
	}

	if total := MaxScore(c); total > 100 {
		errs = append(errs, fmt.Sprintf("criterion maxima must sum to <= 100, got %d", total))
	}

	if c.PriceTolerance < 1 {
		errs = append(errs, "price_tolerance must be >= 1")
	}
	if c.AreaTolerance <= 0 || c.AreaTolerance > 1 {
		errs = append(errs, "area_tolerance must be in (0, 1]")
	}

	if c.MinScore < 0 || c.MinScore > 100 {
		errs = append(errs, "min_score must be between 0 and 100")
	}
	if c.TopN < 1 {
		errs = append(errs, "top_n must be >= 1")
	}
	if c.DefaultRadiusKM <= 0 {
		errs = append(errs, "default_radius_km must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("matcher: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeightsFile overlays the YAML document at path onto base. Keys absent
// from the file keep their base values.
func LoadWeightsFile(path string, base config.MatchConfig) (config.MatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "matcher: read weights file %s", path)
	}

	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, eris.Wrapf(err, "matcher: parse weights file %s", path)
	}
	return out, nil
}
