package matcher

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/listing-match/internal/config"
	"github.com/sells-group/listing-match/internal/geo"
	"github.com/sells-group/listing-match/internal/model"
)

// Result is the score of one listing against one request.
type Result struct {
	Score   int           `json:"score"`
	Reasons model.Reasons `json:"reasons"`
}

// Scorer applies the hard gates and weighted criteria. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	cfg config.MatchConfig
}

// NewScorer creates a Scorer with the given constants.
func NewScorer(cfg config.MatchConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scoring constants in use.
func (s *Scorer) Config() config.MatchConfig {
	return s.cfg
}

// Score validates both inputs and scores the pair. The only errors are
// *model.ValidationError values (wrapped).
func (s *Scorer) Score(l model.Listing, r model.Request) (Result, error) {
	if err := l.Validate(); err != nil {
		return Result{}, eris.Wrap(err, "matcher: score")
	}
	if err := r.Validate(); err != nil {
		return Result{}, eris.Wrap(err, "matcher: score")
	}
	return s.score(&l, &r), nil
}

// location carries the outcome of the location gate into the bonus step.
type location struct {
	geoMode    bool
	distanceKM float64
	radiusKM   float64
	tier       model.GeoOutcome
}

// score assumes validated inputs.
func (s *Scorer) score(l *model.Listing, r *model.Request) Result {
	var res Result
	reasons := &res.Reasons

	if l.Type != r.Type {
		reasons.GateFailed = model.GateTypeMismatch
		return res
	}
	reasons.Type = true

	loc, ok := s.locationGate(l, r, reasons)
	if !ok {
		return res
	}

	total := s.scorePrice(l.Price, r.BudgetMax, reasons)
	total += s.scoreArea(l.AreaM2, r.AreaMinM2, reasons)
	if l.Type.HasLayout() {
		total += s.scoreLayout(l.Layout, r.LayoutMin, reasons)
	}
	total += s.locationBonus(loc, reasons)

	res.Score = clampScore(total)
	return res
}

func (s *Scorer) locationGate(l *model.Listing, r *model.Request, reasons *model.Reasons) (location, bool) {
	radius := r.Radius(s.cfg.DefaultRadiusKM)
	check := geo.WithinRadius(l.Lat, l.Lon, r.Lat, r.Lon, radius)

	if check.DistanceKM != nil {
		d := *check.DistanceKM
		reasons.DistanceKM = &d
		reasons.RadiusKM = &radius
		if !check.Within {
			reasons.Geo = model.GeoOutsideRadius
			reasons.GateFailed = model.GateLocationRadius
			return location{}, false
		}
		reasons.Geo = model.GeoWithinRadius
		return location{geoMode: true, distanceKM: d, radiusKM: radius}, true
	}

	switch {
	case sameName(l.City, r.City):
		reasons.Geo = model.GeoFallbackCityMatch
	case sameName(l.District, r.District):
		reasons.Geo = model.GeoFallbackDistrictMatch
	default:
		reasons.Geo = model.GeoFallbackNoMatch
		reasons.GateFailed = model.GateLocationCity
		return location{}, false
	}
	return location{tier: reasons.Geo}, true
}

func (s *Scorer) scorePrice(price, budgetMax *float64, reasons *model.Reasons) int {
	if price == nil || budgetMax == nil {
		reasons.Price = model.PriceMissing
		return s.cfg.PriceMissingPoints
	}
	switch {
	case *price <= *budgetMax:
		reasons.Price = model.PriceWithinBudget
		return s.cfg.PricePoints
	case *price <= *budgetMax*s.cfg.PriceTolerance:
		reasons.Price = model.PriceSlightlyOver
		return s.cfg.PriceNearPoints
	default:
		reasons.Price = model.PriceOverBudget
		return 0
	}
}

func (s *Scorer) scoreArea(area, areaMin *float64, reasons *model.Reasons) int {
	if area == nil || areaMin == nil {
		reasons.Area = model.AreaMissing
		return s.cfg.AreaMissingPoints
	}
	switch {
	case *area >= *areaMin:
		reasons.Area = model.AreaSufficient
		return s.cfg.AreaPoints
	case *area >= *areaMin*s.cfg.AreaTolerance:
		reasons.Area = model.AreaClose
		return s.cfg.AreaNearPoints
	default:
		reasons.Area = model.AreaInsufficient
		return 0
	}
}

func (s *Scorer) scoreLayout(layout, layoutMin string, reasons *model.Reasons) int {
	have := model.LayoutRooms(layout)
	want := model.LayoutRooms(layoutMin)
	if have == 0 || want == 0 {
		reasons.Layout = model.LayoutMissing
		return s.cfg.LayoutMissingPoints
	}
	switch {
	case have >= want:
		reasons.Layout = model.LayoutMatch
		return s.cfg.LayoutPoints
	case have == want-1:
		reasons.Layout = model.LayoutClose
		return s.cfg.LayoutNearPoints
	default:
		reasons.Layout = model.LayoutInsufficient
		return 0
	}
}

func (s *Scorer) locationBonus(loc location, reasons *model.Reasons) int {
	if loc.geoMode {
		bonus := int(math.Round(float64(s.cfg.LocationPoints) * (1 - loc.distanceKM/loc.radiusKM)))
		bonus = max(0, min(bonus, s.cfg.LocationPoints))
		reasons.DistanceScore = &bonus
		return bonus
	}
	if loc.tier == model.GeoFallbackCityMatch {
		reasons.City = true
		return s.cfg.LocationPoints
	}
	reasons.District = true
	return s.cfg.LocationDistrictPoints
}

// sameName compares place names with Unicode case folding. Blank names never match.
func sameName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	// A Caser is stateful, so one is built per comparison.
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

func clampScore(v int) int {
	return max(0, min(v, 100))
}
