package matcher

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/geo"
	"github.com/sells-group/listing-match/internal/model"
)

func ptr(v float64) *float64 { return &v }

func newTestScorer() *Scorer {
	return NewScorer(DefaultConfig())
}

func baseListing() model.Listing {
	return model.Listing{ID: "l1", Type: model.PropertyApartment, City: "Praha"}
}

func baseRequest() model.Request {
	return model.Request{ID: "r1", Type: model.PropertyApartment, City: "Praha"}
}

func TestScore_PriceWithinBudgetScenario(t *testing.T) {
	l := baseListing()
	l.Price = ptr(4_000_000)
	r := baseRequest()
	r.BudgetMax = ptr(5_000_000)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 69, res.Score) // 45 + 8 + 6 + 10
	assert.Equal(t, model.PriceWithinBudget, res.Reasons.Price)
	assert.Equal(t, model.AreaMissing, res.Reasons.Area)
	assert.Equal(t, model.LayoutMissing, res.Reasons.Layout)
	assert.Equal(t, model.GeoFallbackCityMatch, res.Reasons.Geo)
	assert.True(t, res.Reasons.City)
	assert.True(t, res.Reasons.Type)
	assert.False(t, res.Reasons.Gated())
}

func TestScore_PriceTiers(t *testing.T) {
	tests := []struct {
		name    string
		price   *float64
		budget  *float64
		want    int
		outcome model.PriceOutcome
	}{
		{"within", ptr(4_000_000), ptr(5_000_000), 45, model.PriceWithinBudget},
		{"exactly at budget", ptr(5_000_000), ptr(5_000_000), 45, model.PriceWithinBudget},
		{"slightly over", ptr(5_400_000), ptr(5_000_000), 20, model.PriceSlightlyOver},
		{"at tolerance edge", ptr(5_500_000), ptr(5_000_000), 20, model.PriceSlightlyOver},
		{"over", ptr(5_600_000), ptr(5_000_000), 0, model.PriceOverBudget},
		{"no price", nil, ptr(5_000_000), 10, model.PriceMissing},
		{"no budget", ptr(4_000_000), nil, 10, model.PriceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons model.Reasons
			got := newTestScorer().scorePrice(tt.price, tt.budget, &reasons)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.outcome, reasons.Price)
		})
	}
}

func TestScore_SlightlyOverScenario(t *testing.T) {
	l := baseListing()
	l.Price = ptr(5_400_000)
	r := baseRequest()
	r.BudgetMax = ptr(5_000_000)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 44, res.Score) // 20 + 8 + 6 + 10
	assert.Equal(t, model.PriceSlightlyOver, res.Reasons.Price)
}

func TestScore_AreaTiers(t *testing.T) {
	tests := []struct {
		name    string
		area    *float64
		min     *float64
		want    int
		outcome model.AreaOutcome
	}{
		{"sufficient", ptr(80), ptr(70), 25, model.AreaSufficient},
		{"equal", ptr(70), ptr(70), 25, model.AreaSufficient},
		{"close", ptr(64), ptr(70), 12, model.AreaClose},
		{"insufficient", ptr(60), ptr(70), 0, model.AreaInsufficient},
		{"no area", nil, ptr(70), 8, model.AreaMissing},
		{"no minimum", ptr(70), nil, 8, model.AreaMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons model.Reasons
			got := newTestScorer().scoreArea(tt.area, tt.min, &reasons)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.outcome, reasons.Area)
		})
	}
}

func TestScore_LayoutTiers(t *testing.T) {
	tests := []struct {
		name    string
		have    string
		want    string
		points  int
		outcome model.LayoutOutcome
	}{
		{"larger", "4+1", "3+1", 20, model.LayoutMatch},
		{"same", "3+kk", "3+1", 20, model.LayoutMatch},
		{"one below", "2+kk", "3+1", 8, model.LayoutClose},
		{"two below", "1+kk", "3+1", 0, model.LayoutInsufficient},
		{"listing missing", "", "3+1", 6, model.LayoutMissing},
		{"request missing", "3+1", "", 6, model.LayoutMissing},
		{"non numeric", "atypical", "2+1", 6, model.LayoutMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons model.Reasons
			got := newTestScorer().scoreLayout(tt.have, tt.want, &reasons)
			assert.Equal(t, tt.points, got)
			assert.Equal(t, tt.outcome, reasons.Layout)
		})
	}
}

func TestScore_LayoutOneBelowScenario(t *testing.T) {
	l := baseListing()
	l.Layout = "2+kk"
	r := baseRequest()
	r.LayoutMin = "3+1"

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, model.LayoutClose, res.Reasons.Layout)
	assert.Equal(t, 36, res.Score) // 10 + 8 + 8 + 10
}

func TestScore_LandSkipsLayout(t *testing.T) {
	l := baseListing()
	l.Type = model.PropertyLand
	l.Layout = "1+kk"
	r := baseRequest()
	r.Type = model.PropertyLand
	r.LayoutMin = "5+1"

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Empty(t, res.Reasons.Layout)
	assert.Equal(t, 28, res.Score) // 10 + 8 + 10
}

func TestScore_TypeGate(t *testing.T) {
	l := baseListing()
	l.Price = ptr(1)
	l.AreaM2 = ptr(500)
	l.Layout = "6+1"
	r := baseRequest()
	r.Type = model.PropertyHouse
	r.BudgetMax = ptr(10_000_000)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Reasons.Type)
	assert.Equal(t, model.GateTypeMismatch, res.Reasons.GateFailed)
	assert.Empty(t, res.Reasons.Geo)
	assert.Empty(t, res.Reasons.Price)
}

func TestScore_GeoOutsideRadiusScenario(t *testing.T) {
	l := baseListing()
	l.Lat, l.Lon = ptr(50.0), ptr(14.0)
	r := baseRequest()
	r.Lat, r.Lon = ptr(49.0), ptr(14.0)
	r.RadiusKM = ptr(20)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, model.GeoOutsideRadius, res.Reasons.Geo)
	assert.Equal(t, model.GateLocationRadius, res.Reasons.GateFailed)
	require.NotNil(t, res.Reasons.DistanceKM)
	assert.InDelta(t, 111.2, *res.Reasons.DistanceKM, 0.5)
	require.NotNil(t, res.Reasons.RadiusKM)
	assert.Equal(t, 20.0, *res.Reasons.RadiusKM)
}

func TestScore_GeoWithinRadius(t *testing.T) {
	l := baseListing()
	l.City = "Beroun" // coordinates take precedence over names
	l.Lat, l.Lon = ptr(50.05), ptr(14.0)
	r := baseRequest()
	r.Lat, r.Lon = ptr(50.0), ptr(14.0)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, model.GeoWithinRadius, res.Reasons.Geo)
	require.NotNil(t, res.Reasons.RadiusKM)
	assert.Equal(t, 20.0, *res.Reasons.RadiusKM, "default radius applies")
	require.NotNil(t, res.Reasons.DistanceScore)
	assert.Equal(t, 7, *res.Reasons.DistanceScore) // round(10 * (1 - 5.6/20))
	assert.False(t, res.Reasons.City)
	assert.Equal(t, 10+8+6+7, res.Score)
}

func TestScore_GeoSamePointFullBonus(t *testing.T) {
	l := baseListing()
	l.Lat, l.Lon = ptr(50.0), ptr(14.0)
	r := baseRequest()
	r.Lat, r.Lon = ptr(50.0), ptr(14.0)

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	require.NotNil(t, res.Reasons.DistanceScore)
	assert.Equal(t, 10, *res.Reasons.DistanceScore)
}

// A pair can clear both gates and still score 0: at the radius edge the
// proximity bonus rounds to 0 and every criterion sits in its lowest tier.
// Such a result carries no gate failure and is below any persistable threshold.
func TestScore_ZeroWithoutGateAtRadiusEdge(t *testing.T) {
	l := baseListing()
	l.Lat, l.Lon = ptr(50.0), ptr(14.0)
	l.Price = ptr(9_000_000)
	l.AreaM2 = ptr(30)
	l.Layout = "1+kk"
	r := baseRequest()
	r.Lat, r.Lon = ptr(50.1), ptr(14.0)
	edge := geo.DistanceKM(50.0, 14.0, 50.1, 14.0)
	r.RadiusKM = &edge
	r.BudgetMax = ptr(5_000_000)
	r.AreaMinM2 = ptr(80)
	r.LayoutMin = "4+1"

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Reasons.Gated())
	assert.Empty(t, res.Reasons.GateFailed)
	assert.Equal(t, model.GeoWithinRadius, res.Reasons.Geo)
	require.NotNil(t, res.Reasons.DistanceScore)
	assert.Equal(t, 0, *res.Reasons.DistanceScore)
	assert.Equal(t, model.PriceOverBudget, res.Reasons.Price)
	assert.Equal(t, model.AreaInsufficient, res.Reasons.Area)
	assert.Equal(t, model.LayoutInsufficient, res.Reasons.Layout)

	ranked, err := newTestScorer().TopForRequest(context.Background(), r, []model.Listing{l}, 0)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestScore_OneSidedCoordinatesFallBackToNames(t *testing.T) {
	l := baseListing()
	l.Lat, l.Lon = ptr(50.0), ptr(14.0)
	r := baseRequest()

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, model.GeoFallbackCityMatch, res.Reasons.Geo)
	assert.Nil(t, res.Reasons.DistanceKM)
}

func TestScore_FallbackTiers(t *testing.T) {
	tests := []struct {
		name         string
		lCity, lDist string
		rCity, rDist string
		geo          model.GeoOutcome
		gate         model.GateFailure
		bonus        int
	}{
		{"city case-insensitive", "ČESKÉ BUDĚJOVICE", "", "české budějovice", "", model.GeoFallbackCityMatch, "", 10},
		{"district match", "Praha 4", "Nusle", "Praha", "nusle", model.GeoFallbackDistrictMatch, "", 5},
		{"district only on one side", "Praha 4", "Nusle", "Praha", "", model.GeoFallbackNoMatch, model.GateLocationCity, 0},
		{"nothing matches", "Brno", "Líšeň", "Praha", "Nusle", model.GeoFallbackNoMatch, model.GateLocationCity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := baseListing()
			l.City, l.District = tt.lCity, tt.lDist
			r := baseRequest()
			r.City, r.District = tt.rCity, tt.rDist

			res, err := newTestScorer().Score(l, r)
			require.NoError(t, err)
			assert.Equal(t, tt.geo, res.Reasons.Geo)
			assert.Equal(t, tt.gate, res.Reasons.GateFailed)
			if tt.gate != "" {
				assert.Equal(t, 0, res.Score)
				return
			}
			assert.Equal(t, 10+8+6+tt.bonus, res.Score)
			assert.Equal(t, tt.bonus == 10, res.Reasons.City)
			assert.Equal(t, tt.bonus == 5, res.Reasons.District)
		})
	}
}

func TestScore_PerfectMatch(t *testing.T) {
	l := baseListing()
	l.Price = ptr(4_500_000)
	l.AreaM2 = ptr(75)
	l.Layout = "3+1"
	r := baseRequest()
	r.BudgetMax = ptr(5_000_000)
	r.AreaMinM2 = ptr(70)
	r.LayoutMin = "3+kk"

	res, err := newTestScorer().Score(l, r)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
}

func TestScore_RejectsInvalidInput(t *testing.T) {
	l := baseListing()
	l.Type = "castle"

	_, err := newTestScorer().Score(l, baseRequest())
	require.Error(t, err)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "type", verr.Field)

	r := baseRequest()
	r.City = ""
	_, err = newTestScorer().Score(baseListing(), r)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "request", verr.Entity)
}

func TestScore_CustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriceMissingPoints = 0
	cfg.LocationPoints = 5

	res, err := NewScorer(cfg).Score(baseListing(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, 0+8+6+5, res.Score)
}

func randomPair(rng *rand.Rand) (model.Listing, model.Request) {
	types := []model.PropertyType{model.PropertyApartment, model.PropertyHouse, model.PropertyLand}
	cities := []string{"Praha", "Brno", "praha"}
	layouts := []string{"", "1+kk", "2+1", "3+1", "4+kk", "x"}
	maybe := func(lo, hi float64) *float64 {
		if rng.Intn(4) == 0 {
			return nil
		}
		return ptr(lo + rng.Float64()*(hi-lo))
	}

	l := model.Listing{
		Type:   types[rng.Intn(len(types))],
		City:   cities[rng.Intn(len(cities))],
		Layout: layouts[rng.Intn(len(layouts))],
		Price:  maybe(1_000_000, 10_000_000),
		AreaM2: maybe(20, 200),
	}
	r := model.Request{
		Type:      types[rng.Intn(len(types))],
		City:      cities[rng.Intn(len(cities))],
		LayoutMin: layouts[rng.Intn(len(layouts))],
		BudgetMax: maybe(1_000_000, 10_000_000),
		AreaMinM2: maybe(20, 200),
		RadiusKM:  maybe(1, 50),
	}
	if rng.Intn(2) == 0 {
		l.Lat, l.Lon = ptr(49.5+rng.Float64()), ptr(14+rng.Float64())
		r.Lat, r.Lon = ptr(49.5+rng.Float64()), ptr(14+rng.Float64())
	}
	return l, r
}

func TestScore_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := newTestScorer()

	for i := 0; i < 2000; i++ {
		l, r := randomPair(rng)

		first, err := s.Score(l, r)
		require.NoError(t, err)
		second, err := s.Score(l, r)
		require.NoError(t, err)
		assert.Equal(t, first, second, "scoring must be deterministic")

		assert.GreaterOrEqual(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, 100)

		if l.Type != r.Type {
			assert.Equal(t, 0, first.Score)
			assert.Equal(t, model.GateTypeMismatch, first.Reasons.GateFailed)
		}
		if first.Reasons.Gated() {
			assert.Equal(t, 0, first.Score)
		}
	}
}
