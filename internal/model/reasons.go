package model

// GateFailure names the hard gate that rejected a pair.
type GateFailure string

const (
	GateTypeMismatch   GateFailure = "type_mismatch"
	GateLocationRadius GateFailure = "location_radius"
	GateLocationCity   GateFailure = "location_city"
)

// GeoOutcome records how the location gate was decided.
type GeoOutcome string

const (
	GeoWithinRadius          GeoOutcome = "within_radius"
	GeoOutsideRadius         GeoOutcome = "outside_radius"
	GeoFallbackNoMatch       GeoOutcome = "missing_fallback_city"
	GeoFallbackCityMatch     GeoOutcome = "missing_fallback_city_match"
	GeoFallbackDistrictMatch GeoOutcome = "missing_fallback_district_match"
)

// PriceOutcome is the price tier a listing landed in.
type PriceOutcome string

const (
	PriceWithinBudget PriceOutcome = "within_budget"
	PriceSlightlyOver PriceOutcome = "slightly_over"
	PriceOverBudget   PriceOutcome = "over_budget"
	PriceMissing      PriceOutcome = "missing"
)

// AreaOutcome is the floor-area tier a listing landed in.
type AreaOutcome string

const (
	AreaSufficient   AreaOutcome = "sufficient"
	AreaClose        AreaOutcome = "close"
	AreaInsufficient AreaOutcome = "insufficient"
	AreaMissing      AreaOutcome = "missing"
)

// LayoutOutcome is the room-count tier a listing landed in.
type LayoutOutcome string

const (
	LayoutMatch        LayoutOutcome = "match"
	LayoutClose        LayoutOutcome = "close"
	LayoutInsufficient LayoutOutcome = "insufficient"
	LayoutMissing      LayoutOutcome = "n/a"
)

// Reasons explains a match score criterion by criterion. Empty outcomes mean
// the criterion was never evaluated (gate short-circuit, or layout for land).
// Field order is the JSON key order.
type Reasons struct {
	Type          bool          `json:"type"`
	Geo           GeoOutcome    `json:"geo,omitempty"`
	DistanceKM    *float64      `json:"distance_km,omitempty"`
	RadiusKM      *float64      `json:"radius_km,omitempty"`
	GateFailed    GateFailure   `json:"gate_failed,omitempty"`
	Price         PriceOutcome  `json:"price,omitempty"`
	Area          AreaOutcome   `json:"area,omitempty"`
	Layout        LayoutOutcome `json:"layout,omitempty"`
	DistanceScore *int          `json:"distance_score,omitempty"`
	City          bool          `json:"city,omitempty"`
	District      bool          `json:"district,omitempty"`
}

// Gated reports whether a hard gate rejected the pair.
func (r Reasons) Gated() bool {
	return r.GateFailed != ""
}
