package matcher

import (
	"fmt"

	"github.com/sells-group/listing-match/internal/model"
)

// FormatReasons renders a reasons record as display lines, in criterion order.
// It is a one-way view and plays no part in scoring.
func FormatReasons(r model.Reasons) []string {
	var lines []string

	if r.Type {
		lines = append(lines, "Property type matches")
	} else {
		lines = append(lines, "Property type differs")
	}

	switch r.Geo {
	case model.GeoWithinRadius:
		lines = append(lines, fmt.Sprintf("%.1f km away (search radius %s km)", deref(r.DistanceKM), trimFloat(deref(r.RadiusKM))))
	case model.GeoOutsideRadius:
		lines = append(lines, fmt.Sprintf("Outside search radius: %.1f km away (radius %s km)", deref(r.DistanceKM), trimFloat(deref(r.RadiusKM))))
	case model.GeoFallbackCityMatch:
		lines = append(lines, "Same city (no coordinates)")
	case model.GeoFallbackDistrictMatch:
		lines = append(lines, "Same district (no coordinates)")
	case model.GeoFallbackNoMatch:
		lines = append(lines, "Different city (no coordinates)")
	}

	switch r.Price {
	case model.PriceWithinBudget:
		lines = append(lines, "Price within budget")
	case model.PriceSlightlyOver:
		lines = append(lines, "Price slightly over budget")
	case model.PriceOverBudget:
		lines = append(lines, "Price over budget")
	case model.PriceMissing:
		lines = append(lines, "Price or budget not specified")
	}

	switch r.Area {
	case model.AreaSufficient:
		lines = append(lines, "Floor area sufficient")
	case model.AreaClose:
		lines = append(lines, "Floor area slightly below minimum")
	case model.AreaInsufficient:
		lines = append(lines, "Floor area too small")
	case model.AreaMissing:
		lines = append(lines, "Floor area not specified")
	}

	switch r.Layout {
	case model.LayoutMatch:
		lines = append(lines, "Layout meets minimum")
	case model.LayoutClose:
		lines = append(lines, "Layout one room short")
	case model.LayoutInsufficient:
		lines = append(lines, "Layout too small")
	case model.LayoutMissing:
		lines = append(lines, "Layout not specified")
	}

	if r.City {
		lines = append(lines, "Location bonus: same city")
	}
	if r.District {
		lines = append(lines, "Location bonus: same district")
	}
	if r.DistanceScore != nil {
		lines = append(lines, fmt.Sprintf("Proximity score %d", *r.DistanceScore))
	}

	switch r.GateFailed {
	case model.GateTypeMismatch:
		lines = append(lines, "Rejected: property type mismatch")
	case model.GateLocationRadius:
		lines = append(lines, "Rejected: outside search radius")
	case model.GateLocationCity:
		lines = append(lines, "Rejected: location does not match")
	}

	return lines
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// trimFloat prints whole numbers without a fractional part.
func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
