package model

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a listing or request that violates the input contract.
type ValidationError struct {
	Entity string // "listing" or "request"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// Validate checks the fields the matcher relies on.
func (l *Listing) Validate() error {
	const entity = "listing"
	if !l.Type.Valid() {
		return &ValidationError{Entity: entity, Field: "type", Reason: fmt.Sprintf("unknown property type %q", l.Type)}
	}
	if strings.TrimSpace(l.City) == "" {
		return &ValidationError{Entity: entity, Field: "city", Reason: "is required"}
	}
	if err := validateCoords(entity, l.Lat, l.Lon); err != nil {
		return err
	}
	return firstNegative(entity, map[string]*float64{
		"price":   l.Price,
		"area_m2": l.AreaM2,
	})
}

// Validate checks the fields the matcher relies on.
func (r *Request) Validate() error {
	const entity = "request"
	if !r.Type.Valid() {
		return &ValidationError{Entity: entity, Field: "type", Reason: fmt.Sprintf("unknown property type %q", r.Type)}
	}
	if strings.TrimSpace(r.City) == "" {
		return &ValidationError{Entity: entity, Field: "city", Reason: "is required"}
	}
	if err := validateCoords(entity, r.Lat, r.Lon); err != nil {
		return err
	}
	if err := firstNegative(entity, map[string]*float64{
		"radius_km":   r.RadiusKM,
		"budget_min":  r.BudgetMin,
		"budget_max":  r.BudgetMax,
		"area_min_m2": r.AreaMinM2,
		"area_max_m2": r.AreaMaxM2,
	}); err != nil {
		return err
	}
	if r.BudgetMin != nil && r.BudgetMax != nil && *r.BudgetMin > *r.BudgetMax {
		return &ValidationError{Entity: entity, Field: "budget_min", Reason: "exceeds budget_max"}
	}
	if r.AreaMinM2 != nil && r.AreaMaxM2 != nil && *r.AreaMinM2 > *r.AreaMaxM2 {
		return &ValidationError{Entity: entity, Field: "area_min_m2", Reason: "exceeds area_max_m2"}
	}
	return nil
}

func validateCoords(entity string, lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return &ValidationError{Entity: entity, Field: "lat/lon", Reason: "must be set together"}
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return &ValidationError{Entity: entity, Field: "lat", Reason: "out of range"}
	}
	if *lon < -180 || *lon > 180 {
		return &ValidationError{Entity: entity, Field: "lon", Reason: "out of range"}
	}
	return nil
}

// firstNegative checks fields in sorted order so the reported field is stable.
func firstNegative(entity string, fields map[string]*float64) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := fields[name]; v != nil && *v < 0 {
			return &ValidationError{Entity: entity, Field: name, Reason: "must be >= 0"}
		}
	}
	return nil
}
