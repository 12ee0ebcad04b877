package model

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// PropertyType is the closed set of property kinds shared by listings and requests.
type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyLand      PropertyType = "land"
)

// Valid reports whether t is one of the known property types.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyHouse, PropertyLand:
		return true
	}
	return false
}

// HasLayout reports whether layout codes are meaningful for this type.
func (t PropertyType) HasLayout() bool {
	return t == PropertyApartment || t == PropertyHouse
}

// Status is the lifecycle state of a listing or request. Entities are never
// deleted; they move to StatusArchived.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// DefaultRadiusKM applies when a request has no usable search radius.
const DefaultRadiusKM = 20.0

// Listing is a property offered for sale or rent.
type Listing struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Type      PropertyType `json:"type"`
	Layout    string       `json:"layout,omitempty"`
	City      string       `json:"city"`
	District  string       `json:"district,omitempty"`
	Address   string       `json:"address,omitempty"`
	Lat       *float64     `json:"lat,omitempty"`
	Lon       *float64     `json:"lon,omitempty"`
	Price     *float64     `json:"price,omitempty"`
	AreaM2    *float64     `json:"area_m2,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasCoordinates reports whether both lat and lon are set.
func (l *Listing) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Request is a buyer or renter's search criteria.
type Request struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Type      PropertyType `json:"type"`
	LayoutMin string       `json:"layout_min,omitempty"`
	City      string       `json:"city"`
	District  string       `json:"district,omitempty"`
	Address   string       `json:"address,omitempty"`
	RadiusKM  *float64     `json:"radius_km,omitempty"`
	BudgetMin *float64     `json:"budget_min,omitempty"`
	BudgetMax *float64     `json:"budget_max,omitempty"`
	AreaMinM2 *float64     `json:"area_min_m2,omitempty"`
	AreaMaxM2 *float64     `json:"area_max_m2,omitempty"`
	Lat       *float64     `json:"lat,omitempty"`
	Lon       *float64     `json:"lon,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasCoordinates reports whether both lat and lon are set.
func (r *Request) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// Radius returns the search radius, falling back to def when unset or non-positive.
func (r *Request) Radius(def float64) float64 {
	if r.RadiusKM == nil || *r.RadiusKM <= 0 {
		return def
	}
	return *r.RadiusKM
}

// LayoutRooms reduces a layout code such as "3+1" or "2+kk" to its leading
// room count. Absent or non-numeric codes yield 0.
func LayoutRooms(code string) int {
	code = strings.TrimSpace(code)
	end := 0
	for end < len(code) && unicode.IsDigit(rune(code[end])) {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(code[:end])
	if err != nil {
		return 0
	}
	return n
}
