package model

import "time"

// Side identifies which entity a match computation was anchored on.
type Side string

const (
	SideListing Side = "listing"
	SideRequest Side = "request"
)

// Match is a persisted match result. Rows are never mutated; a later
// computation run for the same anchor sets SupersededAt on the old rows.
type Match struct {
	ID           string     `json:"id"`
	ListingID    string     `json:"listing_id"`
	RequestID    string     `json:"request_id"`
	Side         Side       `json:"side"`
	Score        int        `json:"score"`
	Reasons      Reasons    `json:"reasons"`
	CreatedAt    time.Time  `json:"created_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}
