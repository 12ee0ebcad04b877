// Package store persists listings, requests, and match results.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/listing-match/internal/model"
)

// ErrNotFound is returned (wrapped) when a listing or request id is unknown.
var ErrNotFound = errors.New("store: not found")

// EntityFilter specifies criteria for listing listings or requests.
type EntityFilter struct {
	Status model.Status       `json:"status,omitempty"`
	Type   model.PropertyType `json:"type,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// MatchFilter specifies criteria for listing persisted matches. Side and
// EntityID select the runs anchored on one listing or request.
type MatchFilter struct {
	Side              model.Side `json:"side,omitempty"`
	EntityID          string     `json:"entity_id,omitempty"`
	IncludeSuperseded bool       `json:"include_superseded,omitempty"`
	Limit             int        `json:"limit,omitempty"`
}

// Store defines the persistence interface for listings, requests and matches.
type Store interface {
	// Listings
	CreateListing(ctx context.Context, l *model.Listing) error
	UpdateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	ListListings(ctx context.Context, filter EntityFilter) ([]model.Listing, error)
	ArchiveListing(ctx context.Context, id string) error

	// Requests
	CreateRequest(ctx context.Context, r *model.Request) error
	UpdateRequest(ctx context.Context, r *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, filter EntityFilter) ([]model.Request, error)
	ArchiveRequest(ctx context.Context, id string) error

	// Matches
	SaveMatches(ctx context.Context, side model.Side, entityID string, matches []model.Match) error
	ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error)
	// SupersedeReferences marks superseded every current row that a run
	// anchored on the other side saved for this entity, and returns the ids of
	// those other-side anchors.
	SupersedeReferences(ctx context.Context, side model.Side, entityID string) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
