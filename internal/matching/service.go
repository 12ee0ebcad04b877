// Package matching keeps persisted match results in step with listing and
// request changes. It validates and stores entities, fills in coordinates
// from a geocoder when one is configured, ranks candidates from the other
// side and replaces the entity's current matches with the new run.
package matching

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
	"github.com/sells-group/listing-match/pkg/geocode"
)

// ErrInactive is returned when rematching an archived entity.
var ErrInactive = errors.New("matching: entity is archived")

// Service coordinates the store, scorer and optional geocoder.
type Service struct {
	store    store.Store
	scorer   *matcher.Scorer
	geocoder geocode.Client
	workers  int
}

// Option configures a Service.
type Option func(*Service)

// WithGeocoder enables coordinate lookup for entities that carry an address
// but no coordinates.
func WithGeocoder(c geocode.Client) Option {
	return func(s *Service) {
		s.geocoder = c
	}
}

// WithWorkers bounds RematchAll concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Service.
func New(st store.Store, sc *matcher.Scorer, opts ...Option) *Service {
	s := &Service{
		store:   st,
		scorer:  sc,
		workers: max(1, sc.Config().Workers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scorer returns the scorer used for ranking.
func (s *Service) Scorer() *matcher.Scorer {
	return s.scorer
}

// --- Listings ---

// SubmitListing validates and stores a new listing, then computes and
// persists its matches.
func (s *Service) SubmitListing(ctx context.Context, l *model.Listing) ([]model.Match, error) {
	s.geocodeListing(ctx, l)
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "matching: submit listing")
	}
	if err := s.store.CreateListing(ctx, l); err != nil {
		return nil, eris.Wrap(err, "matching: submit listing")
	}
	return s.matchListing(ctx, l)
}

// UpdateListing replaces a stored listing's attributes and recomputes its
// matches. Id, status and creation time are kept from the stored record.
func (s *Service) UpdateListing(ctx context.Context, l *model.Listing) ([]model.Match, error) {
	existing, err := s.store.GetListing(ctx, l.ID)
	if err != nil {
		return nil, eris.Wrap(err, "matching: update listing")
	}
	l.Status = existing.Status
	l.CreatedAt = existing.CreatedAt

	s.geocodeListing(ctx, l)
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "matching: update listing")
	}
	if err := s.store.UpdateListing(ctx, l); err != nil {
		return nil, eris.Wrap(err, "matching: update listing")
	}
	if l.Status != model.StatusActive {
		return nil, nil
	}
	matches, err := s.matchListing(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := s.refreshCounterparts(ctx, model.SideListing, l.ID); err != nil {
		return nil, eris.Wrap(err, "matching: update listing")
	}
	return matches, nil
}

// ArchiveListing archives a listing and supersedes every current match that
// involves it, including rows saved by request runs.
func (s *Service) ArchiveListing(ctx context.Context, id string) error {
	if err := s.store.ArchiveListing(ctx, id); err != nil {
		return eris.Wrap(err, "matching: archive listing")
	}
	if err := s.store.SaveMatches(ctx, model.SideListing, id, nil); err != nil {
		return eris.Wrap(err, "matching: archive listing")
	}
	return eris.Wrap(s.refreshCounterparts(ctx, model.SideListing, id), "matching: archive listing")
}

// RematchListing recomputes matches for a stored active listing.
func (s *Service) RematchListing(ctx context.Context, id string) ([]model.Match, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "matching: rematch listing")
	}
	if l.Status != model.StatusActive {
		return nil, eris.Wrapf(ErrInactive, "listing %s", id)
	}
	return s.matchListing(ctx, l)
}

func (s *Service) matchListing(ctx context.Context, l *model.Listing) ([]model.Match, error) {
	candidates, err := s.store.ListRequests(ctx, store.EntityFilter{Status: model.StatusActive, Type: l.Type})
	if err != nil {
		return nil, eris.Wrap(err, "matching: load requests")
	}
	ranked, err := s.scorer.TopForListing(ctx, *l, candidates, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]model.Match, 0, len(ranked))
	for _, r := range ranked {
		matches = append(matches, model.Match{
			ListingID: l.ID,
			RequestID: r.Candidate.ID,
			Score:     r.Score,
			Reasons:   r.Reasons,
		})
	}
	if err := s.store.SaveMatches(ctx, model.SideListing, l.ID, matches); err != nil {
		return nil, eris.Wrap(err, "matching: save listing matches")
	}

	zap.L().Info("matching: listing matched",
		zap.String("listing_id", l.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// --- Requests ---

// SubmitRequest validates and stores a new request, then computes and
// persists its matches.
func (s *Service) SubmitRequest(ctx context.Context, r *model.Request) ([]model.Match, error) {
	s.geocodeRequest(ctx, r)
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "matching: submit request")
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, eris.Wrap(err, "matching: submit request")
	}
	return s.matchRequest(ctx, r)
}

// UpdateRequest replaces a stored request's attributes and recomputes its matches.
func (s *Service) UpdateRequest(ctx context.Context, r *model.Request) ([]model.Match, error) {
	existing, err := s.store.GetRequest(ctx, r.ID)
	if err != nil {
		return nil, eris.Wrap(err, "matching: update request")
	}
	r.Status = existing.Status
	r.CreatedAt = existing.CreatedAt

	s.geocodeRequest(ctx, r)
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "matching: update request")
	}
	if err := s.store.UpdateRequest(ctx, r); err != nil {
		return nil, eris.Wrap(err, "matching: update request")
	}
	if r.Status != model.StatusActive {
		return nil, nil
	}
	matches, err := s.matchRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := s.refreshCounterparts(ctx, model.SideRequest, r.ID); err != nil {
		return nil, eris.Wrap(err, "matching: update request")
	}
	return matches, nil
}

// ArchiveRequest archives a request and supersedes every current match that
// involves it, including rows saved by listing runs.
func (s *Service) ArchiveRequest(ctx context.Context, id string) error {
	if err := s.store.ArchiveRequest(ctx, id); err != nil {
		return eris.Wrap(err, "matching: archive request")
	}
	if err := s.store.SaveMatches(ctx, model.SideRequest, id, nil); err != nil {
		return eris.Wrap(err, "matching: archive request")
	}
	return eris.Wrap(s.refreshCounterparts(ctx, model.SideRequest, id), "matching: archive request")
}

// RematchRequest recomputes matches for a stored active request.
func (s *Service) RematchRequest(ctx context.Context, id string) ([]model.Match, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "matching: rematch request")
	}
	if r.Status != model.StatusActive {
		return nil, eris.Wrapf(ErrInactive, "request %s", id)
	}
	return s.matchRequest(ctx, r)
}

func (s *Service) matchRequest(ctx context.Context, r *model.Request) ([]model.Match, error) {
	candidates, err := s.store.ListListings(ctx, store.EntityFilter{Status: model.StatusActive, Type: r.Type})
	if err != nil {
		return nil, eris.Wrap(err, "matching: load listings")
	}
	ranked, err := s.scorer.TopForRequest(ctx, *r, candidates, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]model.Match, 0, len(ranked))
	for _, l := range ranked {
		matches = append(matches, model.Match{
			ListingID: l.Candidate.ID,
			RequestID: r.ID,
			Score:     l.Score,
			Reasons:   l.Reasons,
		})
	}
	if err := s.store.SaveMatches(ctx, model.SideRequest, r.ID, matches); err != nil {
		return nil, eris.Wrap(err, "matching: save request matches")
	}

	zap.L().Info("matching: request matched",
		zap.String("request_id", r.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// --- Counterparts ---

// refreshCounterparts supersedes the rows that other-side runs saved for the
// entity, then rematches those anchors so their current sets reflect its new
// state. A counterpart that fails to rematch keeps no current row for the
// entity and is logged; it is picked up again by the next run.
func (s *Service) refreshCounterparts(ctx context.Context, side model.Side, id string) error {
	anchors, err := s.store.SupersedeReferences(ctx, side, id)
	if err != nil {
		return err
	}

	other := model.SideRequest
	if side == model.SideRequest {
		other = model.SideListing
	}
	for _, anchorID := range anchors {
		if _, err := s.rematchIfActive(ctx, other, anchorID); err != nil {
			zap.L().Warn("matching: counterpart rematch failed",
				zap.String("side", string(side)),
				zap.String("entity_id", id),
				zap.String("counterpart_id", anchorID),
				zap.Error(err),
			)
		}
	}
	if len(anchors) > 0 {
		zap.L().Debug("matching: counterparts refreshed",
			zap.String("side", string(side)),
			zap.String("entity_id", id),
			zap.Int("counterparts", len(anchors)),
		)
	}
	return nil
}

// rematchIfActive recomputes one anchor's run, skipping archived anchors.
func (s *Service) rematchIfActive(ctx context.Context, side model.Side, id string) ([]model.Match, error) {
	if side == model.SideListing {
		l, err := s.store.GetListing(ctx, id)
		if err != nil || l.Status != model.StatusActive {
			return nil, err
		}
		return s.matchListing(ctx, l)
	}
	r, err := s.store.GetRequest(ctx, id)
	if err != nil || r.Status != model.StatusActive {
		return nil, err
	}
	return s.matchRequest(ctx, r)
}

// --- Bulk ---

// RematchSummary counts the work done by RematchAll.
type RematchSummary struct {
	Listings int `json:"listings"`
	Requests int `json:"requests"`
	Matches  int `json:"matches"`
}

// RematchAll recomputes matches for every active listing and request.
// Entities are processed concurrently up to the configured worker count; the
// first failure cancels the rest.
func (s *Service) RematchAll(ctx context.Context) (RematchSummary, error) {
	active := store.EntityFilter{Status: model.StatusActive}
	listings, err := s.store.ListListings(ctx, active)
	if err != nil {
		return RematchSummary{}, eris.Wrap(err, "matching: rematch all")
	}
	requests, err := s.store.ListRequests(ctx, active)
	if err != nil {
		return RematchSummary{}, eris.Wrap(err, "matching: rematch all")
	}

	listingCounts := make([]int, len(listings))
	requestCounts := make([]int, len(requests))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range listings {
		g.Go(func() error {
			m, err := s.matchListing(gCtx, &listings[i])
			if err != nil {
				return eris.Wrapf(err, "listing %s", listings[i].ID)
			}
			listingCounts[i] = len(m)
			return nil
		})
	}
	for i := range requests {
		g.Go(func() error {
			m, err := s.matchRequest(gCtx, &requests[i])
			if err != nil {
				return eris.Wrapf(err, "request %s", requests[i].ID)
			}
			requestCounts[i] = len(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RematchSummary{}, eris.Wrap(err, "matching: rematch all")
	}

	sum := RematchSummary{Listings: len(listings), Requests: len(requests)}
	for _, n := range listingCounts {
		sum.Matches += n
	}
	for _, n := range requestCounts {
		sum.Matches += n
	}
	zap.L().Info("matching: rematch complete",
		zap.Int("listings", sum.Listings),
		zap.Int("requests", sum.Requests),
		zap.Int("matches", sum.Matches),
	)
	return sum, nil
}
