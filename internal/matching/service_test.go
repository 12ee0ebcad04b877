package matching

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
	"github.com/sells-group/listing-match/pkg/geocode"
)

func fp(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	return New(st, matcher.NewScorer(matcher.DefaultConfig()), opts...), st
}

type fakeGeocoder struct {
	results map[string]geocode.Result
	err     error
	calls   []geocode.Query
}

func (f *fakeGeocoder) Geocode(_ context.Context, q geocode.Query) (*geocode.Result, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.results[q.Address]
	if !ok {
		return &geocode.Result{Matched: false}, nil
	}
	return &r, nil
}

func brnoListing() *model.Listing {
	return &model.Listing{
		Type:   model.PropertyApartment,
		Layout: "3+1",
		City:   "Brno",
		Price:  fp(5_000_000),
		AreaM2: fp(75),
	}
}

// request scoring 100 against brnoListing.
func perfectRequest() *model.Request {
	return &model.Request{Type: model.PropertyApartment, LayoutMin: "2+kk", City: "Brno", BudgetMax: fp(5_500_000), AreaMinM2: fp(60)}
}

// request scoring 55 against brnoListing (over budget).
func tightRequest() *model.Request {
	return &model.Request{Type: model.PropertyApartment, LayoutMin: "2+kk", City: "brno", BudgetMax: fp(4_000_000), AreaMinM2: fp(60)}
}

// request scoring 30 against brnoListing (over budget, too small).
func belowThresholdRequest() *model.Request {
	return &model.Request{Type: model.PropertyApartment, LayoutMin: "2+kk", City: "Brno", BudgetMax: fp(4_000_000), AreaMinM2: fp(100)}
}

func TestSubmitListing_PersistsRankedMatches(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	perfect, tight, low := perfectRequest(), tightRequest(), belowThresholdRequest()
	praha := perfectRequest()
	praha.City = "Praha"
	for _, r := range []*model.Request{low, tight, perfect, praha} {
		require.NoError(t, st.CreateRequest(ctx, r))
	}

	l := brnoListing()
	matches, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, perfect.ID, matches[0].RequestID)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, tight.ID, matches[1].RequestID)
	assert.Equal(t, 55, matches[1].Score)
	assert.Equal(t, model.PriceOverBudget, matches[1].Reasons.Price)

	stored, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, m := range stored {
		assert.GreaterOrEqual(t, m.Score, 40)
	}
}

func TestSubmitListing_ValidationError(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	l := brnoListing()
	l.Price = fp(-1)
	_, err := svc.SubmitListing(ctx, l)
	require.Error(t, err)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "price", ve.Field)

	all, err := st.ListListings(ctx, store.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitRequest_MirrorsListingSide(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	l := brnoListing()
	require.NoError(t, st.CreateListing(ctx, l))
	house := brnoListing()
	house.Type = model.PropertyHouse
	require.NoError(t, st.CreateListing(ctx, house))

	r := perfectRequest()
	matches, err := svc.SubmitRequest(ctx, r)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, l.ID, matches[0].ListingID)
	assert.Equal(t, r.ID, matches[0].RequestID)
	assert.Equal(t, model.SideRequest, matches[0].Side)
}

func TestUpdateListing_SupersedesPreviousMatches(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	perfect, tight := perfectRequest(), tightRequest()
	require.NoError(t, st.CreateRequest(ctx, perfect))
	require.NoError(t, st.CreateRequest(ctx, tight))

	l := brnoListing()
	_, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)

	// Price drop: tight request now within budget.
	upd := *l
	upd.Price = fp(3_900_000)
	matches, err := svc.UpdateListing(ctx, &upd)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, 100, matches[1].Score)

	history, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID, IncludeSuperseded: true})
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestUpdateListing_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	l := brnoListing()
	l.ID = "missing"
	_, err := svc.UpdateListing(context.Background(), l)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestArchiveListing_ClearsMatches(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRequest(ctx, perfectRequest()))
	l := brnoListing()
	_, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)

	require.NoError(t, svc.ArchiveListing(ctx, l.ID))

	current, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID})
	require.NoError(t, err)
	assert.Empty(t, current)

	_, err = svc.RematchListing(ctx, l.ID)
	assert.ErrorIs(t, err, ErrInactive)

	// Archived listings are not candidates for new requests.
	matches, err := svc.SubmitRequest(ctx, perfectRequest())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestArchiveListing_SupersedesRequestSideRows(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	l := brnoListing()
	_, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	other := brnoListing()
	other.Price = fp(5_400_000)
	_, err = svc.SubmitListing(ctx, other)
	require.NoError(t, err)

	r := perfectRequest()
	matches, err := svc.SubmitRequest(ctx, r)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	require.NoError(t, svc.ArchiveListing(ctx, l.ID))

	current, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideRequest, EntityID: r.ID})
	require.NoError(t, err)
	require.Len(t, current, 1, "the request keeps only its active counterpart")
	assert.Equal(t, other.ID, current[0].ListingID)
	assert.Equal(t, 100, current[0].Score)

	all, err := st.ListMatches(ctx, store.MatchFilter{})
	require.NoError(t, err)
	for _, m := range all {
		assert.NotEqual(t, l.ID, m.ListingID, "archived listing still in a current match")
	}
}

func TestUpdateRequest_RefreshesListingSideRows(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	r := perfectRequest()
	_, err := svc.SubmitRequest(ctx, r)
	require.NoError(t, err)

	l := brnoListing()
	matches, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 100, matches[0].Score)

	// Budget and area now far out of reach: the pair drops below the threshold.
	upd := *r
	upd.BudgetMax = fp(1)
	upd.AreaMinM2 = fp(1000)
	matches, err = svc.UpdateRequest(ctx, &upd)
	require.NoError(t, err)
	assert.Empty(t, matches)

	current, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID})
	require.NoError(t, err)
	assert.Empty(t, current)

	history, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID, IncludeSuperseded: true})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].SupersededAt)
}

func TestUpdateListing_RescoresRequestSideRows(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	l := brnoListing()
	_, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	r := perfectRequest()
	_, err = svc.SubmitRequest(ctx, r)
	require.NoError(t, err)

	// Over budget: 100 -> 55.
	upd := *l
	upd.Price = fp(9_000_000)
	_, err = svc.UpdateListing(ctx, &upd)
	require.NoError(t, err)

	current, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideRequest, EntityID: r.ID})
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, l.ID, current[0].ListingID)
	assert.Equal(t, 55, current[0].Score)
}

func TestArchiveRequest_SupersedesListingSideRows(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	r := perfectRequest()
	_, err := svc.SubmitRequest(ctx, r)
	require.NoError(t, err)
	l := brnoListing()
	matches, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, svc.ArchiveRequest(ctx, r.ID))

	current, err := st.ListMatches(ctx, store.MatchFilter{Side: model.SideListing, EntityID: l.ID})
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestArchiveRequest(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.CreateListing(ctx, brnoListing()))
	r := perfectRequest()
	matches, err := svc.SubmitRequest(ctx, r)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, svc.ArchiveRequest(ctx, r.ID))
	got, err := st.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, got.Status)

	_, err = svc.RematchRequest(ctx, r.ID)
	assert.ErrorIs(t, err, ErrInactive)

	assert.ErrorIs(t, svc.ArchiveRequest(ctx, "missing"), store.ErrNotFound)
}

func TestRematchAll(t *testing.T) {
	svc, st := newTestService(t, WithWorkers(2))
	ctx := context.Background()

	for range 3 {
		require.NoError(t, st.CreateListing(ctx, brnoListing()))
	}
	require.NoError(t, st.CreateRequest(ctx, perfectRequest()))
	require.NoError(t, st.CreateRequest(ctx, belowThresholdRequest()))

	sum, err := svc.RematchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Listings)
	assert.Equal(t, 2, sum.Requests)
	// Each listing matches the perfect request; the perfect request matches all three listings.
	assert.Equal(t, 6, sum.Matches)
}

func TestSubmitListing_GeocodesAddress(t *testing.T) {
	geo := &fakeGeocoder{results: map[string]geocode.Result{
		"Masarykova 1": {Latitude: 49.1951, Longitude: 16.6068, Matched: true},
	}}
	svc, st := newTestService(t, WithGeocoder(geo))
	ctx := context.Background()

	// Request 5.6 km north with a 20 km radius.
	r := perfectRequest()
	r.Lat, r.Lon = fp(49.2451), fp(16.6068)
	require.NoError(t, st.CreateRequest(ctx, r))

	l := brnoListing()
	l.Address = "Masarykova 1"
	matches, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	require.NotNil(t, l.Lat)
	assert.InDelta(t, 49.1951, *l.Lat, 0.0001)

	require.Len(t, matches, 1)
	assert.Equal(t, model.GeoWithinRadius, matches[0].Reasons.Geo)
	require.NotNil(t, matches[0].Reasons.DistanceKM)
	assert.InDelta(t, 5.6, *matches[0].Reasons.DistanceKM, 0.05)
	require.Len(t, geo.calls, 1)
	assert.Equal(t, "Brno", geo.calls[0].City)
}

func TestSubmitListing_GeocodeFailureFallsBack(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("upstream down")}
	svc, st := newTestService(t, WithGeocoder(geo))
	ctx := context.Background()

	require.NoError(t, st.CreateRequest(ctx, perfectRequest()))

	l := brnoListing()
	l.Address = "Masarykova 1"
	matches, err := svc.SubmitListing(ctx, l)
	require.NoError(t, err)
	assert.Nil(t, l.Lat)
	require.Len(t, matches, 1)
	assert.Equal(t, model.GeoFallbackCityMatch, matches[0].Reasons.Geo)
}

func TestSubmitRequest_SkipsGeocodeWithoutAddress(t *testing.T) {
	geo := &fakeGeocoder{}
	svc, _ := newTestService(t, WithGeocoder(geo))

	_, err := svc.SubmitRequest(context.Background(), perfectRequest())
	require.NoError(t, err)
	assert.Empty(t, geo.calls)
}
