package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/pkg/geocode"
)

// geocodeListing fills coordinates for a listing with an address and no
// coordinates. Failures leave the listing on the city/district fallback path.
func (s *Service) geocodeListing(ctx context.Context, l *model.Listing) {
	if l.HasCoordinates() || l.Lat != nil || l.Lon != nil {
		return
	}
	lat, lon, ok := s.lookup(ctx, "listing", l.ID, geocode.Query{Address: l.Address, District: l.District, City: l.City})
	if ok {
		l.Lat, l.Lon = &lat, &lon
	}
}

// geocodeRequest fills coordinates for a request with an address and no coordinates.
func (s *Service) geocodeRequest(ctx context.Context, r *model.Request) {
	if r.HasCoordinates() || r.Lat != nil || r.Lon != nil {
		return
	}
	lat, lon, ok := s.lookup(ctx, "request", r.ID, geocode.Query{Address: r.Address, District: r.District, City: r.City})
	if ok {
		r.Lat, r.Lon = &lat, &lon
	}
}

func (s *Service) lookup(ctx context.Context, entity, id string, q geocode.Query) (float64, float64, bool) {
	if s.geocoder == nil || q.Address == "" {
		return 0, 0, false
	}
	res, err := s.geocoder.Geocode(ctx, q)
	if err != nil {
		zap.L().Warn("matching: geocode failed, using name fallback",
			zap.String("entity", entity),
			zap.String("id", id),
			zap.Error(err),
		)
		return 0, 0, false
	}
	if !res.Matched {
		zap.L().Debug("matching: address not geocoded",
			zap.String("entity", entity),
			zap.String("id", id),
			zap.String("address", q.Address),
		)
		return 0, 0, false
	}
	return res.Latitude, res.Longitude, true
}
