package matcher

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-match/internal/model"
)

// Ranked is one candidate that cleared the score threshold.
type Ranked[T any] struct {
	Candidate T             `json:"candidate"`
	Score     int           `json:"score"`
	Reasons   model.Reasons `json:"reasons"`
}

// TopForListing ranks requests against a fixed listing. topN <= 0 uses the
// configured default. Invalid requests are skipped.
func (s *Scorer) TopForListing(ctx context.Context, l model.Listing, requests []model.Request, topN int) ([]Ranked[model.Request], error) {
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "matcher: top for listing")
	}
	return rank(ctx, s, requests, topN, func(r *model.Request) (Result, error) {
		if err := r.Validate(); err != nil {
			return Result{}, err
		}
		return s.score(&l, r), nil
	})
}

// TopForRequest ranks listings against a fixed request. topN <= 0 uses the
// configured default. Invalid listings are skipped.
func (s *Scorer) TopForRequest(ctx context.Context, r model.Request, listings []model.Listing, topN int) ([]Ranked[model.Listing], error) {
	if err := r.Validate(); err != nil {
		return nil, eris.Wrap(err, "matcher: top for request")
	}
	return rank(ctx, s, listings, topN, func(l *model.Listing) (Result, error) {
		if err := l.Validate(); err != nil {
			return Result{}, err
		}
		return s.score(l, &r), nil
	})
}

// rank scores every candidate concurrently, drops those under MinScore, and
// returns the rest in descending score order. Ties keep candidate order.
func rank[T any](ctx context.Context, s *Scorer, candidates []T, topN int, scoreFn func(*T) (Result, error)) ([]Ranked[T], error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = s.cfg.TopN
	}

	results := make([]Result, len(candidates))
	valid := make([]bool, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Workers))
	for i := range candidates {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := scoreFn(&candidates[i])
			if err != nil {
				zap.L().Warn("matcher: skipping invalid candidate",
					zap.Int("index", i),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			valid[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "matcher: rank candidates")
	}

	var out []Ranked[T]
	for i, res := range results {
		if !valid[i] || res.Score < s.cfg.MinScore {
			continue
		}
		out = append(out, Ranked[T]{Candidate: candidates[i], Score: res.Score, Reasons: res.Reasons})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}

	zap.L().Debug("matcher: ranked candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}
