package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/config"
	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/matching"
	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/store"
	"github.com/sells-group/listing-match/pkg/geocode"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// matchConfig resolves the scoring constants, applying the weights file if set.
func matchConfig(base config.MatchConfig) (config.MatchConfig, error) {
	mc := base
	if mc.WeightsFile != "" {
		loaded, err := matcher.LoadWeightsFile(mc.WeightsFile, mc)
		if err != nil {
			return config.MatchConfig{}, err
		}
		mc = loaded
		zap.L().Info("loaded scoring weights", zap.String("path", mc.WeightsFile))
	}
	if err := matcher.ValidateConfig(mc); err != nil {
		return config.MatchConfig{}, err
	}
	return mc, nil
}

// newGeocoder builds the geocoding client, or nil when disabled.
func newGeocoder(gc config.GeocodeConfig) geocode.Client {
	if !gc.Enabled {
		return nil
	}
	return geocode.NewClient(
		geocode.WithBaseURL(gc.BaseURL),
		geocode.WithUserAgent(gc.UserAgent),
		geocode.WithCountryCodes(gc.CountryCodes),
		geocode.WithMinInterval(time.Duration(gc.MinIntervalMS)*time.Millisecond),
		geocode.WithHTTPClient(newHTTPClient(gc.TimeoutSecs)),
		geocode.WithRetry(resilience.Policy{
			MaxAttempts:    gc.MaxAttempts,
			InitialBackoff: time.Duration(gc.RetryBackoffMS) * time.Millisecond,
			JitterFraction: 0.25,
			Name:           "nominatim",
		}),
		geocode.WithCache(),
	)
}

// newHTTPClient returns an HTTP client with the given timeout in seconds
// (10s when unset).
func newHTTPClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 10
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

// initService opens the store and wires the matching service around it.
// The caller closes the returned store.
func initService(ctx context.Context) (*matching.Service, store.Store, error) {
	mc, err := matchConfig(cfg.Match)
	if err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []matching.Option{matching.WithWorkers(mc.Workers)}
	if gc := newGeocoder(cfg.Geocode); gc != nil {
		opts = append(opts, matching.WithGeocoder(gc))
	}
	return matching.New(st, matcher.NewScorer(mc), opts...), st, nil
}

// readJSON decodes a JSON document from path, or from stdin when path is "-".
func readJSON[T any](path string, stdin io.Reader) (T, error) {
	var v T
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return v, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, eris.Wrapf(err, "decode %s", path)
	}
	return v, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
