package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/db"
	"github.com/sells-group/listing-match/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	pinger  func(context.Context) error
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, pinger: pool.Ping, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status        TEXT NOT NULL DEFAULT 'active',
	property_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS requests (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status        TEXT NOT NULL DEFAULT 'active',
	property_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	listing_id    TEXT NOT NULL REFERENCES listings(id),
	request_id    TEXT NOT NULL REFERENCES requests(id),
	side          TEXT NOT NULL,
	score         INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	rank          INTEGER NOT NULL,
	reasons       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	superseded_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_status_type ON listings(status, property_type);
CREATE INDEX IF NOT EXISTS idx_requests_status_type ON requests(status, property_type);
CREATE INDEX IF NOT EXISTS idx_matches_listing_current ON matches(listing_id) WHERE side = 'listing' AND superseded_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_matches_request_current ON matches(request_id) WHERE side = 'request' AND superseded_at IS NULL;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return eris.Wrap(s.pinger(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Listings ---

func (s *PostgresStore) CreateListing(ctx context.Context, l *model.Listing) error {
	stampNew(&l.ID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	row, err := listingRow(l)
	if err != nil {
		return err
	}
	return s.insertEntity(ctx, tableListings, row)
}

func (s *PostgresStore) UpdateListing(ctx context.Context, l *model.Listing) error {
	l.UpdatedAt = time.Now().UTC()
	row, err := listingRow(l)
	if err != nil {
		return err
	}
	return s.updateEntity(ctx, tableListings, row)
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	row, err := s.getEntity(ctx, tableListings, id)
	if err != nil {
		return nil, err
	}
	l, err := decodeListing(row.Data)
	if err != nil {
		return nil, err
	}
	overlayListing(l, row)
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, filter EntityFilter) ([]model.Listing, error) {
	rows, err := s.listEntities(ctx, tableListings, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(rows))
	for _, row := range rows {
		l, err := decodeListing(row.Data)
		if err != nil {
			return nil, err
		}
		overlayListing(l, row)
		out = append(out, *l)
	}
	return out, nil
}

func (s *PostgresStore) ArchiveListing(ctx context.Context, id string) error {
	return s.archiveEntity(ctx, tableListings, id)
}

// --- Requests ---

func (s *PostgresStore) CreateRequest(ctx context.Context, r *model.Request) error {
	stampNew(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	row, err := requestRow(r)
	if err != nil {
		return err
	}
	return s.insertEntity(ctx, tableRequests, row)
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, r *model.Request) error {
	r.UpdatedAt = time.Now().UTC()
	row, err := requestRow(r)
	if err != nil {
		return err
	}
	return s.updateEntity(ctx, tableRequests, row)
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row, err := s.getEntity(ctx, tableRequests, id)
	if err != nil {
		return nil, err
	}
	r, err := decodeRequest(row.Data)
	if err != nil {
		return nil, err
	}
	overlayRequest(r, row)
	return r, nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, filter EntityFilter) ([]model.Request, error) {
	rows, err := s.listEntities(ctx, tableRequests, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Request, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRequest(row.Data)
		if err != nil {
			return nil, err
		}
		overlayRequest(r, row)
		out = append(out, *r)
	}
	return out, nil
}

func (s *PostgresStore) ArchiveRequest(ctx context.Context, id string) error {
	return s.archiveEntity(ctx, tableRequests, id)
}

// --- Matches ---

func (s *PostgresStore) SaveMatches(ctx context.Context, side model.Side, entityID string, matches []model.Match) error {
	col, err := anchorColumn(side)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	reasons, err := prepareMatches(side, matches, now)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save matches")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE matches SET superseded_at = $1 WHERE side = $2 AND `+col+` = $3 AND superseded_at IS NULL`,
		now, string(side), entityID,
	); err != nil {
		return eris.Wrapf(err, "postgres: supersede matches for %s %s", side, entityID)
	}

	rows := make([][]any, len(matches))
	for i, m := range matches {
		rows[i] = []any{m.ID, m.ListingID, m.RequestID, string(side), m.Score, i, reasons[i], now}
	}
	if _, err := db.CopyFrom(ctx, tx, tableMatches, matchColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert matches for %s %s", side, entityID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save matches")
}

func (s *PostgresStore) SupersedeReferences(ctx context.Context, side model.Side, entityID string) ([]string, error) {
	col, err := anchorColumn(side)
	if err != nil {
		return nil, err
	}
	other, otherCol, err := counterpart(side)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`UPDATE matches SET superseded_at = $1 WHERE side = $2 AND `+col+` = $3 AND superseded_at IS NULL RETURNING `+otherCol,
		time.Now().UTC(), string(other), entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: supersede references to %s %s", side, entityID)
	}
	defer rows.Close()

	ids, err := collectIDs(rows)
	return ids, eris.Wrapf(err, "postgres: supersede references to %s %s", side, entityID)
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error) {
	query := `SELECT id, listing_id, request_id, side, score, reasons, created_at, superseded_at FROM matches WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Side != "" {
		query += fmt.Sprintf(` AND side = $%d`, argIdx)
		args = append(args, string(filter.Side))
		argIdx++
	}
	if filter.EntityID != "" {
		col, err := anchorColumn(filter.Side)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND %s = $%d`, col, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if !filter.IncludeSuperseded {
		query += ` AND superseded_at IS NULL`
	}
	query += ` ORDER BY score DESC, created_at DESC, rank ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var side string
		var reasons []byte
		if err := rows.Scan(&m.ID, &m.ListingID, &m.RequestID, &side, &m.Score, &reasons, &m.CreatedAt, &m.SupersededAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		m.Side = model.Side(side)
		if err := decodeReasons(reasons, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}

// --- shared entity helpers ---

func (s *PostgresStore) insertEntity(ctx context.Context, table string, row entityRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+table+` (id, status, property_type, city, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.Status, row.Type, row.City, row.Data, row.CreatedAt, row.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert %s %s", table, row.ID)
}

func (s *PostgresStore) updateEntity(ctx context.Context, table string, row entityRow) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET status = $1, property_type = $2, city = $3, data = $4, updated_at = $5 WHERE id = $6`,
		row.Status, row.Type, row.City, row.Data, row.UpdatedAt, row.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", table, row.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", table, row.ID)
	}
	return nil
}

// archiveEntity flips the status column and the document's status in one statement.
func (s *PostgresStore) archiveEntity(ctx context.Context, table, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET status = $1, data = jsonb_set(data, '{status}', to_jsonb($1::text)), updated_at = $2 WHERE id = $3`,
		string(model.StatusArchived), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: archive %s %s", table, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", table, id)
	}
	return nil
}

func (s *PostgresStore) getEntity(ctx context.Context, table, id string) (entityRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, property_type, city, data, created_at, updated_at FROM `+table+` WHERE id = $1`,
		id,
	)
	var e entityRow
	err := row.Scan(&e.ID, &e.Status, &e.Type, &e.City, &e.Data, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entityRow{}, eris.Wrapf(ErrNotFound, "postgres: get %s %s", table, id)
	}
	if err != nil {
		return entityRow{}, eris.Wrapf(err, "postgres: get %s %s", table, id)
	}
	return e, nil
}

func (s *PostgresStore) listEntities(ctx context.Context, table string, filter EntityFilter) ([]entityRow, error) {
	query := `SELECT id, status, property_type, city, data, created_at, updated_at FROM ` + table + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND property_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY created_at ASC, id ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", table)
	}
	defer rows.Close()

	var out []entityRow
	for rows.Next() {
		var e entityRow
		if err := rows.Scan(&e.ID, &e.Status, &e.Type, &e.City, &e.Data, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		out = append(out, e)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: list %s iterate", table)
}
