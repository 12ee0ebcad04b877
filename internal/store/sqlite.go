package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/listing-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool holds a single connection so the pragmas cover every statement and
// concurrent rematch runs queue instead of failing with SQLITE_BUSY.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'active',
	property_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS requests (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'active',
	property_type TEXT NOT NULL,
	city          TEXT NOT NULL,
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	id            TEXT PRIMARY KEY,
	listing_id    TEXT NOT NULL REFERENCES listings(id),
	request_id    TEXT NOT NULL REFERENCES requests(id),
	side          TEXT NOT NULL,
	score         INTEGER NOT NULL,
	rank          INTEGER NOT NULL,
	reasons       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	superseded_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_listings_status_type ON listings(status, property_type);
CREATE INDEX IF NOT EXISTS idx_requests_status_type ON requests(status, property_type);
CREATE INDEX IF NOT EXISTS idx_matches_listing ON matches(side, listing_id, superseded_at);
CREATE INDEX IF NOT EXISTS idx_matches_request ON matches(side, request_id, superseded_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Listings ---

func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.Listing) error {
	stampNew(&l.ID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	row, err := listingRow(l)
	if err != nil {
		return err
	}
	return s.insertEntity(ctx, tableListings, row)
}

func (s *SQLiteStore) UpdateListing(ctx context.Context, l *model.Listing) error {
	l.UpdatedAt = time.Now().UTC()
	row, err := listingRow(l)
	if err != nil {
		return err
	}
	return s.updateEntity(ctx, tableListings, row)
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
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

func (s *SQLiteStore) ListListings(ctx context.Context, filter EntityFilter) ([]model.Listing, error) {
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

func (s *SQLiteStore) ArchiveListing(ctx context.Context, id string) error {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	l.Status = model.StatusArchived
	return s.UpdateListing(ctx, l)
}

// --- Requests ---

func (s *SQLiteStore) CreateRequest(ctx context.Context, r *model.Request) error {
	stampNew(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	row, err := requestRow(r)
	if err != nil {
		return err
	}
	return s.insertEntity(ctx, tableRequests, row)
}

func (s *SQLiteStore) UpdateRequest(ctx context.Context, r *model.Request) error {
	r.UpdatedAt = time.Now().UTC()
	row, err := requestRow(r)
	if err != nil {
		return err
	}
	return s.updateEntity(ctx, tableRequests, row)
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
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

func (s *SQLiteStore) ListRequests(ctx context.Context, filter EntityFilter) ([]model.Request, error) {
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

func (s *SQLiteStore) ArchiveRequest(ctx context.Context, id string) error {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	r.Status = model.StatusArchived
	return s.UpdateRequest(ctx, r)
}

// --- Matches ---

func (s *SQLiteStore) SaveMatches(ctx context.Context, side model.Side, entityID string, matches []model.Match) error {
	col, err := anchorColumn(side)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	reasons, err := prepareMatches(side, matches, now)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save matches")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE matches SET superseded_at = ? WHERE side = ? AND `+col+` = ? AND superseded_at IS NULL`,
		now, string(side), entityID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: supersede matches for %s %s", side, entityID)
	}

	for i, m := range matches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO matches (id, listing_id, request_id, side, score, rank, reasons, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ListingID, m.RequestID, string(side), m.Score, i, string(reasons[i]), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert match %s/%s", m.ListingID, m.RequestID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save matches")
}

func (s *SQLiteStore) SupersedeReferences(ctx context.Context, side model.Side, entityID string) ([]string, error) {
	col, err := anchorColumn(side)
	if err != nil {
		return nil, err
	}
	other, otherCol, err := counterpart(side)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE matches SET superseded_at = ? WHERE side = ? AND `+col+` = ? AND superseded_at IS NULL RETURNING `+otherCol,
		time.Now().UTC(), string(other), entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: supersede references to %s %s", side, entityID)
	}
	defer rows.Close()

	ids, err := collectIDs(rows)
	return ids, eris.Wrapf(err, "sqlite: supersede references to %s %s", side, entityID)
}

func (s *SQLiteStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error) {
	query := `SELECT id, listing_id, request_id, side, score, reasons, created_at, superseded_at FROM matches WHERE 1=1`
	var args []any

	if filter.Side != "" {
		query += ` AND side = ?`
		args = append(args, string(filter.Side))
	}
	if filter.EntityID != "" {
		col, err := anchorColumn(filter.Side)
		if err != nil {
			return nil, err
		}
		query += ` AND ` + col + ` = ?`
		args = append(args, filter.EntityID)
	}
	if !filter.IncludeSuperseded {
		query += ` AND superseded_at IS NULL`
	}
	query += ` ORDER BY score DESC, created_at DESC, rank ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var reasons string
		var superseded sql.NullTime
		if err := rows.Scan(&m.ID, &m.ListingID, &m.RequestID, &m.Side, &m.Score, &reasons, &m.CreatedAt, &superseded); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		if err := decodeReasons([]byte(reasons), &m); err != nil {
			return nil, err
		}
		if superseded.Valid {
			t := superseded.Time
			m.SupersededAt = &t
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

// --- shared entity helpers ---

func (s *SQLiteStore) insertEntity(ctx context.Context, table string, row entityRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, status, property_type, city, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Status, row.Type, row.City, string(row.Data), row.CreatedAt, row.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert %s %s", table, row.ID)
}

func (s *SQLiteStore) updateEntity(ctx context.Context, table string, row entityRow) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET status = ?, property_type = ?, city = ?, data = ?, updated_at = ? WHERE id = ?`,
		row.Status, row.Type, row.City, string(row.Data), row.UpdatedAt, row.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %s", table, row.ID)
	}
	return checkRowsAffected(res, table, row.ID)
}

func (s *SQLiteStore) getEntity(ctx context.Context, table, id string) (entityRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, property_type, city, data, created_at, updated_at FROM `+table+` WHERE id = ?`,
		id,
	)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entityRow{}, eris.Wrapf(ErrNotFound, "sqlite: get %s %s", table, id)
	}
	if err != nil {
		return entityRow{}, eris.Wrapf(err, "sqlite: get %s %s", table, id)
	}
	return e, nil
}

func (s *SQLiteStore) listEntities(ctx context.Context, table string, filter EntityFilter) ([]entityRow, error) {
	query := `SELECT id, status, property_type, city, data, created_at, updated_at FROM ` + table + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += ` AND property_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", table)
	}
	defer rows.Close()

	var out []entityRow
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		out = append(out, e)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: list %s iterate", table)
}

// helpers

func checkRowsAffected(res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", table, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (entityRow, error) {
	var e entityRow
	var data string
	if err := row.Scan(&e.ID, &e.Status, &e.Type, &e.City, &data, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return entityRow{}, err
	}
	e.Data = []byte(data)
	return e, nil
}
