package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/model"
)

const (
	tableListings = "listings"
	tableRequests = "requests"
	tableMatches  = "matches"
	defaultLimit  = 100
)

// matchColumns is the insert order for a fresh match row.
var matchColumns = []string{"id", "listing_id", "request_id", "side", "score", "rank", "reasons", "created_at"}

// entityRow is the column projection shared by the listings and requests tables.
// Data holds the full JSON document; the other columns exist for filtering.
type entityRow struct {
	ID        string
	Status    string
	Type      string
	City      string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// stampNew assigns an id, default status and timestamps to a new entity.
func stampNew(id *string, status *model.Status, createdAt, updatedAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if *status == "" {
		*status = model.StatusActive
	}
	now := time.Now().UTC()
	*createdAt = now
	*updatedAt = now
}

func listingRow(l *model.Listing) (entityRow, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return entityRow{}, eris.Wrap(err, "store: marshal listing")
	}
	return entityRow{
		ID: l.ID, Status: string(l.Status), Type: string(l.Type), City: l.City,
		Data: data, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}, nil
}

func requestRow(r *model.Request) (entityRow, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return entityRow{}, eris.Wrap(err, "store: marshal request")
	}
	return entityRow{
		ID: r.ID, Status: string(r.Status), Type: string(r.Type), City: r.City,
		Data: data, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

func decodeListing(data []byte) (*model.Listing, error) {
	var l model.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal listing")
	}
	return &l, nil
}

func decodeRequest(data []byte) (*model.Request, error) {
	var r model.Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal request")
	}
	return &r, nil
}

// overlayListing copies the indexed columns over the decoded document so the
// columns stay authoritative for id, status and timestamps.
func overlayListing(l *model.Listing, row entityRow) {
	l.ID = row.ID
	l.Status = model.Status(row.Status)
	l.CreatedAt = row.CreatedAt
	l.UpdatedAt = row.UpdatedAt
}

func overlayRequest(r *model.Request, row entityRow) {
	r.ID = row.ID
	r.Status = model.Status(row.Status)
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt
}

func decodeReasons(data []byte, m *model.Match) error {
	if err := json.Unmarshal(data, &m.Reasons); err != nil {
		return eris.Wrapf(err, "store: unmarshal reasons for match %s", m.ID)
	}
	return nil
}

// prepareMatches fills ids and timestamps and encodes reasons for insertion.
func prepareMatches(side model.Side, matches []model.Match, now time.Time) ([][]byte, error) {
	reasons := make([][]byte, len(matches))
	for i := range matches {
		m := &matches[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.Side = side
		m.CreatedAt = now
		m.SupersededAt = nil
		b, err := json.Marshal(m.Reasons)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal reasons for %s/%s", m.ListingID, m.RequestID)
		}
		reasons[i] = b
	}
	return reasons, nil
}

// anchorColumn is the matches column that identifies the entity a run was anchored on.
// counterpart returns the side whose runs can reference an entity of side,
// and the column holding that side's anchor id.
func counterpart(side model.Side) (model.Side, string, error) {
	switch side {
	case model.SideListing:
		return model.SideRequest, "request_id", nil
	case model.SideRequest:
		return model.SideListing, "listing_id", nil
	}
	return "", "", eris.Errorf("store: unknown match side %q", side)
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// collectIDs drains single-column id rows, dropping duplicates.
func collectIDs(rows idRows) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

func anchorColumn(side model.Side) (string, error) {
	switch side {
	case model.SideListing:
		return "listing_id", nil
	case model.SideRequest:
		return "request_id", nil
	}
	return "", eris.Errorf("store: unknown match side %q", side)
}
