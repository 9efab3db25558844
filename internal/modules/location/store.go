// README: Location store backed by PostgreSQL.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coload/internal/maps"
	"coload/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const locationColumns = `id, address, city, postal_code, lat, lng, place_id, is_geocoded, last_geocoding_update`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	var lat, lng *float64
	var placeID *string
	err := row.Scan(&l.ID, &l.Address, &l.City, &l.PostalCode, &lat, &lng, &placeID, &l.IsGeocoded, &l.LastGeocodedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		l.Point = types.Point{Lat: *lat, Lng: *lng}
	}
	if placeID != nil {
		l.PlaceID = *placeID
	}
	return &l, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Location, error) {
	l, err := scanLocation(s.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// ListPending returns locations never geocoded successfully whose last attempt
// is older than retryAfter.
func (s *Store) ListPending(ctx context.Context, retryAfter time.Duration, limit int) ([]*Location, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE NOT is_geocoded
		  AND (last_geocoding_update IS NULL OR last_geocoding_update < $1)
		ORDER BY id
		LIMIT $2`,
		time.Now().Add(-retryAfter), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveGeocode stores provider coordinates. A user-entered postal code is never overwritten.
func (s *Store) SaveGeocode(ctx context.Context, id types.ID, g maps.GeocodeResult, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE locations
		SET lat = $2,
		    lng = $3,
		    place_id = NULLIF($4, ''),
		    postal_code = CASE WHEN postal_code = '' THEN $5 ELSE postal_code END,
		    is_geocoded = TRUE,
		    last_geocoding_update = $6
		WHERE id = $1`,
		string(id), g.Point.Lat, g.Point.Lng, g.PlaceID, g.PostalCode, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAttempt records a failed attempt so the poller backs off.
func (s *Store) MarkAttempt(ctx context.Context, id types.ID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE locations SET last_geocoding_update = $2 WHERE id = $1`, string(id), at)
	return err
}
