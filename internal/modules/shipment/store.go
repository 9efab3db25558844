// README: Shipment store backed by PostgreSQL (read side used by matching).
package shipment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coload/internal/modules/location"
	"coload/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const shipmentSelect = `
	SELECT s.id, s.company_id, s.created_at,
	       s.earliest_start, s.latest_start, s.earliest_arrival, s.latest_arrival,
	       o.id, o.address, o.city, o.postal_code, o.lat, o.lng, o.place_id, o.is_geocoded,
	       d.id, d.address, d.city, d.postal_code, d.lat, d.lng, d.place_id, d.is_geocoded,
	       t.id, t.weight_capacity, t.volume_capacity,
	       COALESCE(c.weight, 0), COALESCE(c.volume, 0)
	FROM shipments s
	LEFT JOIN locations o ON o.id = s.origin_id
	LEFT JOIN locations d ON d.id = s.destination_id
	LEFT JOIN trucks t ON t.id = s.truck_id
	LEFT JOIN (
		SELECT shipment_id, SUM(weight) AS weight, SUM(volume) AS volume
		FROM cargo GROUP BY shipment_id
	) c ON c.shipment_id = s.id`

// nullLocation mirrors a LEFT JOINed locations row.
type nullLocation struct {
	ID         *string
	Address    *string
	City       *string
	PostalCode *string
	Lat, Lng   *float64
	PlaceID    *string
	IsGeocoded *bool
}

func (n *nullLocation) targets() []any {
	return []any{&n.ID, &n.Address, &n.City, &n.PostalCode, &n.Lat, &n.Lng, &n.PlaceID, &n.IsGeocoded}
}

func (n nullLocation) toLocation() location.Location {
	var l location.Location
	if n.ID != nil {
		l.ID = types.ID(*n.ID)
	}
	l.Address = deref(n.Address)
	l.City = deref(n.City)
	l.PostalCode = deref(n.PostalCode)
	l.PlaceID = deref(n.PlaceID)
	if n.Lat != nil && n.Lng != nil {
		l.Point = types.Point{Lat: *n.Lat, Lng: *n.Lng}
	}
	if n.IsGeocoded != nil {
		l.IsGeocoded = *n.IsGeocoded
	}
	return l
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func scanShipment(row pgx.Row) (*Shipment, error) {
	var s Shipment
	var es, ls, ea, la *time.Time
	var origin, dest nullLocation
	var truckID *string
	var weightCap, volumeCap *int
	var weight, volume int64

	targets := []any{&s.ID, &s.CompanyID, &s.CreatedAt, &es, &ls, &ea, &la}
	targets = append(targets, origin.targets()...)
	targets = append(targets, dest.targets()...)
	targets = append(targets, &truckID, &weightCap, &volumeCap, &weight, &volume)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	s.Window = Window{
		EarliestStart:   timeOrZero(es),
		LatestStart:     timeOrZero(ls),
		EarliestArrival: timeOrZero(ea),
		LatestArrival:   timeOrZero(la),
	}
	s.Origin = origin.toLocation()
	s.Destination = dest.toLocation()
	if truckID != nil {
		s.Truck = &Truck{ID: types.ID(*truckID)}
		if weightCap != nil {
			s.Truck.WeightCapacity = *weightCap
		}
		if volumeCap != nil {
			s.Truck.VolumeCapacity = *volumeCap
		}
	}
	s.Load = Load{Weight: int(weight), Volume: int(volume)}
	s.LoadResolved = true
	return &s, nil
}

// ListEligible returns shipments not part of any pending or confirmed match,
// oldest first.
func (s *Store) ListEligible(ctx context.Context) ([]*Shipment, error) {
	rows, err := s.db.Query(ctx, shipmentSelect+`
		WHERE NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.status <> 'rejected'
			  AND (m.outer_shipment_id = s.id OR m.inner_shipment_id = s.id)
		)
		ORDER BY s.created_at, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Get returns one shipment including its cargo items.
func (s *Store) Get(ctx context.Context, id types.ID) (*Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, shipmentSelect+` WHERE s.id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, weight, volume, category, description
		FROM cargo WHERE shipment_id = $1 ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Cargo
		if err := rows.Scan(&c.ID, &c.Weight, &c.Volume, &c.Category, &c.Description); err != nil {
			return nil, err
		}
		sh.Cargo = append(sh.Cargo, c)
	}
	return sh, rows.Err()
}
