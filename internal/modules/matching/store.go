// README: Match store backed by PostgreSQL with optimistic locking on status_version.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coload/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const matchSelect = `
	SELECT m.id, m.outer_shipment_id, m.inner_shipment_id, so.company_id, si.company_id,
	       m.status, m.status_version, m.outer_confirmed, m.inner_confirmed,
	       m.start_time, m.estimated_inner_start_time, m.estimated_inner_arrival_time,
	       m.estimated_outer_arrival_time, m.created_at
	FROM matches m
	JOIN shipments so ON so.id = m.outer_shipment_id
	JOIN shipments si ON si.id = m.inner_shipment_id`

func scanMatch(row pgx.Row) (*Match, error) {
	var m Match
	err := row.Scan(
		&m.ID, &m.OuterShipmentID, &m.InnerShipmentID, &m.OuterCompanyID, &m.InnerCompanyID,
		&m.Status, &m.StatusVersion, &m.OuterConfirmed, &m.InnerConfirmed,
		&m.Schedule.OuterStart, &m.Schedule.InnerStart, &m.Schedule.InnerArrival,
		&m.Schedule.OuterArrival, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PGStore) CreateProposed(ctx context.Context, matches []*Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, m := range matches {
		tag, err := tx.Exec(ctx, `
			INSERT INTO matches (
				id, outer_shipment_id, inner_shipment_id, status, status_version,
				outer_confirmed, inner_confirmed,
				start_time, estimated_inner_start_time, estimated_inner_arrival_time,
				estimated_outer_arrival_time, created_at
			)
			SELECT $1, $2, $3, 'pending', 0, FALSE, FALSE, $4, $5, $6, $7, $8
			WHERE NOT EXISTS (
				SELECT 1 FROM matches x
				WHERE x.status <> 'rejected'
				  AND (x.outer_shipment_id IN ($2, $3) OR x.inner_shipment_id IN ($2, $3))
			)
			ON CONFLICT DO NOTHING`,
			string(m.ID), string(m.OuterShipmentID), string(m.InnerShipmentID),
			m.Schedule.OuterStart, m.Schedule.InnerStart, m.Schedule.InnerArrival,
			m.Schedule.OuterArrival, m.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow(ctx, matchSelect+` WHERE m.id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (s *PGStore) List(ctx context.Context, companyID types.ID) ([]*Match, error) {
	rows, err := s.db.Query(ctx, matchSelect+`
		WHERE m.status <> 'rejected'
		  AND ($1::text = '' OR so.company_id = $1 OR si.company_id = $1)
		ORDER BY m.created_at DESC, m.id`, string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) Confirm(ctx context.Context, id types.ID, side Side, version int) (bool, error) {
	outer, inner := side == SideOuter, side == SideInner
	tag, err := s.db.Exec(ctx, `
		UPDATE matches
		SET outer_confirmed = outer_confirmed OR $2,
		    inner_confirmed = inner_confirmed OR $3,
		    status = CASE WHEN (outer_confirmed OR $2) AND (inner_confirmed OR $3)
		                  THEN 'confirmed' ELSE status END,
		    status_version = status_version + 1
		WHERE id = $1 AND status = 'pending' AND status_version = $4`,
		string(id), outer, inner, version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Reject(ctx context.Context, id types.ID, version int, at time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var outer, inner string
	err = tx.QueryRow(ctx, `
		DELETE FROM matches
		WHERE id = $1 AND status = 'pending' AND status_version = $2
		RETURNING outer_shipment_id, inner_shipment_id`,
		string(id), version,
	).Scan(&outer, &inner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO rejected_matches (outer_shipment_id, inner_shipment_id, rejected_at)
		VALUES ($1, $2, $3)`, outer, inner, at); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	var actor *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actor = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO match_events (match_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.MatchID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actor, e.CreatedAt,
	)
	return err
}

func (s *PGStore) RejectedPairs(ctx context.Context) ([]RejectedPair, error) {
	rows, err := s.db.Query(ctx, `
		SELECT outer_shipment_id, inner_shipment_id, rejected_at
		FROM rejected_matches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RejectedPair
	for rows.Next() {
		var p RejectedPair
		if err := rows.Scan(&p.OuterShipmentID, &p.InnerShipmentID, &p.RejectedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) ClearRejection(ctx context.Context, a, b types.ID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM rejected_matches
		WHERE (outer_shipment_id = $1 AND inner_shipment_id = $2)
		   OR (outer_shipment_id = $2 AND inner_shipment_id = $1)`,
		string(a), string(b),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PruneRejections drops rejections whose shipments are gone or already in a
// confirmed match. Pending matches may still be rejected and return a
// shipment to the pool, so they keep their rejections.
func (s *PGStore) PruneRejections(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM rejected_matches r
		WHERE NOT EXISTS (SELECT 1 FROM shipments s WHERE s.id = r.outer_shipment_id)
		   OR NOT EXISTS (SELECT 1 FROM shipments s WHERE s.id = r.inner_shipment_id)
		   OR EXISTS (
				SELECT 1 FROM matches m
				WHERE m.status = 'confirmed'
				  AND (m.outer_shipment_id IN (r.outer_shipment_id, r.inner_shipment_id)
				    OR m.inner_shipment_id IN (r.outer_shipment_id, r.inner_shipment_id))
		   )`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ArchiveRejected moves any match row left with status rejected into
// rejected_matches.
func (s *PGStore) ArchiveRejected(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		WITH moved AS (
			DELETE FROM matches WHERE status = 'rejected'
			RETURNING outer_shipment_id, inner_shipment_id
		)
		INSERT INTO rejected_matches (outer_shipment_id, inner_shipment_id, rejected_at)
		SELECT outer_shipment_id, inner_shipment_id, NOW() FROM moved`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
