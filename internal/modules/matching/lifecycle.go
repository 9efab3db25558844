// README: Match lifecycle: listing, confirmation, rejection and rejection bookkeeping.
package matching

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"coload/internal/logger"
	"coload/internal/metrics"
	"coload/internal/types"
)

// Store is the persistence surface for matches and rejections.
type Store interface {
	// CreateProposed inserts pending matches, silently skipping pairs that
	// already have a non-rejected match. Returns how many were inserted.
	CreateProposed(ctx context.Context, matches []*Match) (int, error)
	Get(ctx context.Context, id types.ID) (*Match, error)
	// List returns all matches when companyID is empty, otherwise matches where
	// the company owns either shipment.
	List(ctx context.Context, companyID types.ID) ([]*Match, error)
	// Confirm sets the side's flag when status_version still equals version and
	// moves the match to confirmed once both flags are set.
	Confirm(ctx context.Context, id types.ID, side Side, version int) (bool, error)
	// Reject deletes the match (version CAS) and archives the pair atomically.
	Reject(ctx context.Context, id types.ID, version int, at time.Time) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error

	RejectedPairs(ctx context.Context) ([]RejectedPair, error)
	ClearRejection(ctx context.Context, a, b types.ID) (int64, error)
	PruneRejections(ctx context.Context) (int64, error)
	ArchiveRejected(ctx context.Context) (int64, error)
}

type Service struct {
	store   Store
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, log: log.With("component", "lifecycle"), metrics: m, now: time.Now}
}

type UpdateStatusCommand struct {
	MatchID types.ID
	Caller  Caller
	Intent  Status
	// Side is required when an admin confirms on behalf of a party.
	Side Side
}

// List returns the matches visible to the caller.
func (s *Service) List(ctx context.Context, caller Caller) ([]*Match, error) {
	if caller.Admin {
		return s.store.List(ctx, "")
	}
	if caller.CompanyID == "" {
		return nil, ErrNoCompany
	}
	return s.store.List(ctx, caller.CompanyID)
}

// Get returns one match if the caller may see it.
func (s *Service) Get(ctx context.Context, caller Caller, id types.ID) (*Match, error) {
	if !caller.Admin && caller.CompanyID == "" {
		return nil, ErrNoCompany
	}
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Admin && partySide(m, caller.CompanyID) == SideNone {
		return nil, ErrForbidden
	}
	return m, nil
}

func partySide(m *Match, company types.ID) Side {
	switch company {
	case m.OuterCompanyID:
		return SideOuter
	case m.InnerCompanyID:
		return SideInner
	}
	return SideNone
}

// resolveSide decides which flag the caller may set.
func resolveSide(m *Match, caller Caller, requested Side, intent Status) (Side, error) {
	if !caller.Admin {
		if caller.CompanyID == "" {
			return SideNone, ErrNoCompany
		}
		side := partySide(m, caller.CompanyID)
		if side == SideNone {
			return SideNone, ErrForbidden
		}
		return side, nil
	}
	if requested == SideOuter || requested == SideInner {
		return requested, nil
	}
	if requested != SideNone {
		return SideNone, fmt.Errorf("%w: unknown side %q", ErrBadRequest, requested)
	}
	if caller.CompanyID != "" {
		if side := partySide(m, caller.CompanyID); side != SideNone {
			return side, nil
		}
	}
	if intent == StatusConfirmed {
		return SideNone, fmt.Errorf("%w: admin must name the confirming side", ErrBadRequest)
	}
	return SideNone, nil
}

// UpdateStatus confirms or rejects a match for the caller. A lost
// optimistic-lock race is retried once against fresh state.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Match, error) {
	if cmd.Intent != StatusConfirmed && cmd.Intent != StatusRejected {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrBadRequest, cmd.Intent)
	}
	if !cmd.Caller.Admin && cmd.Caller.CompanyID == "" {
		return nil, ErrNoCompany
	}

	for attempt := 0; attempt < 2; attempt++ {
		m, err := s.store.Get(ctx, cmd.MatchID)
		if err != nil {
			return nil, err
		}
		side, err := resolveSide(m, cmd.Caller, cmd.Side, cmd.Intent)
		if err != nil {
			return nil, err
		}

		var ok bool
		switch cmd.Intent {
		case StatusConfirmed:
			if m.ConfirmedBy(side) {
				return m, nil
			}
			if !CanTransition(m.Status, StatusConfirmed) {
				return nil, ErrInvalidState
			}
			ok, err = s.store.Confirm(ctx, m.ID, side, m.StatusVersion)
		case StatusRejected:
			if !CanTransition(m.Status, StatusRejected) {
				return nil, ErrInvalidState
			}
			ok, err = s.store.Reject(ctx, m.ID, m.StatusVersion, s.now())
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		return s.applied(ctx, m, side, cmd)
	}
	return nil, ErrConflict
}

func (s *Service) applied(ctx context.Context, before *Match, side Side, cmd UpdateStatusCommand) (*Match, error) {
	after := *before
	if cmd.Intent == StatusRejected {
		after.Status = StatusRejected
	} else {
		fresh, err := s.store.Get(ctx, before.ID)
		if err != nil {
			return nil, err
		}
		after = *fresh
	}

	actor := types.ID(cmd.Caller.UID)
	actorType := "company"
	if cmd.Caller.Admin {
		actorType = "admin"
	}
	if after.Status != before.Status {
		s.metrics.StatusTransitions.WithLabelValues(string(after.Status)).Inc()
		// rejected matches are archived, so their event rows would dangle
		if after.Status != StatusRejected {
			if err := s.store.AppendEvent(ctx, &Event{
				MatchID:    before.ID,
				FromStatus: before.Status,
				ToStatus:   after.Status,
				ActorType:  actorType,
				ActorID:    &actor,
				CreatedAt:  s.now(),
			}); err != nil {
				s.log.Warn("match event not recorded", "match_id", before.ID, "error", err)
			}
		}
	}
	s.log.Info("match status updated",
		"match_id", before.ID,
		"intent", cmd.Intent,
		"side", side,
		"status", after.Status,
		"actor", cmd.Caller.UID,
	)
	return &after, nil
}

// ClearRejection removes the archived rejection for a pair in either order so
// the engine may propose it again.
func (s *Service) ClearRejection(ctx context.Context, caller Caller, a, b types.ID) error {
	if !caller.Admin {
		return ErrForbidden
	}
	if a == "" || b == "" || a == b {
		return fmt.Errorf("%w: two distinct shipment ids required", ErrBadRequest)
	}
	n, err := s.store.ClearRejection(ctx, a, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info("rejection cleared", "a", a, "b", b, "actor", caller.UID)
	return nil
}

// Rejected returns the current exclusion set.
func (s *Service) Rejected(ctx context.Context) (RejectedSet, error) {
	pairs, err := s.store.RejectedPairs(ctx)
	if err != nil {
		return nil, err
	}
	return NewRejectedSet(pairs), nil
}

// Housekeeping archives stray rejected rows and prunes rejections that can no
// longer matter. Failures are logged only.
func (s *Service) Housekeeping(ctx context.Context) {
	if n, err := s.store.ArchiveRejected(ctx); err != nil {
		s.log.Warn("archive rejected matches failed", "error", err)
	} else if n > 0 {
		s.log.Info("archived rejected matches", "count", n)
	}
	if n, err := s.store.PruneRejections(ctx); err != nil {
		s.log.Warn("prune rejections failed", "error", err)
	} else if n > 0 {
		s.log.Info("pruned rejections", "count", n)
	}
}

func newID() types.ID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return types.ID(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	return types.ID(hex.EncodeToString(b[:]))
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	for _, e := range []error{ErrNotFound, ErrInvalidState, ErrConflict, ErrForbidden, ErrNoCompany, ErrBadRequest} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
