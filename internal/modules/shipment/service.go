// README: Shipment service filters the candidate pool for a matching run.
package shipment

import (
	"context"

	"coload/internal/logger"
	"coload/internal/metrics"
	"coload/internal/types"
)

type Repository interface {
	ListEligible(ctx context.Context) ([]*Shipment, error)
	Get(ctx context.Context, id types.ID) (*Shipment, error)
}

type Service struct {
	store   Repository
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewService(store Repository, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, log: log.With("component", "shipments"), metrics: m}
}

// Eligible returns unmatched shipments with loads resolved. Malformed ones are
// logged, counted and left out.
func (s *Service) Eligible(ctx context.Context) ([]*Shipment, int, error) {
	all, err := s.store.ListEligible(ctx)
	if err != nil {
		return nil, 0, err
	}
	valid := make([]*Shipment, 0, len(all))
	malformed := 0
	for _, sh := range all {
		if err := sh.Validate(); err != nil {
			malformed++
			s.log.Warn("skipping shipment", "shipment_id", sh.ID, "error", err)
			continue
		}
		valid = append(valid, sh)
	}
	if malformed > 0 {
		s.metrics.MalformedSkipped.Add(float64(malformed))
	}
	ResolveLoads(valid)
	return valid, malformed, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Shipment, error) {
	return s.store.Get(ctx, id)
}
