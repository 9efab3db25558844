// README: Geocoding worker: resolves shipment addresses to coordinates in the background.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coload/internal/logger"
	"coload/internal/maps"
	"coload/internal/metrics"
	"coload/internal/types"
)

// driftWarnKm flags re-geocoded locations that moved suspiciously far.
const driftWarnKm = 5.0

type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (maps.GeocodeResult, error)
}

type Repository interface {
	Get(ctx context.Context, id types.ID) (*Location, error)
	ListPending(ctx context.Context, retryAfter time.Duration, limit int) ([]*Location, error)
	SaveGeocode(ctx context.Context, id types.ID, g maps.GeocodeResult, at time.Time) error
	MarkAttempt(ctx context.Context, id types.ID, at time.Time) error
}

type Service struct {
	store      Repository
	geocoder   Geocoder
	log        logger.Logger
	metrics    *metrics.Metrics
	retryAfter time.Duration
	now        func() time.Time
}

func NewService(store Repository, geocoder Geocoder, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:      store,
		geocoder:   geocoder,
		log:        log.With("component", "geocoder"),
		metrics:    m,
		retryAfter: time.Hour,
		now:        time.Now,
	}
}

// Geocode resolves one location and persists the result. ZERO_RESULTS is
// recorded as an attempt and returned as maps.ErrNoResults.
func (s *Service) Geocode(ctx context.Context, id types.ID) (*Location, error) {
	loc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.geocoder.Geocode(ctx, loc.Address, loc.City)
	now := s.now()
	if err != nil {
		if errors.Is(err, maps.ErrNoResults) {
			s.metrics.GeocodeTotal.WithLabelValues("no_results").Inc()
			if markErr := s.store.MarkAttempt(ctx, id, now); markErr != nil {
				s.log.Warn("geocode attempt not recorded", "location_id", id, "error", markErr)
			}
		} else {
			s.metrics.GeocodeTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("geocode location %s: %w", id, err)
	}

	if loc.PostalCode != "" && res.PostalCode != "" && !samePostalCode(loc.PostalCode, res.PostalCode) {
		s.log.Warn("postal code mismatch",
			"location_id", id,
			"entered", loc.PostalCode,
			"geocoded", res.PostalCode,
			"formatted_address", res.FormattedAddress,
		)
	}
	if loc.IsGeocoded {
		if d := haversineKm(loc.Point.Lat, loc.Point.Lng, res.Point.Lat, res.Point.Lng); d > driftWarnKm {
			s.log.Warn("re-geocoded location moved", "location_id", id, "distance_km", d)
		}
	}

	if err := s.store.SaveGeocode(ctx, id, res, now); err != nil {
		return nil, err
	}
	s.metrics.GeocodeTotal.WithLabelValues("ok").Inc()

	loc.Point = res.Point
	loc.PlaceID = res.PlaceID
	if loc.PostalCode == "" {
		loc.PostalCode = res.PostalCode
	}
	loc.IsGeocoded = true
	loc.LastGeocodedAt = &now
	return loc, nil
}

// GeocodePending processes up to limit pending locations and returns how many succeeded.
func (s *Service) GeocodePending(ctx context.Context, limit int) (int, error) {
	pending, err := s.store.ListPending(ctx, s.retryAfter, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, loc := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Geocode(ctx, loc.ID); err != nil {
			s.log.Warn("geocode failed", "location_id", loc.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// RunGeocoder polls for un-geocoded locations until ctx is cancelled.
func (s *Service) RunGeocoder(ctx context.Context, tick time.Duration, batch int) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.GeocodePending(ctx, batch)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("geocode batch failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("geocoded locations", "count", n)
			}
		}
	}
}
