// README: Provider call counters around the distance matrix and geocoding services.
package maps

import (
	"context"
	"errors"

	"coload/internal/metrics"
)

type InstrumentedMatrix struct {
	next    MatrixSource
	metrics *metrics.Metrics
}

func NewInstrumentedMatrix(next MatrixSource, m *metrics.Metrics) *InstrumentedMatrix {
	return &InstrumentedMatrix{next: next, metrics: m}
}

func (i *InstrumentedMatrix) Matrix(ctx context.Context, origins, destinations []string) ([][]Element, error) {
	out, err := i.next.Matrix(ctx, origins, destinations)
	i.metrics.ProviderCalls.WithLabelValues("distance_matrix", callResult(err)).Inc()
	return out, err
}

type geocoder interface {
	Geocode(ctx context.Context, address, city string) (GeocodeResult, error)
}

type InstrumentedGeocoder struct {
	next    geocoder
	metrics *metrics.Metrics
}

func NewInstrumentedGeocoder(next geocoder, m *metrics.Metrics) *InstrumentedGeocoder {
	return &InstrumentedGeocoder{next: next, metrics: m}
}

func (i *InstrumentedGeocoder) Geocode(ctx context.Context, address, city string) (GeocodeResult, error) {
	res, err := i.next.Geocode(ctx, address, city)
	i.metrics.ProviderCalls.WithLabelValues("geocode", callResult(err)).Inc()
	return res, err
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}
