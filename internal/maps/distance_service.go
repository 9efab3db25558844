// README: Distance Matrix adapter returning driving durations between address lists.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

// Provider limits for a single Distance Matrix request.
const (
	MaxDimension = 25
	MaxElements  = 100
)

var (
	// ErrStatus is returned when the provider answers with a non-OK status for the
	// request or for any element.
	ErrStatus = errors.New("maps: non-OK status")
	// ErrTooLarge is returned when a request exceeds provider limits.
	ErrTooLarge = errors.New("maps: request exceeds provider limits")
)

// Element is one origin/destination cell.
type Element struct {
	DistanceMeters  int
	DurationSeconds int
}

// DistanceService handles Distance Matrix calls.
type DistanceService struct {
	client   *maps.Client
	language string
	retry    RetryPolicy
}

func NewDistanceService(client *maps.Client, language string) *DistanceService {
	return &DistanceService{client: client, language: language, retry: DefaultRetry}
}

func (s *DistanceService) WithRetry(p RetryPolicy) *DistanceService {
	s.retry = p
	return s
}

// Matrix returns rows indexed like origins and columns indexed like destinations.
func (s *DistanceService) Matrix(ctx context.Context, origins, destinations []string) ([][]Element, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return nil, fmt.Errorf("distance matrix: empty origins or destinations")
	}
	if len(origins) > MaxDimension || len(destinations) > MaxDimension || len(origins)*len(destinations) > MaxElements {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, len(origins), len(destinations))
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      origins,
		Destinations: destinations,
		Mode:         maps.TravelModeDriving,
		Language:     s.language,
	}

	var resp *maps.DistanceMatrixResponse
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		r, err := s.client.DistanceMatrix(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, classifyStatus(err)
	}

	if len(resp.Rows) != len(origins) {
		return nil, fmt.Errorf("%w: got %d rows for %d origins", ErrStatus, len(resp.Rows), len(origins))
	}
	out := make([][]Element, len(origins))
	for i, row := range resp.Rows {
		if len(row.Elements) != len(destinations) {
			return nil, fmt.Errorf("%w: row %d has %d elements for %d destinations", ErrStatus, i, len(row.Elements), len(destinations))
		}
		out[i] = make([]Element, len(destinations))
		for j, el := range row.Elements {
			if el == nil || el.Status != "OK" {
				status := "MISSING"
				if el != nil {
					status = el.Status
				}
				return nil, fmt.Errorf("%w: element %q -> %q: %s", ErrStatus, origins[i], destinations[j], status)
			}
			out[i][j] = Element{
				DistanceMeters:  el.Distance.Meters,
				DurationSeconds: int(el.Duration.Round(time.Second) / time.Second),
			}
		}
	}
	return out, nil
}

func classifyStatus(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "MAX_ELEMENTS_EXCEEDED"), strings.Contains(msg, "MAX_DIMENSIONS_EXCEEDED"):
		return fmt.Errorf("%w: %v", ErrTooLarge, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStatus, err)
}
