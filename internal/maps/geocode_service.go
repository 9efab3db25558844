// README: Geocoding adapter resolving an address (filtered by city) to coordinates.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"coload/internal/types"
)

var ErrNoResults = errors.New("maps: no geocoding results")

type GeocodeResult struct {
	Point            types.Point
	FormattedAddress string
	PostalCode       string
	PlaceID          string
}

type GeocodeService struct {
	client   *maps.Client
	region   string
	language string
	retry    RetryPolicy
}

func NewGeocodeService(client *maps.Client, region, language string) *GeocodeService {
	return &GeocodeService{client: client, region: region, language: language, retry: DefaultRetry}
}

func (s *GeocodeService) WithRetry(p RetryPolicy) *GeocodeService {
	s.retry = p
	return s
}

// Geocode returns the first result for address. city, when set, is sent as a
// locality component filter.
func (s *GeocodeService) Geocode(ctx context.Context, address, city string) (GeocodeResult, error) {
	req := &maps.GeocodingRequest{
		Address:  address,
		Region:   s.region,
		Language: s.language,
	}
	if city != "" {
		req.Components = map[maps.Component]string{maps.ComponentLocality: city}
	}

	var results []maps.GeocodingResult
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		r, err := s.client.Geocode(ctx, req)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return GeocodeResult{}, ErrNoResults
		}
		return GeocodeResult{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return GeocodeResult{}, ErrNoResults
	}

	best := results[0]
	out := GeocodeResult{
		Point:            types.Point{Lat: best.Geometry.Location.Lat, Lng: best.Geometry.Location.Lng},
		FormattedAddress: best.FormattedAddress,
		PlaceID:          best.PlaceID,
	}
	for _, c := range best.AddressComponents {
		for _, t := range c.Types {
			if t == "postal_code" {
				out.PostalCode = c.LongName
			}
		}
	}
	return out, nil
}
