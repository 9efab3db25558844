// README: Shared Google Maps client construction.
package maps

import (
	"fmt"

	"googlemaps.github.io/maps"
)

// NewClient builds one client shared by the distance and geocoding services so
// they draw from the same rate limit.
func NewClient(apiKey string, qps int, opts ...maps.ClientOption) (*maps.Client, error) {
	all := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if qps > 0 {
		all = append(all, maps.WithRateLimit(qps))
	}
	all = append(all, opts...)
	client, err := maps.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}
