// README: Location model shared by shipments and the geocoding worker.
package location

import (
	"errors"
	"time"

	"coload/internal/types"
)

var ErrNotFound = errors.New("location not found")

type Location struct {
	ID         types.ID
	Address    string
	City       string
	PostalCode string
	Point      types.Point
	PlaceID    string
	IsGeocoded bool
	// LastGeocodedAt is set on every attempt, successful or not.
	LastGeocodedAt *time.Time
}

// Query is the free-form address string sent to map providers.
func (l Location) Query() string {
	if l.PostalCode == "" {
		return l.Address + ", " + l.City
	}
	return l.Address + ", " + l.PostalCode + " " + l.City
}
