// README: Shipment aggregate as seen by the matching engine (read-only view).
package shipment

import (
	"errors"
	"fmt"
	"time"

	"coload/internal/modules/location"
	"coload/internal/types"
)

var (
	ErrNotFound  = errors.New("shipment not found")
	ErrMalformed = errors.New("malformed shipment")
)

// Window bounds when a shipment may leave its origin and reach its destination.
type Window struct {
	EarliestStart   time.Time
	LatestStart     time.Time
	EarliestArrival time.Time
	LatestArrival   time.Time
}

func (w Window) StartWithin(t time.Time) bool {
	return !t.Before(w.EarliestStart) && !t.After(w.LatestStart)
}

func (w Window) ArrivalWithin(t time.Time) bool {
	return !t.Before(w.EarliestArrival) && !t.After(w.LatestArrival)
}

type Truck struct {
	ID             types.ID
	WeightCapacity int
	VolumeCapacity int
}

type Cargo struct {
	ID          types.ID
	Weight      int
	Volume      int
	Category    string
	Description string
}

type Load struct {
	Weight int
	Volume int
}

func (l Load) Add(o Load) Load {
	return Load{Weight: l.Weight + o.Weight, Volume: l.Volume + o.Volume}
}

type Shipment struct {
	ID          types.ID
	CompanyID   types.ID
	Origin      location.Location
	Destination location.Location
	Window      Window
	Truck       *Truck
	Cargo       []Cargo

	// Load is the aggregated cargo total. Stores fill it from SQL aggregates;
	// otherwise ResolveLoads sums Cargo.
	Load         Load
	LoadResolved bool

	CreatedAt time.Time
}

func (s *Shipment) HasTruck() bool { return s.Truck != nil }

// Validate reports data the matching engine cannot reason about.
func (s *Shipment) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformed)
	case s.CompanyID == "":
		return fmt.Errorf("%w: %s has no company", ErrMalformed, s.ID)
	case s.Origin.Address == "" || s.Origin.City == "":
		return fmt.Errorf("%w: %s has no origin", ErrMalformed, s.ID)
	case s.Destination.Address == "" || s.Destination.City == "":
		return fmt.Errorf("%w: %s has no destination", ErrMalformed, s.ID)
	}
	w := s.Window
	if w.EarliestStart.IsZero() || w.LatestStart.IsZero() || w.EarliestArrival.IsZero() || w.LatestArrival.IsZero() {
		return fmt.Errorf("%w: %s has an incomplete time window", ErrMalformed, s.ID)
	}
	if w.EarliestStart.After(w.LatestStart) {
		return fmt.Errorf("%w: %s start window is inverted", ErrMalformed, s.ID)
	}
	if w.EarliestArrival.After(w.LatestArrival) {
		return fmt.Errorf("%w: %s arrival window is inverted", ErrMalformed, s.ID)
	}
	if s.Truck != nil && (s.Truck.WeightCapacity < 0 || s.Truck.VolumeCapacity < 0) {
		return fmt.Errorf("%w: %s truck has negative capacity", ErrMalformed, s.ID)
	}
	return nil
}

// TotalLoad sums cargo items.
func (s *Shipment) TotalLoad() Load {
	var l Load
	for _, c := range s.Cargo {
		l = l.Add(Load{Weight: c.Weight, Volume: c.Volume})
	}
	return l
}

// ResolveLoads fills Load for shipments that did not come with an aggregate.
func ResolveLoads(shipments []*Shipment) {
	for _, s := range shipments {
		if s.LoadResolved {
			continue
		}
		s.Load = s.TotalLoad()
		s.LoadResolved = true
	}
}
