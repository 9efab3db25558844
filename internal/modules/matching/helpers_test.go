package matching

import (
	"time"

	"coload/internal/modules/location"
	"coload/internal/modules/shipment"
	"coload/internal/types"
)

var day = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04:05", hhmm)
	if err != nil {
		t, err = time.Parse("15:04", hhmm)
		if err != nil {
			panic(err)
		}
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
}

func window(es, ls, ea, la string) shipment.Window {
	return shipment.Window{EarliestStart: at(es), LatestStart: at(ls), EarliestArrival: at(ea), LatestArrival: at(la)}
}

type shipmentOpt func(*shipment.Shipment)

func withTruck(weight, volume int) shipmentOpt {
	return func(s *shipment.Shipment) {
		s.Truck = &shipment.Truck{ID: types.ID("truck-" + string(s.ID)), WeightCapacity: weight, VolumeCapacity: volume}
	}
}

func withLoad(weight, volume int) shipmentOpt {
	return func(s *shipment.Shipment) {
		s.Load = shipment.Load{Weight: weight, Volume: volume}
		s.LoadResolved = true
	}
}

func withCompany(id string) shipmentOpt {
	return func(s *shipment.Shipment) { s.CompanyID = types.ID(id) }
}

func withWindow(w shipment.Window) shipmentOpt {
	return func(s *shipment.Shipment) { s.Window = w }
}

func withCities(origin, dest string) shipmentOpt {
	return func(s *shipment.Shipment) {
		s.Origin.City = origin
		s.Destination.City = dest
	}
}

func newShipment(id string, opts ...shipmentOpt) *shipment.Shipment {
	s := &shipment.Shipment{
		ID:           types.ID(id),
		CompanyID:    types.ID("company-" + id),
		Origin:       location.Location{ID: types.ID(id + "-o"), Address: id + " origin", City: "Gdansk"},
		Destination:  location.Location{ID: types.ID(id + "-d"), Address: id + " destination", City: "Warsaw"},
		Window:       window("08:00", "12:00", "09:00", "18:00"),
		LoadResolved: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// fixtureShipments is the three-shipment scenario: only A has a truck.
func fixtureShipments() []*shipment.Shipment {
	a := newShipment("A", withCities("A", "D"), withTruck(50, 20), withLoad(20, 5),
		withWindow(window("08:00", "08:40", "10:00", "10:30")))
	b := newShipment("B", withCities("B", "C"), withLoad(10, 5),
		withWindow(window("08:00", "08:30", "10:00", "10:30")))
	x := newShipment("X", withCities("X", "Y"), withLoad(10, 5),
		withWindow(window("08:00", "08:45", "10:00", "10:15")))
	return []*shipment.Shipment{a, b, x}
}

func fixtureTimes() TravelTimes {
	return TravelTimes{
		OriginOrigin: [][]int{{0, 1200, 2400}, {1200, 0, 2400}, {2400, 2400, 0}},
		OriginDest:   []int{3600, 1800, 5400},
		DestDest:     [][]int{{0, 600, 600}, {600, 0, 400}, {600, 400, 0}},
	}
}

// uniformTimes gives every leg the same duration.
func uniformTimes(n, d int) TravelTimes {
	tt := TravelTimes{OriginOrigin: make([][]int, n), OriginDest: make([]int, n), DestDest: make([][]int, n)}
	for i := 0; i < n; i++ {
		tt.OriginOrigin[i] = make([]int, n)
		tt.DestDest[i] = make([]int, n)
		tt.OriginDest[i] = d
		for j := 0; j < n; j++ {
			if i != j {
				tt.OriginOrigin[i][j] = d
				tt.DestDest[i][j] = d
			}
		}
	}
	return tt
}
