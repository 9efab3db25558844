package matching

import (
	"testing"

	"coload/internal/modules/shipment"
	"coload/internal/types"
)

func TestSolveBucketFixture(t *testing.T) {
	got := SolveBucket(fixtureShipments(), fixtureTimes(), RejectedSet{})
	if len(got) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(got))
	}
	m := got[0]
	if m.Outer.ID != "A" || m.Inner.ID != "X" {
		t.Fatalf("expected A drives X, got %s drives %s", m.Outer.ID, m.Inner.ID)
	}
	want := Schedule{OuterStart: at("08:00"), InnerStart: at("08:40"), InnerArrival: at("10:10"), OuterArrival: at("10:20")}
	if m.Schedule != want {
		t.Fatalf("schedule = %+v, want %+v", m.Schedule, want)
	}
}

func TestSolveBucketFixtureRejectedInEitherOrder(t *testing.T) {
	for _, pair := range [][2]string{{"A", "X"}, {"X", "A"}} {
		rejected := RejectedSet{}
		rejected.Add(types.ID(pair[0]), types.ID(pair[1]))
		if got := SolveBucket(fixtureShipments(), fixtureTimes(), rejected); len(got) != 0 {
			t.Fatalf("rejected pair %v proposed again: %+v", pair, got)
		}
	}
}

func TestSolveBucketSameCompanyNeverPaired(t *testing.T) {
	ss := []*shipment.Shipment{
		newShipment("1", withCompany("acme"), withTruck(100, 100)),
		newShipment("2", withCompany("acme"), withTruck(100, 100)),
	}
	if got := SolveBucket(ss, uniformTimes(2, 600), RejectedSet{}); len(got) != 0 {
		t.Fatalf("intra-company pair proposed: %+v", got)
	}
}

func TestSolveBucketNoTrucksNoPairs(t *testing.T) {
	ss := []*shipment.Shipment{newShipment("1"), newShipment("2"), newShipment("3")}
	if got := SolveBucket(ss, uniformTimes(3, 600), RejectedSet{}); len(got) != 0 {
		t.Fatalf("pairs without trucks: %+v", got)
	}
}

func TestSolveBucketSingletonAndEmpty(t *testing.T) {
	if got := SolveBucket(nil, TravelTimes{}, RejectedSet{}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	one := []*shipment.Shipment{newShipment("1", withTruck(10, 10))}
	if got := SolveBucket(one, uniformTimes(1, 0), RejectedSet{}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSolveBucketEachShipmentAtMostOnce(t *testing.T) {
	var ss []*shipment.Shipment
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ss = append(ss, newShipment(id, withTruck(100, 100), withLoad(10, 10)))
	}
	got := SolveBucket(ss, uniformTimes(len(ss), 600), RejectedSet{})
	if len(got) != 3 {
		t.Fatalf("expected 3 pairs among 7 shipments, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		for _, id := range []string{string(p.Outer.ID), string(p.Inner.ID)} {
			if seen[id] {
				t.Fatalf("shipment %s used twice", id)
			}
			seen[id] = true
		}
		if p.Outer.ID == p.Inner.ID {
			t.Fatalf("self pair %s", p.Outer.ID)
		}
	}
}

func TestSolveBucketPicksBetterOrientation(t *testing.T) {
	// both can drive; 2 -> 1 has a much shorter detour
	ss := []*shipment.Shipment{
		newShipment("1", withTruck(100, 100)),
		newShipment("2", withTruck(100, 100)),
	}
	tt := TravelTimes{
		OriginOrigin: [][]int{{0, 3000}, {100, 0}},
		OriginDest:   []int{600, 600},
		DestDest:     [][]int{{0, 100}, {3000, 0}},
	}
	got := SolveBucket(ss, tt, RejectedSet{})
	if len(got) != 1 {
		t.Fatalf("expected one pair, got %d", len(got))
	}
	if got[0].Outer.ID != "2" || got[0].Inner.ID != "1" {
		t.Fatalf("expected 2 drives 1, got %s drives %s", got[0].Outer.ID, got[0].Inner.ID)
	}
	// max_time = 3000 + 600 + 3000; 2 -> 1 costs 100 + 600 + 100
	if got[0].Weight != 6600-800 {
		t.Fatalf("unexpected weight %d", got[0].Weight)
	}
}

func TestSolveBucketMaximisesWeightThenPairs(t *testing.T) {
	// 0-1 is a great pair; every other feasible pair has weight 0.
	ss := []*shipment.Shipment{
		newShipment("0", withTruck(100, 100)),
		newShipment("1"),
		newShipment("2"),
		newShipment("3", withTruck(100, 100)),
	}
	tt := uniformTimes(4, 3000)
	tt.OriginOrigin[0][1], tt.DestDest[1][0] = 0, 0
	got := SolveBucket(ss, tt, RejectedSet{})
	total := 0
	for _, p := range got {
		total += p.Weight
	}
	// 0->1 (weight 6000) plus the zero-weight 3->2 beats 0->2 with 3->1
	if len(got) != 2 || total != 6000 {
		t.Fatalf("expected 2 pairs with weight 6000, got %d pairs weight %d: %+v", len(got), total, got)
	}
}

func TestFindMatchesSkipsSingletonsAndMissingTimes(t *testing.T) {
	bucketA := Bucket{Key: BucketKey{"G", "W"}, Shipments: []*shipment.Shipment{
		newShipment("1", withTruck(100, 100)), newShipment("2"),
	}}
	bucketB := Bucket{Key: BucketKey{"K", "W"}, Shipments: []*shipment.Shipment{newShipment("3", withTruck(100, 100))}}
	bucketC := Bucket{Key: BucketKey{"P", "W"}, Shipments: []*shipment.Shipment{
		newShipment("4", withTruck(100, 100)), newShipment("5"),
	}}
	times := map[BucketKey]TravelTimes{bucketA.Key: uniformTimes(2, 600)}

	got := FindMatches([]Bucket{bucketA, bucketB, bucketC}, times, RejectedSet{})
	if len(got) != 1 || got[0].Outer.ID != "1" || got[0].Inner.ID != "2" {
		t.Fatalf("unexpected matches %+v", got)
	}
}

func TestRejectedSetUnordered(t *testing.T) {
	set := NewRejectedSet([]RejectedPair{{OuterShipmentID: "b", InnerShipmentID: "a"}})
	if !set.Contains("a", "b") || !set.Contains("b", "a") {
		t.Fatal("rejected set must be symmetric")
	}
	if set.Contains("a", "c") {
		t.Fatal("unexpected pair")
	}
}
