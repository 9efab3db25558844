// README: Builds the compatibility graph per bucket and solves maximum-weight matching.
package matching

import (
	"coload/internal/graph"
	"coload/internal/modules/shipment"
	"coload/internal/types"
)

type pairKey struct{ a, b types.ID }

func newPairKey(x, y types.ID) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// RejectedSet holds unordered shipment pairs that must not be proposed.
type RejectedSet map[pairKey]struct{}

func NewRejectedSet(pairs []RejectedPair) RejectedSet {
	set := make(RejectedSet, len(pairs))
	for _, p := range pairs {
		set.Add(p.OuterShipmentID, p.InnerShipmentID)
	}
	return set
}

func (r RejectedSet) Add(a, b types.ID) { r[newPairKey(a, b)] = struct{}{} }

func (r RejectedSet) Contains(a, b types.ID) bool {
	_, ok := r[newPairKey(a, b)]
	return ok
}

// Proposal is a solved pair ready to be persisted as a pending match.
type Proposal struct {
	Outer    *shipment.Shipment
	Inner    *shipment.Shipment
	Schedule Schedule
	// Weight is the time saved versus the bucket's worst case, in seconds.
	Weight int
}

// orientation is one feasible driver -> passenger assignment.
type orientation struct {
	driver, passenger int
	weight            int
	schedule          Schedule
}

// evaluate checks driver i carrying passenger j.
func evaluate(shipments []*shipment.Shipment, tt TravelTimes, rejected RejectedSet, maxTime, i, j int) (orientation, bool) {
	d, p := shipments[i], shipments[j]
	if d.Truck == nil || d.CompanyID == p.CompanyID || rejected.Contains(d.ID, p.ID) {
		return orientation{}, false
	}
	leg := tt.OriginDest[j]
	src := tt.OriginOrigin[i][j]
	dst := tt.DestDest[j][i]
	sched, ok := FeasibleTimes(d.Window, p.Window, leg, src, dst)
	if !ok || !FeasibleCapacity(d, p) {
		return orientation{}, false
	}
	return orientation{
		driver:    i,
		passenger: j,
		weight:    maxTime - (src + leg + dst),
		schedule:  sched,
	}, true
}

// SolveBucket returns the maximum-weight set of disjoint pairs for one bucket.
// Both orientations of a pair fold into a single undirected edge carrying the
// better one (lower driver index on ties), so each shipment appears at most once.
func SolveBucket(shipments []*shipment.Shipment, tt TravelTimes, rejected RejectedSet) []Proposal {
	n := len(shipments)
	if n < 2 {
		return nil
	}
	maxTime := tt.MaxTime()

	best := map[[2]int]orientation{}
	var edges []graph.Edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			fwd, okF := evaluate(shipments, tt, rejected, maxTime, i, j)
			rev, okR := evaluate(shipments, tt, rejected, maxTime, j, i)
			var o orientation
			switch {
			case okF && okR:
				o = fwd
				if rev.weight > fwd.weight {
					o = rev
				}
			case okF:
				o = fwd
			case okR:
				o = rev
			default:
				continue
			}
			best[[2]int{i, j}] = o
			// scaling keeps weight dominant and breaks ties toward more pairs
			edges = append(edges, graph.Edge{I: i, J: j, Weight: int64(o.weight)*int64(n+1) + 1})
		}
	}
	if len(edges) == 0 {
		return nil
	}

	mate := graph.MaxWeightMatching(edges, false)
	var out []Proposal
	for i, j := range mate {
		if j <= i {
			continue
		}
		o := best[[2]int{i, j}]
		out = append(out, Proposal{
			Outer:    shipments[o.driver],
			Inner:    shipments[o.passenger],
			Schedule: o.schedule,
			Weight:   o.weight,
		})
	}
	return out
}

// FindMatches solves each bucket independently and concatenates results in
// bucket order. Buckets without travel times are skipped.
func FindMatches(buckets []Bucket, times map[BucketKey]TravelTimes, rejected RejectedSet) []Proposal {
	var out []Proposal
	for _, b := range buckets {
		if !b.Solvable() {
			continue
		}
		tt, ok := times[b.Key]
		if !ok {
			continue
		}
		out = append(out, SolveBucket(b.Shipments, tt, rejected)...)
	}
	return out
}
