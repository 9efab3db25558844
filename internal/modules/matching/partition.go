// README: Groups candidate shipments by (origin city, destination city).
package matching

import "coload/internal/modules/shipment"

type BucketKey struct {
	OriginCity      string
	DestinationCity string
}

type Bucket struct {
	Key       BucketKey
	Shipments []*shipment.Shipment
}

// Solvable reports whether the bucket can produce a pair at all.
func (b Bucket) Solvable() bool { return len(b.Shipments) >= 2 }

// Partition keys on exact city strings. Buckets come back in order of first
// appearance and keep input order inside.
func Partition(shipments []*shipment.Shipment) []Bucket {
	index := map[BucketKey]int{}
	var buckets []Bucket
	for _, s := range shipments {
		key := BucketKey{OriginCity: s.Origin.City, DestinationCity: s.Destination.City}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key})
		}
		buckets[i].Shipments = append(buckets[i].Shipments, s)
	}
	return buckets
}
