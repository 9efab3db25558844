// README: Synthetic solver benchmark over generated buckets.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"coload/internal/modules/location"
	"coload/internal/modules/matching"
	"coload/internal/modules/shipment"
	"coload/internal/types"
)

var (
	benchSizes []int
	benchSeed  uint64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the solver on synthetic buckets (no infrastructure needed)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		r := &Runner{out: cmd.OutOrStdout()}
		return summarize(r.out, r.RunAll(ctx, benchCases(benchSizes, benchSeed)))
	},
}

func init() {
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{10, 50, 100, 200}, "Bucket sizes to solve")
	benchCmd.Flags().Uint64Var(&benchSeed, "seed", 1, "Random seed for synthetic shipments")
}

func benchCases(sizes []int, seed uint64) []Case {
	cases := make([]Case, 0, len(sizes))
	for _, n := range sizes {
		cases = append(cases, Case{
			Name: fmt.Sprintf("Solver: bucket of %d", n),
			Run: func(ctx context.Context, _ *Runner) Result {
				if err := ctx.Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				ss, tt := syntheticBucket(n, rand.New(rand.NewPCG(seed, uint64(n))))
				start := time.Now()
				pairs := matching.SolveBucket(ss, tt, matching.RejectedSet{})
				elapsed := time.Since(start)
				if err := checkDisjoint(pairs); err != nil {
					return Result{Status: "FAIL", Latency: elapsed, Note: err.Error()}
				}
				return Result{Status: "PASS", Latency: elapsed, Note: fmt.Sprintf("pairs=%d", len(pairs))}
			},
		})
	}
	return cases
}

// syntheticBucket builds n shipments on one city pair; roughly half carry a
// truck and windows spread across a working day.
func syntheticBucket(n int, rng *rand.Rand) ([]*shipment.Shipment, matching.TravelTimes) {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	ss := make([]*shipment.Shipment, n)
	for i := range ss {
		es := day.Add(time.Duration(6*60+rng.IntN(240)) * time.Minute)
		ea := es.Add(time.Duration(60+rng.IntN(180)) * time.Minute)
		s := &shipment.Shipment{
			ID:          types.ID(fmt.Sprintf("s%04d", i)),
			CompanyID:   types.ID(fmt.Sprintf("c%02d", rng.IntN(max(2, n/5)))),
			Origin:      location.Location{Address: "Dluga 1", City: "Gdansk"},
			Destination: location.Location{Address: "Marszalkowska 1", City: "Warsaw"},
			Window: shipment.Window{
				EarliestStart:   es,
				LatestStart:     es.Add(time.Duration(30+rng.IntN(120)) * time.Minute),
				EarliestArrival: ea,
				LatestArrival:   ea.Add(time.Duration(60+rng.IntN(240)) * time.Minute),
			},
			Load:         shipment.Load{Weight: 1 + rng.IntN(20), Volume: 1 + rng.IntN(10)},
			LoadResolved: true,
		}
		if rng.IntN(2) == 0 {
			s.Truck = &shipment.Truck{ID: types.ID("t" + string(s.ID)), WeightCapacity: 40, VolumeCapacity: 20}
		}
		ss[i] = s
	}

	tt := matching.TravelTimes{
		OriginOrigin: make([][]int, n),
		OriginDest:   make([]int, n),
		DestDest:     make([][]int, n),
	}
	for i := 0; i < n; i++ {
		tt.OriginOrigin[i] = make([]int, n)
		tt.DestDest[i] = make([]int, n)
		tt.OriginDest[i] = 3600 + rng.IntN(3600)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			oo, dd := 300+rng.IntN(1800), 300+rng.IntN(1800)
			tt.OriginOrigin[i][j], tt.OriginOrigin[j][i] = oo, oo
			tt.DestDest[i][j], tt.DestDest[j][i] = dd, dd
		}
	}
	return ss, tt
}

func checkDisjoint(pairs []matching.Proposal) error {
	seen := map[types.ID]bool{}
	for _, p := range pairs {
		for _, id := range []types.ID{p.Outer.ID, p.Inner.ID} {
			if seen[id] {
				return fmt.Errorf("shipment %s used twice", id)
			}
			seen[id] = true
		}
	}
	return nil
}
