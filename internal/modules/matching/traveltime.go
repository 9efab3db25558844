// README: Builds per-bucket travel-time matrices from a distance matrix provider.
package matching

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"coload/internal/logger"
	"coload/internal/maps"
	"coload/internal/modules/shipment"
)

type Strategy string

const (
	// StrategyBatch requests full N x N matrices chunked to provider limits.
	StrategyBatch Strategy = "batch"
	// StrategyPerShipment issues three single-origin requests per shipment.
	StrategyPerShipment Strategy = "per_shipment"
)

// MatrixProvider answers origin x destination duration matrices.
type MatrixProvider interface {
	Matrix(ctx context.Context, origins, destinations []string) ([][]maps.Element, error)
}

// TravelTimes holds driving durations in seconds for one bucket, indexed like
// the bucket's shipments.
type TravelTimes struct {
	OriginOrigin [][]int
	OriginDest   []int
	DestDest     [][]int
}

// MaxTime is max(OO) + max(OD) + max(DD), an upper bound on any detour.
func (tt TravelTimes) MaxTime() int {
	return maxOf2D(tt.OriginOrigin) + maxOf(tt.OriginDest) + maxOf2D(tt.DestDest)
}

func maxOf(v []int) int {
	m := 0
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func maxOf2D(v [][]int) int {
	m := 0
	for _, row := range v {
		if x := maxOf(row); x > m {
			m = x
		}
	}
	return m
}

type TravelTimeAdapter struct {
	provider    MatrixProvider
	strategy    Strategy
	maxDim      int
	maxElements int
	log         logger.Logger
}

func NewTravelTimeAdapter(p MatrixProvider, strategy Strategy, log logger.Logger) *TravelTimeAdapter {
	if strategy == "" {
		strategy = StrategyBatch
	}
	return &TravelTimeAdapter{
		provider:    p,
		strategy:    strategy,
		maxDim:      maps.MaxDimension,
		maxElements: maps.MaxElements,
		log:         log,
	}
}

// WithLimits overrides the per-request limits used to chunk batch requests.
func (a *TravelTimeAdapter) WithLimits(maxDim, maxElements int) *TravelTimeAdapter {
	a.maxDim = maxDim
	a.maxElements = maxElements
	return a
}

// Fetch returns the three matrices for shipments. Any provider failure is
// wrapped in ErrProvider; nothing is zero-filled.
func (a *TravelTimeAdapter) Fetch(ctx context.Context, shipments []*shipment.Shipment) (TravelTimes, error) {
	if len(shipments) == 0 {
		return TravelTimes{OriginOrigin: [][]int{}, OriginDest: []int{}, DestDest: [][]int{}}, nil
	}
	origins := make([]string, len(shipments))
	dests := make([]string, len(shipments))
	for i, s := range shipments {
		origins[i] = s.Origin.Query()
		dests[i] = s.Destination.Query()
	}

	if a.strategy == StrategyBatch {
		tt, err := a.batch(ctx, origins, dests)
		if err == nil {
			return tt, nil
		}
		if !errors.Is(err, maps.ErrTooLarge) {
			return TravelTimes{}, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		a.log.Warn("batch travel-time request too large, falling back to per-shipment", "shipments", len(shipments))
	}

	tt, err := a.perShipment(ctx, origins, dests)
	if err != nil {
		return TravelTimes{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return tt, nil
}

func (a *TravelTimeAdapter) call(ctx context.Context, origins, dests []string) ([][]int, error) {
	m, err := a.provider.Matrix(ctx, origins, dests)
	if err != nil {
		return nil, err
	}
	if len(m) != len(origins) {
		return nil, fmt.Errorf("provider returned %d rows for %d origins", len(m), len(origins))
	}
	out := make([][]int, len(m))
	for i, row := range m {
		if len(row) != len(dests) {
			return nil, fmt.Errorf("provider returned %d columns for %d destinations", len(row), len(dests))
		}
		out[i] = make([]int, len(row))
		for j, el := range row {
			out[i][j] = el.DurationSeconds
		}
	}
	return out, nil
}

func (a *TravelTimeAdapter) batch(ctx context.Context, origins, dests []string) (TravelTimes, error) {
	oo, err := a.square(ctx, origins)
	if err != nil {
		return TravelTimes{}, err
	}
	dd, err := a.square(ctx, dests)
	if err != nil {
		return TravelTimes{}, err
	}
	od, err := a.diagonal(ctx, origins, dests)
	if err != nil {
		return TravelTimes{}, err
	}
	return TravelTimes{OriginOrigin: oo, OriginDest: od, DestDest: dd}, nil
}

// square fetches the full points x points matrix in blocks within limits.
func (a *TravelTimeAdapter) square(ctx context.Context, points []string) ([][]int, error) {
	n := len(points)
	out := make([][]int, n)
	if n == 0 {
		return out, nil
	}
	for i := range out {
		out[i] = make([]int, n)
	}
	colStep := min(a.maxDim, n)
	rowStep := min(a.maxDim, max(1, a.maxElements/colStep))

	for r0 := 0; r0 < n; r0 += rowStep {
		r1 := min(r0+rowStep, n)
		for c0 := 0; c0 < n; c0 += colStep {
			c1 := min(c0+colStep, n)
			block, err := a.call(ctx, points[r0:r1], points[c0:c1])
			if err != nil {
				return nil, err
			}
			for i := range block {
				copy(out[r0+i][c0:c1], block[i])
			}
		}
	}
	for i := range out {
		out[i][i] = 0
	}
	return out, nil
}

// diagonalWorkers bounds concurrent single-pair requests per bucket.
const diagonalWorkers = 4

// diagonal fetches origin[i] -> dest[i] as single-pair requests, one billed
// element per shipment.
func (a *TravelTimeAdapter) diagonal(ctx context.Context, origins, dests []string) ([]int, error) {
	out := make([]int, len(origins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(diagonalWorkers)
	for i := range origins {
		g.Go(func() error {
			leg, err := a.call(gctx, origins[i:i+1], dests[i:i+1])
			if err != nil {
				return err
			}
			out[i] = leg[0][0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// perShipment issues one own-leg request and two row requests per shipment.
func (a *TravelTimeAdapter) perShipment(ctx context.Context, origins, dests []string) (TravelTimes, error) {
	n := len(origins)
	tt := TravelTimes{
		OriginOrigin: make([][]int, n),
		OriginDest:   make([]int, n),
		DestDest:     make([][]int, n),
	}
	for i := 0; i < n; i++ {
		own, err := a.call(ctx, origins[i:i+1], dests[i:i+1])
		if err != nil {
			return TravelTimes{}, err
		}
		tt.OriginDest[i] = own[0][0]

		if tt.OriginOrigin[i], err = a.row(ctx, origins, i); err != nil {
			return TravelTimes{}, err
		}
		if tt.DestDest[i], err = a.row(ctx, dests, i); err != nil {
			return TravelTimes{}, err
		}
	}
	return tt, nil
}

// row returns durations from points[i] to every point, 0 at i.
func (a *TravelTimeAdapter) row(ctx context.Context, points []string, i int) ([]int, error) {
	others := make([]string, 0, len(points)-1)
	idx := make([]int, 0, len(points)-1)
	for j, p := range points {
		if j != i {
			others = append(others, p)
			idx = append(idx, j)
		}
	}
	out := make([]int, len(points))
	step := min(a.maxDim, a.maxElements)
	for c0 := 0; c0 < len(others); c0 += step {
		c1 := min(c0+step, len(others))
		block, err := a.call(ctx, points[i:i+1], others[c0:c1])
		if err != nil {
			return nil, err
		}
		for k, d := range block[0] {
			out[idx[c0+k]] = d
		}
	}
	return out, nil
}
