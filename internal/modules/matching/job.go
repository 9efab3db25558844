// README: Periodic matching job: lock, partition, fetch travel times, solve, persist.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"coload/internal/logger"
	"coload/internal/metrics"
	"coload/internal/modules/shipment"
)

// ShipmentSource yields the candidate pool with loads resolved.
type ShipmentSource interface {
	Eligible(ctx context.Context) ([]*shipment.Shipment, int, error)
}

// TravelTimer fetches the three travel-time tables for one bucket.
type TravelTimer interface {
	Fetch(ctx context.Context, shipments []*shipment.Shipment) (TravelTimes, error)
}

type JobConfig struct {
	Tick          time.Duration
	Workers       int
	BucketTimeout time.Duration
	// LockRefresh is how often the run lock TTL is extended while a run is in
	// progress. Keep it well below the lock TTL.
	LockRefresh time.Duration
}

type Job struct {
	shipments ShipmentSource
	travel    TravelTimer
	lifecycle *Service
	lock      Locker
	cfg       JobConfig
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewJob(shipments ShipmentSource, travel TravelTimer, lifecycle *Service, lock Locker, cfg JobConfig, log logger.Logger, m *metrics.Metrics) *Job {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.LockRefresh <= 0 {
		cfg.LockRefresh = 30 * time.Second
	}
	return &Job{
		shipments: shipments,
		travel:    travel,
		lifecycle: lifecycle,
		lock:      lock,
		cfg:       cfg,
		log:       log.With("component", "matching_job"),
		metrics:   m,
		now:       time.Now,
	}
}

// RunScheduler runs the job on every tick until ctx is done. A run still
// holding the lock elsewhere is skipped.
func (j *Job) RunScheduler(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, ErrJobRunning) && ctx.Err() == nil {
				j.log.Error("matching run failed", "error", err)
			}
		}
	}
}

// RunOnce performs one full matching run under the distributed lock.
func (j *Job) RunOnce(ctx context.Context) (RunSummary, error) {
	start := j.now()
	sum := RunSummary{RunID: uuid.NewString()}
	log := j.log.With("run_id", sum.RunID)

	token, ok, err := j.lock.TryAcquire(ctx)
	if err != nil {
		j.metrics.RunsTotal.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		j.metrics.RunsTotal.WithLabelValues("locked").Inc()
		log.Info("matching run skipped, lock held")
		return sum, ErrJobRunning
	}
	defer func() {
		if err := j.lock.Release(context.WithoutCancel(ctx), token); err != nil {
			log.Warn("release run lock failed", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := j.keepLock(runCtx, token, cancel, log)
	err = j.run(runCtx, &sum, log)
	stop()
	if cause := context.Cause(runCtx); errors.Is(cause, ErrLockLost) {
		err = cause
	}
	sum.Duration = j.now().Sub(start)
	j.metrics.RunDuration.Observe(sum.Duration.Seconds())

	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case sum.Failed > 0:
		result = "partial"
	}
	j.metrics.RunsTotal.WithLabelValues(result).Inc()
	if err != nil {
		log.Error("matching run aborted", "error", err, "duration", sum.Duration)
		return sum, err
	}
	log.Info("matching run finished",
		"shipments", sum.Shipments,
		"malformed", sum.Malformed,
		"buckets", sum.Buckets,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"proposed", sum.Proposed,
		"persisted", sum.Persisted,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (j *Job) run(ctx context.Context, sum *RunSummary, log logger.Logger) error {
	j.lifecycle.Housekeeping(ctx)

	candidates, malformed, err := j.shipments.Eligible(ctx)
	if err != nil {
		return fmt.Errorf("load shipments: %w", err)
	}
	sum.Shipments = len(candidates)
	sum.Malformed = malformed

	rejected, err := j.lifecycle.Rejected(ctx)
	if err != nil {
		return fmt.Errorf("load rejections: %w", err)
	}

	buckets := Partition(candidates)
	sum.Buckets = len(buckets)
	results := make([][]Proposal, len(buckets))
	failures := make([]error, len(buckets))

	var g errgroup.Group
	g.SetLimit(j.cfg.Workers)
	for i, b := range buckets {
		if !b.Solvable() {
			sum.Skipped++
			j.metrics.BucketsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		g.Go(func() error {
			results[i], failures[i] = j.solve(ctx, b, rejected)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	var matches []*Match
	now := j.now().UTC()
	for i, b := range buckets {
		if failures[i] != nil {
			sum.Failed++
			j.metrics.BucketsTotal.WithLabelValues("failed").Inc()
			log.Warn("bucket failed",
				"origin_city", b.Key.OriginCity,
				"destination_city", b.Key.DestinationCity,
				"shipments", len(b.Shipments),
				"error", failures[i],
			)
			continue
		}
		if b.Solvable() {
			j.metrics.BucketsTotal.WithLabelValues("solved").Inc()
		}
		for _, p := range results[i] {
			matches = append(matches, &Match{
				ID:              newID(),
				OuterShipmentID: p.Outer.ID,
				InnerShipmentID: p.Inner.ID,
				OuterCompanyID:  p.Outer.CompanyID,
				InnerCompanyID:  p.Inner.CompanyID,
				Status:          StatusPending,
				Schedule:        p.Schedule,
				CreatedAt:       now,
			})
		}
	}
	sum.Proposed = len(matches)

	persisted, err := j.lifecycle.store.CreateProposed(ctx, matches)
	if err != nil {
		return fmt.Errorf("persist proposals: %w", err)
	}
	sum.Persisted = persisted
	j.metrics.MatchesProposed.Add(float64(persisted))
	return nil
}

// keepLock extends the run lock every LockRefresh until stop is called. If the
// lock cannot be extended the run is cancelled with ErrLockLost.
func (j *Job) keepLock(ctx context.Context, token string, cancel context.CancelCauseFunc, log logger.Logger) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(j.cfg.LockRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := j.lock.Refresh(ctx, token)
				if err == nil && ok {
					continue
				}
				if err == nil {
					err = ErrLockLost
				} else {
					err = fmt.Errorf("%w: %v", ErrLockLost, err)
				}
				log.Error("run lock lost, cancelling run", "error", err)
				cancel(err)
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (j *Job) solve(ctx context.Context, b Bucket, rejected RejectedSet) ([]Proposal, error) {
	bctx := ctx
	if j.cfg.BucketTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, j.cfg.BucketTimeout)
		defer cancel()
	}
	tt, err := j.travel.Fetch(bctx, b.Shipments)
	if err != nil {
		return nil, err
	}
	return SolveBucket(b.Shipments, tt, rejected), nil
}
