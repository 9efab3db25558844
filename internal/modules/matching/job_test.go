// README: Matching job tests with in-memory shipments, travel times and store.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"coload/internal/logger"
	"coload/internal/metrics"
	"coload/internal/modules/shipment"
)

// poolSource serves shipments that are not inside a live match.
type poolSource struct {
	store     *memStore
	all       []*shipment.Shipment
	malformed int
}

func (p *poolSource) Eligible(context.Context) ([]*shipment.Shipment, int, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	var out []*shipment.Shipment
	for _, s := range p.all {
		if !p.store.busy(s.ID) {
			out = append(out, s)
		}
	}
	return out, p.malformed, nil
}

type fakeTravel struct {
	mu    sync.Mutex
	calls int
	fetch func([]*shipment.Shipment) (TravelTimes, error)
}

func (f *fakeTravel) Fetch(_ context.Context, ss []*shipment.Shipment) (TravelTimes, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fetch(ss)
}

// fixtureTravel answers with the fixture tables when given exactly A, B, X.
func fixtureTravel() *fakeTravel {
	return &fakeTravel{fetch: func(ss []*shipment.Shipment) (TravelTimes, error) {
		if len(ss) == 3 && ss[0].ID == "A" && ss[1].ID == "B" && ss[2].ID == "X" {
			return fixtureTimes(), nil
		}
		return uniformTimes(len(ss), 600), nil
	}}
}

// sameBucket moves all shipments onto one city pair, keeping their windows.
func sameBucket(ss []*shipment.Shipment) []*shipment.Shipment {
	for _, s := range ss {
		s.Origin.City, s.Destination.City = "Gdansk", "Warsaw"
	}
	return ss
}

type jobHarness struct {
	job     *Job
	store   *memStore
	svc     *Service
	travel  *fakeTravel
	lock    Locker
	metrics *metrics.Metrics
}

func newJobHarness(t *testing.T, ss []*shipment.Shipment, travel *fakeTravel) *jobHarness {
	t.Helper()
	store := newMemStore()
	m := metrics.New()
	svc := NewService(store, logger.NewNop(), m)
	lock := NewLocalLock()
	src := &poolSource{store: store, all: ss}
	job := NewJob(src, travel, svc, lock, JobConfig{Workers: 2, BucketTimeout: time.Second}, logger.NewNop(), m)
	return &jobHarness{job: job, store: store, svc: svc, travel: travel, lock: lock, metrics: m}
}

func TestRunOnceProposesFixtureMatch(t *testing.T) {
	ctx := context.Background()
	h := newJobHarness(t, sameBucket(fixtureShipments()), fixtureTravel())

	sum, err := h.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Shipments != 3 || sum.Buckets != 1 || sum.Proposed != 1 || sum.Persisted != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.RunID == "" {
		t.Fatal("run id missing")
	}

	list, _ := h.store.List(ctx, "")
	if len(list) != 1 {
		t.Fatalf("stored %d matches, want 1", len(list))
	}
	m := list[0]
	if m.OuterShipmentID != "A" || m.InnerShipmentID != "X" || m.Status != StatusPending {
		t.Fatalf("stored match = %+v", m)
	}
	want := Schedule{OuterStart: at("08:00"), InnerStart: at("08:40"), InnerArrival: at("10:10"), OuterArrival: at("10:20")}
	if m.Schedule != want {
		t.Fatalf("schedule = %+v, want %+v", m.Schedule, want)
	}
	if v := testutil.ToFloat64(h.metrics.MatchesProposed); v != 1 {
		t.Fatalf("matches proposed metric = %v", v)
	}
	if v := testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("ok")); v != 1 {
		t.Fatalf("ok runs metric = %v", v)
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newJobHarness(t, sameBucket(fixtureShipments()), fixtureTravel())

	if _, err := h.job.RunOnce(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	sum, err := h.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Persisted != 0 || sum.Skipped != 1 {
		t.Fatalf("second run summary = %+v", sum)
	}
	if list, _ := h.store.List(ctx, ""); len(list) != 1 {
		t.Fatalf("matches after two runs = %d, want 1", len(list))
	}
}

func TestRunOnceNeverReproposesRejectedPair(t *testing.T) {
	ctx := context.Background()
	h := newJobHarness(t, sameBucket(fixtureShipments()), fixtureTravel())

	if _, err := h.job.RunOnce(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	list, _ := h.store.List(ctx, "")
	caller := Caller{UID: "u", CompanyID: list[0].InnerCompanyID}
	if _, err := h.svc.UpdateStatus(ctx, UpdateStatusCommand{MatchID: list[0].ID, Caller: caller, Intent: StatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	sum, err := h.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Shipments != 3 || sum.Persisted != 0 {
		t.Fatalf("rejected pair came back: %+v", sum)
	}

	if err := h.svc.ClearRejection(ctx, Caller{UID: "ops", Admin: true}, "X", "A"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if sum, err := h.job.RunOnce(ctx); err != nil || sum.Persisted != 1 {
		t.Fatalf("after clearing the rejection: %+v, %v", sum, err)
	}
}

func TestRunOnceBucketFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	ss := []*shipment.Shipment{
		newShipment("1", withTruck(100, 100), withCities("Lodz", "Poznan")),
		newShipment("2", withCities("Lodz", "Poznan")),
		newShipment("3", withTruck(100, 100), withCities("Krakow", "Wroclaw")),
		newShipment("4", withCities("Krakow", "Wroclaw")),
		newShipment("5", withCities("Lublin", "Opole")),
	}
	travel := &fakeTravel{fetch: func(ss []*shipment.Shipment) (TravelTimes, error) {
		if ss[0].Origin.City == "Krakow" {
			return TravelTimes{}, fmt.Errorf("%w: OVER_QUERY_LIMIT", ErrProvider)
		}
		return uniformTimes(len(ss), 600), nil
	}}
	h := newJobHarness(t, ss, travel)

	sum, err := h.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Buckets != 3 || sum.Failed != 1 || sum.Skipped != 1 || sum.Persisted != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if travel.calls != 2 {
		t.Fatalf("provider called %d times, want 2", travel.calls)
	}
	list, _ := h.store.List(ctx, "")
	if len(list) != 1 || list[0].OuterShipmentID != "1" {
		t.Fatalf("stored = %+v", list)
	}
	if v := testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("partial")); v != 1 {
		t.Fatalf("partial runs metric = %v", v)
	}
}

func TestRunOnceLockHeld(t *testing.T) {
	ctx := context.Background()
	h := newJobHarness(t, sameBucket(fixtureShipments()), fixtureTravel())

	token, ok, _ := h.lock.TryAcquire(ctx)
	if !ok {
		t.Fatal("could not take lock")
	}
	if _, err := h.job.RunOnce(ctx); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("want ErrJobRunning, got %v", err)
	}
	if h.travel.calls != 0 {
		t.Fatal("locked run touched the provider")
	}
	_ = h.lock.Release(ctx, token)
	if _, err := h.job.RunOnce(ctx); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func TestRunOnceReportsMalformed(t *testing.T) {
	ctx := context.Background()
	h := newJobHarness(t, nil, fixtureTravel())
	h.job.shipments.(*poolSource).malformed = 2

	sum, err := h.job.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Malformed != 2 || sum.Shipments != 0 || sum.Buckets != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	h := newJobHarness(t, sameBucket(fixtureShipments()), fixtureTravel())
	h.job.cfg.Tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.job.RunScheduler(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		list, _ := h.store.List(context.Background(), "")
		if len(list) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

// gatedTravel blocks inside Fetch until released or the context ends.
type gatedTravel struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedTravel() *gatedTravel {
	return &gatedTravel{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedTravel) Fetch(ctx context.Context, ss []*shipment.Shipment) (TravelTimes, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return fixtureTimes(), nil
	case <-ctx.Done():
		return TravelTimes{}, ctx.Err()
	}
}

type runResult struct {
	sum RunSummary
	err error
}

func startRedisLockedRun(t *testing.T, travel *gatedTravel, lock Locker) (*memStore, *metrics.Metrics, <-chan runResult) {
	t.Helper()
	store := newMemStore()
	m := metrics.New()
	svc := NewService(store, logger.NewNop(), m)
	src := &poolSource{store: store, all: sameBucket(fixtureShipments())}
	job := NewJob(src, travel, svc, lock, JobConfig{Workers: 1, LockRefresh: 5 * time.Millisecond}, logger.NewNop(), m)

	done := make(chan runResult, 1)
	go func() {
		sum, err := job.RunOnce(context.Background())
		done <- runResult{sum: sum, err: err}
	}()
	select {
	case <-travel.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("run never reached the travel-time stage")
	}
	return store, m, done
}

func waitRun(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	return runResult{}
}

func TestRunOnceKeepsLockPastTTL(t *testing.T) {
	ctx := context.Background()
	lock, mr := newTestLock(t, time.Minute)
	travel := newGatedTravel()
	store, _, done := startRedisLockedRun(t, travel, lock)

	// Two minutes of lock time pass while the run is blocked.
	for i := 0; i < 4; i++ {
		mr.FastForward(30 * time.Second)
		time.Sleep(50 * time.Millisecond)
	}
	if _, ok, err := lock.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("second run could take the lock mid-run: ok=%v err=%v", ok, err)
	}

	close(travel.release)
	res := waitRun(t, done)
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if res.sum.Persisted != 1 {
		t.Fatalf("summary = %+v", res.sum)
	}
	if len(store.matches) != 1 {
		t.Fatalf("stored %d matches, want 1", len(store.matches))
	}
	if mr.Exists(jobLockKey) {
		t.Fatal("lock not released after run")
	}
}

func TestRunOnceAbortsWhenLockLost(t *testing.T) {
	ctx := context.Background()
	lock, mr := newTestLock(t, time.Minute)
	travel := newGatedTravel()
	store, m, done := startRedisLockedRun(t, travel, lock)

	mr.FastForward(2 * time.Minute)
	other, ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expired lock not free: ok=%v err=%v", ok, err)
	}

	res := waitRun(t, done)
	if !errors.Is(res.err, ErrLockLost) {
		t.Fatalf("want ErrLockLost, got %v", res.err)
	}
	if len(store.matches) != 0 {
		t.Fatalf("run without the lock persisted %d matches", len(store.matches))
	}
	if v := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")); v != 1 {
		t.Fatalf("error runs metric = %v", v)
	}
	if got, _ := mr.Get(jobLockKey); got != other {
		t.Fatalf("lost run released the new holder's lock: key=%q", got)
	}
}
