// README: PGStore tests against a real Postgres (set COLOAD_TEST_DSN).
package matching

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"coload/internal/infra"
	"coload/internal/types"
)

func setupPGStore(t *testing.T) (*PGStore, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("COLOAD_TEST_DSN")
	if dsn == "" {
		t.Skip("COLOAD_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	root, err := infra.RepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if err := infra.ApplyMigration(ctx, db, filepath.Join(root, infra.DefaultMigration)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE match_events, rejected_matches, matches, cargo, shipments, locations, trucks, companies"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	for _, stmt := range []string{
		`INSERT INTO companies (id, name) VALUES ('acme', 'Acme'), ('globex', 'Globex')`,
		`INSERT INTO shipments (id, company_id) VALUES
			('S1', 'acme'), ('S2', 'globex'), ('S3', 'acme'), ('S4', 'globex')`,
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return NewPGStore(db), db
}

func TestPGStoreCreateProposedSkipsBusyShipments(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPGStore(t)

	n, err := store.CreateProposed(ctx, []*Match{
		pendingMatch("m1", "S1", "S2"),
		pendingMatch("m2", "S2", "S3"), // S2 already taken by m1
		pendingMatch("m3", "S3", "S4"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}

	m, err := store.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.OuterCompanyID != "acme" || m.InnerCompanyID != "globex" || m.Status != StatusPending {
		t.Fatalf("loaded match = %+v", m)
	}
	if !m.Schedule.InnerArrival.Equal(at("10:10")) {
		t.Fatalf("inner arrival = %v", m.Schedule.InnerArrival)
	}

	list, err := store.List(ctx, "globex")
	if err != nil || len(list) != 2 {
		t.Fatalf("list globex: %d, %v", len(list), err)
	}
}

func TestPGStoreConfirmAndRejectCAS(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPGStore(t)
	if _, err := store.CreateProposed(ctx, []*Match{pendingMatch("m1", "S1", "S2"), pendingMatch("m2", "S3", "S4")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if ok, err := store.Confirm(ctx, "m1", SideOuter, 0); err != nil || !ok {
		t.Fatalf("confirm outer: %v %v", ok, err)
	}
	if ok, _ := store.Confirm(ctx, "m1", SideInner, 0); ok {
		t.Fatal("stale version accepted")
	}
	if ok, err := store.Confirm(ctx, "m1", SideInner, 1); err != nil || !ok {
		t.Fatalf("confirm inner: %v %v", ok, err)
	}
	m, _ := store.Get(ctx, "m1")
	if m.Status != StatusConfirmed || m.StatusVersion != 2 {
		t.Fatalf("after both confirms: %+v", m)
	}

	if ok, err := store.Reject(ctx, "m2", 0, time.Now()); err != nil || !ok {
		t.Fatalf("reject: %v %v", ok, err)
	}
	if _, err := store.Get(ctx, "m2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected match still present: %v", err)
	}
	pairs, err := store.RejectedPairs(ctx)
	if err != nil || len(pairs) != 1 || pairs[0].OuterShipmentID != "S3" {
		t.Fatalf("rejected pairs = %+v, %v", pairs, err)
	}

	// S1 is now in a confirmed match, so a rejection involving it is dead.
	if _, err := store.db.Exec(ctx, `INSERT INTO rejected_matches (outer_shipment_id, inner_shipment_id) VALUES ('S1', 'S4')`); err != nil {
		t.Fatalf("seed rejection: %v", err)
	}
	if n, err := store.PruneRejections(ctx); err != nil || n != 1 {
		t.Fatalf("prune: %d, %v", n, err)
	}
	if n, err := store.ClearRejection(ctx, types.ID("S4"), types.ID("S3")); err != nil || n != 1 {
		t.Fatalf("clear: %d, %v", n, err)
	}
}

func TestPGStoreConcurrentConfirmAndReject(t *testing.T) {
	ctx := context.Background()
	store, _ := setupPGStore(t)
	if _, err := store.CreateProposed(ctx, []*Match{pendingMatch("m1", "S1", "S2")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ok, err := store.Confirm(ctx, "m1", SideOuter, 0)
		if err != nil {
			t.Errorf("confirm: %v", err)
		}
		results <- ok
	}()
	go func() {
		defer wg.Done()
		ok, err := store.Reject(ctx, "m1", 0, time.Now())
		if err != nil {
			t.Errorf("reject: %v", err)
		}
		results <- ok
	}()
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one CAS winner, got %d", wins)
	}
}
