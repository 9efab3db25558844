package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coload/internal/modules/matching"
)

func TestSyntheticBucketShape(t *testing.T) {
	ss, tt := syntheticBucket(30, rand.New(rand.NewPCG(1, 2)))
	if len(ss) != 30 || len(tt.OriginOrigin) != 30 || len(tt.OriginDest) != 30 || len(tt.DestDest) != 30 {
		t.Fatalf("unexpected sizes")
	}
	for i := range ss {
		if err := ss[i].Validate(); err != nil {
			t.Fatalf("shipment %d invalid: %v", i, err)
		}
		if tt.OriginOrigin[i][i] != 0 || tt.DestDest[i][i] != 0 {
			t.Fatalf("diagonal not zero at %d", i)
		}
	}
	if err := checkDisjoint(matching.SolveBucket(ss, tt, matching.RejectedSet{})); err != nil {
		t.Fatal(err)
	}
}

func TestBenchCasesPass(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{out: &out}
	results := r.RunAll(context.Background(), benchCases([]int{5, 20}, 7))
	if err := summarize(&out, results); err != nil {
		t.Fatalf("bench failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Solver: bucket of 20") {
		t.Fatalf("missing case line:\n%s", out.String())
	}
}

func TestHTTPCaseStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out bytes.Buffer
	r := &Runner{baseURL: srv.URL, httpc: srv.Client(), out: &out}
	results := r.RunAll(context.Background(), []Case{
		httpCase("health", http.MethodGet, "/health", http.StatusOK),
		httpCase("auth", http.MethodGet, "/api/matches", http.StatusUnauthorized),
		httpCase("wrong", http.MethodGet, "/api/matches", http.StatusOK),
	})
	got := []string{results[0].Status, results[1].Status, results[2].Status}
	if got[0] != "PASS" || got[1] != "PASS" || got[2] != "FAIL" {
		t.Fatalf("statuses = %v", got)
	}
	if err := summarize(&out, results); err == nil {
		t.Fatal("expected summary error for a failing case")
	}
}

func TestRootCommandWiring(t *testing.T) {
	want := []string{"run", "clear-rejection", "geocode", "migrate", "check", "bench"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
