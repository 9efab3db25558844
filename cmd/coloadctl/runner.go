// README: Case runner shared by the check and bench commands.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type Case struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type Runner struct {
	baseURL       string
	migrationPath string
	httpc         *http.Client
	db            *pgxpool.Pool
	redis         *redis.Client
	out           io.Writer
}

// RunAll executes cases in order and prints one line per result.
func (r *Runner) RunAll(ctx context.Context, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, tc := range cases {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Fprintf(r.out, "%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Fprintf(r.out, " (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Fprintf(r.out, " - %s", res.Note)
		}
		fmt.Fprintln(r.out)
	}
	return results
}

// summarize prints totals and returns an error when anything failed.
func summarize(out io.Writer, results []Result) error {
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case "PASS":
			pass++
		case "FAIL":
			fail++
		case "SKIP":
			skipped++
		}
	}
	fmt.Fprintln(out, "\n== Summary ==")
	fmt.Fprintf(out, "PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)
	if fail > 0 {
		return fmt.Errorf("%d checks failed", fail)
	}
	return nil
}
