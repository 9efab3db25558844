// README: Environment checks (Postgres, Redis, schema, HTTP endpoints).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"coload/internal/config"
	"coload/internal/infra"
)

var checkBaseURL string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check Postgres, Redis, schema and API reachability",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkBaseURL, "base-url", "http://localhost:8080", "API base URL")
	checkCmd.Flags().StringVar(&migrationPath, "migration", infra.DefaultMigration, "Migration SQL path")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	r := &Runner{
		baseURL:       strings.TrimRight(checkBaseURL, "/"),
		migrationPath: migrationPath,
		httpc:         &http.Client{Timeout: 10 * time.Second},
		out:           cmd.OutOrStdout(),
	}
	if db, err := pgxpool.New(ctx, cfg.DB.DSN); err == nil {
		r.db = db
		defer db.Close()
	}
	r.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer r.redis.Close()

	return summarize(r.out, r.RunAll(ctx, checkCases()))
}

func checkCases() []Case {
	return []Case{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Schema: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.migrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("%d tables", len(tables))}
			},
		},
		httpCase("API: health", http.MethodGet, "/health", http.StatusOK),
		httpCase("API: metrics exposed", http.MethodGet, "/metrics", http.StatusOK),
		httpCase("API: matches require a token", http.MethodGet, "/api/matches", http.StatusUnauthorized),
	}
}

func httpCase(name, method, path string, want int) Case {
	return Case{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			_ = resp.Body.Close()
			res := Result{Latency: time.Since(start), Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			if resp.StatusCode == want {
				res.Status = "PASS"
			} else {
				res.Status = "FAIL"
			}
			return res
		},
	}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
