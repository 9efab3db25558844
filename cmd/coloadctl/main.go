// README: Operator CLI: run the matcher, clear rejections, geocode, migrate, check and bench.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"coload/internal/config"
	"coload/internal/infra"
	"coload/internal/logger"
	"coload/internal/maps"
	"coload/internal/metrics"
	"coload/internal/modules/location"
	"coload/internal/modules/matching"
	"coload/internal/modules/shipment"
)

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:           "coloadctl",
	Short:         "Operate the co-loading matching engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(clearRejectionCmd)
	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// operator is the identity used for CLI-issued lifecycle actions.
var operator = matching.Caller{UID: "coloadctl", Admin: true}

// env holds the infrastructure shared by the subcommands.
type env struct {
	cfg     config.Config
	log     logger.Logger
	metrics *metrics.Metrics
	db      *pgxpool.Pool
	redis   *redis.Client
}

func openEnv(ctx context.Context, withRedis bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, metrics: metrics.New(), db: db}
	if withRedis {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			db.Close()
			return nil, err
		}
		e.redis = rdb
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	e.db.Close()
	_ = e.log.Sync()
}

func (e *env) matchService() *matching.Service {
	return matching.NewService(matching.NewPGStore(e.db), e.log, e.metrics)
}

func (e *env) locationService() (*location.Service, error) {
	if err := e.cfg.RequireMapsKey(); err != nil {
		return nil, err
	}
	client, err := maps.NewClient(e.cfg.Maps.APIKey, e.cfg.Maps.QPS)
	if err != nil {
		return nil, err
	}
	geocoder := maps.NewInstrumentedGeocoder(
		maps.NewGeocodeService(client, e.cfg.Geocoding.Region, e.cfg.Maps.Language).WithRetry(maps.DefaultRetry), e.metrics)
	return location.NewService(location.NewStore(e.db), geocoder, e.log, e.metrics), nil
}

func (e *env) job(lock matching.Locker) (*matching.Job, error) {
	if err := e.cfg.RequireMapsKey(); err != nil {
		return nil, err
	}
	client, err := maps.NewClient(e.cfg.Maps.APIKey, e.cfg.Maps.QPS)
	if err != nil {
		return nil, err
	}
	var source matching.MatrixProvider = maps.NewInstrumentedMatrix(
		maps.NewDistanceService(client, e.cfg.Maps.Language).WithRetry(maps.DefaultRetry), e.metrics)
	if e.redis != nil {
		source = maps.NewCachedMatrix(source, e.redis, e.cfg.Travel.CacheTTL, e.log)
	}
	travel := matching.NewTravelTimeAdapter(source, matching.Strategy(e.cfg.Travel.Strategy), e.log)
	shipments := shipment.NewService(shipment.NewStore(e.db), e.log, e.metrics)
	return matching.NewJob(shipments, travel, e.matchService(), lock, matching.JobConfig{
		Workers:       e.cfg.Matching.Workers,
		BucketTimeout: e.cfg.Matching.BucketTimeout,
		LockRefresh:   e.cfg.Matching.LockTTL / 3,
	}, e.log, e.metrics), nil
}
