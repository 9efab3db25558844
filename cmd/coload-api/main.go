// README: Entry point; loads config, wires services, starts HTTP server and background schedulers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coload/internal/config"
	httptransport "coload/internal/http"
	"coload/internal/infra"
	"coload/internal/logger"
	"coload/internal/maps"
	"coload/internal/metrics"
	"coload/internal/modules/location"
	"coload/internal/modules/matching"
	"coload/internal/modules/shipment"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireMapsKey(); err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("COLOAD_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return fmt.Errorf("firebase init: %w", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	m := metrics.New()

	mapsClient, err := maps.NewClient(cfg.Maps.APIKey, cfg.Maps.QPS)
	if err != nil {
		return fmt.Errorf("maps client: %w", err)
	}
	distance := maps.NewInstrumentedMatrix(
		maps.NewDistanceService(mapsClient, cfg.Maps.Language).WithRetry(maps.DefaultRetry), m)
	geocoder := maps.NewInstrumentedGeocoder(
		maps.NewGeocodeService(mapsClient, cfg.Geocoding.Region, cfg.Maps.Language).WithRetry(maps.DefaultRetry), m)

	shipmentSvc := shipment.NewService(shipment.NewStore(dbPool), log, m)
	locationSvc := location.NewService(location.NewStore(dbPool), geocoder, log, m)

	matchSvc := matching.NewService(matching.NewPGStore(dbPool), log, m)
	travel := matching.NewTravelTimeAdapter(
		maps.NewCachedMatrix(distance, redisClient, cfg.Travel.CacheTTL, log),
		matching.Strategy(cfg.Travel.Strategy), log)
	job := matching.NewJob(shipmentSvc, travel, matchSvc,
		matching.NewRedisLock(redisClient, cfg.Matching.LockTTL),
		matching.JobConfig{
			Tick:          time.Duration(cfg.Matching.TickSeconds) * time.Second,
			Workers:       cfg.Matching.Workers,
			BucketTimeout: cfg.Matching.BucketTimeout,
			LockRefresh:   cfg.Matching.LockTTL / 3,
		}, log, m)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Matches:    matchSvc,
		Shipments:  shipmentSvc,
		Rejections: matchSvc,
		Job:        job,
		Locations:  locationSvc,
		Verifier:   verifier,
		Log:        log,
		Metrics:    m,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes(), ReadHeaderTimeout: 10 * time.Second}

	go job.RunScheduler(ctx)
	go locationSvc.RunGeocoder(ctx, time.Duration(cfg.Geocoding.TickSeconds)*time.Second, cfg.Geocoding.BatchSize)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
