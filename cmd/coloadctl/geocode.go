package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coload/internal/types"
)

var geocodeBatch int

var geocodeCmd = &cobra.Command{
	Use:   "geocode [location-id...]",
	Short: "Geocode the given locations, or a batch of pending ones",
	RunE:  runGeocode,
}

func init() {
	geocodeCmd.Flags().IntVar(&geocodeBatch, "batch", 0, "Pending locations to process when no ids are given (default from config)")
}

func runGeocode(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := e.locationService()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		batch := geocodeBatch
		if batch <= 0 {
			batch = e.cfg.Geocoding.BatchSize
		}
		n, err := svc.GeocodePending(ctx, batch)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "geocoded %d pending locations\n", n)
		return nil
	}

	failed := 0
	for _, id := range args {
		loc, err := svc.Geocode(ctx, types.ID(id))
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(out, "OK   %s %.6f,%.6f %s\n", id, loc.Point.Lat, loc.Point.Lng, loc.PlaceID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d locations failed", failed, len(args))
	}
	return nil
}
