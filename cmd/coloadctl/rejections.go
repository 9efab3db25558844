package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coload/internal/types"
)

var clearRejectionCmd = &cobra.Command{
	Use:   "clear-rejection <shipment-a> <shipment-b>",
	Short: "Allow a rejected shipment pair to be proposed again",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		e, err := openEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.matchService().ClearRejection(ctx, operator, types.ID(args[0]), types.ID(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared rejection %s <-> %s\n", args[0], args[1])
		return nil
	},
}
