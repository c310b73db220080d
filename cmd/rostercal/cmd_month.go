package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rostercal/internal/calendar"
)

// monthCmd prints one month of requests and exits.
var monthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Fetch the roster once and print a month grid",
	Long: `Fetch all requests once and print the calendar grid for the given month.

Without an argument the configured reference_month is used, or else the
month after the current one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonth,
}

func runMonth(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}

	ref := a.tracker.Reference()
	if len(args) == 1 {
		ref, err = time.ParseInLocation("2006-01", args[0], a.loc)
		if err != nil {
			return fmt.Errorf("month must be YYYY-MM: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	reqs, err := a.ctrl.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("fetch roster: %w", err)
	}

	m := calendar.BuildWith(a.norm, ref, reqs)
	return calendar.WriteText(cmd.OutOrStdout(), m)
}
