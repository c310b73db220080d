package main

import (
	"time"

	"github.com/spf13/cobra"

	appLog "rostercal/internal/log"
	"rostercal/internal/web"
)

// serveCmd runs the sync loop and the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the roster sheet and serve the JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	appLog.Info("rostercal starting", "version", version)

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	session := a.ctrl.Start(ctx)
	defer session.Stop()

	a.tracker.OnChange(func(ref time.Time) {
		appLog.Info("calendar month advanced", "month", ref.Format("2006-01"))
	})
	if err := a.tracker.Start(); err != nil {
		return err
	}
	defer a.tracker.Stop()

	srv := web.NewServer(a.cfg, a.ctrl, a.tracker, a.norm)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	appLog.Info("rostercal exiting")
	return nil
}
