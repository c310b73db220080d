package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "rostercal/internal/log"
)

const version = "0.1.0"

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "rostercal",
	Short: "Roster request calendar backed by a spreadsheet API",
	Long: `rostercal keeps a local, normalized view of the roster request sheet and
serves it as a monthly calendar over a small JSON API.

With no subcommand it behaves like "serve".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/rostercal/config.yaml", "Path to config file")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monthCmd)
}

func main() {
	defer appLog.Sync()

	if err := rootCmd.ExecuteContext(signalContext()); err != nil {
		appLog.Error("rostercal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()
	return ctx
}
