package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/wharf"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo handlers and register the deployment",
	Long: `Starts the endpoint with the demo Greeter service, Counter object and Signup
workflow, then announces the endpoint to the admin API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		app, err := wharf.New(cfg, wharf.WithLogger(logger))
		if err != nil {
			return err
		}

		feature, instances := declareDemo(app)
		if err := app.ForFeature(feature); err != nil {
			return err
		}

		report, err := app.Finalize(cmd.Context(), wharf.Instances(instances...))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %v on port %d\n", report.Attached, app.Port())
		if report.AnnounceErr != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Deployment not registered yet: %v\n", report.AnnounceErr)
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-app.Errors():
			return fmt.Errorf("endpoint error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := app.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("Wharf stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 9080, "Port to listen on")
	serveCmd.Flags().String("admin-url", "", "Admin API base URL")
	serveCmd.Flags().Bool("auto-register", true, "Announce the deployment after bootstrap")
}
