package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tenant-vault/internal/config"
	"tenant-vault/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the engine's HTTP API for the platform's admin UI.

Backup and restore requests block until the job finishes, so the server's
write timeout must cover the longest expected run.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

// durationOr parses a config duration, falling back when the value is
// empty. Config validation rejects malformed values up front.
func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, func(cfg *config.Config) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	readTimeout := durationOr(rt.cfg.Server.ReadTimeout, 30*time.Second)
	writeTimeout := durationOr(rt.cfg.Server.WriteTimeout, 10*time.Minute)
	shutdownTimeout := durationOr(rt.cfg.Server.ShutdownTimeout, 15*time.Second)

	srv := server.New(server.Options{
		Backups:      rt.backups,
		Restores:     rt.restores,
		Exporter:     rt.exporter,
		Repository:   rt.repo,
		Logger:       rt.logger,
		Addr:         rt.cfg.Server.Addr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
