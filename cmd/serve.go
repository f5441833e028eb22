package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"resume-rag/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Fetch the index and serve the chat page",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, app.Options{})
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

// bootstrap builds the pipeline and logs where a startup failure came from.
func bootstrap(ctx context.Context, opts app.Options) (*app.App, error) {
	a, err := app.Bootstrap(ctx, cfg, opts)
	if err != nil {
		log.Error().Err(err).
			Str("bucket", cfg.Storage.Bucket).
			Str("index_path", cfg.Storage.IndexPath).
			Str("dir", cfg.Storage.LocalDir).
			Msg("Startup failed")
		return nil, err
	}
	return a, nil
}
