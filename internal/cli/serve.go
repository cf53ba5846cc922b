package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/server"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		cfg        server.Config
		configPath string
		backend    backendOpts
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the vectorizer over HTTP",
		Long: `Serve the vectorizer over HTTP.

  POST /v1/vectorize   multipart form with an "image" file
  POST /v1/corners     multipart form with an "image" file
  GET  /healthz
  GET  /version

Request options are merged over the options in --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				opts, err := pipeline.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg.Defaults = opts
			}
			return c.runServe(cmd.Context(), cfg, backend)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().Int64Var(&cfg.MaxConcurrent, "max-concurrent", server.DefaultMaxConcurrent, "vectorize jobs run at once")
	cmd.Flags().Int64Var(&cfg.MaxUploadBytes, "max-upload", server.DefaultMaxUploadBytes, "largest accepted upload in bytes")
	cmd.Flags().DurationVar(&cfg.RequestTimeout, "timeout", server.DefaultRequestTimeout, "per-request time limit")
	cmd.Flags().IntVar(&cfg.MaxPopulation, "max-population", server.DefaultMaxPopulation, "largest population_size a request may ask for")
	cmd.Flags().IntVar(&cfg.MaxGenerations, "max-generations", server.DefaultMaxGenerations, "largest max_generations a request may ask for")
	cmd.Flags().IntVar(&cfg.MaxWorkers, "max-workers", server.DefaultMaxWorkers, "largest workers a request may ask for")
	cmd.Flags().IntVar(&cfg.MaxPixels, "max-pixels", server.DefaultMaxPixels, "largest accepted image area in pixels")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "default pipeline options (TOML)")
	backend.register(cmd)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg server.Config, backend backendOpts) error {
	runner, err := c.newRunner(ctx, backend)
	if err != nil {
		return err
	}
	defer runner.Close(context.WithoutCancel(ctx))

	srv := server.New(runner, cfg, loggerFromContext(ctx))
	started := time.Now()
	err = srv.ListenAndServe(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	loggerFromContext(ctx).Info("server stopped", "uptime", time.Since(started).Round(time.Second))
	return err
}
