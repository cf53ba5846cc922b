// Package cli implements the mendel command-line interface.
//
// # Commands
//
//   - vectorize: fit cubic Bézier curves to an image's outline
//   - corners: detect FAST-9 corners and export them
//   - render: re-render a curves document to SVG or PNG
//   - serve: run the HTTP API
//   - config: write a starter configuration file
//   - cache: manage the local result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is attached to the command context and retrieved with loggerFromContext.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mendel/pkg/buildinfo"
	"github.com/matzehuels/mendel/pkg/cache"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/sink"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "mendel"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Mendel fits Bézier curves to raster outlines",
		Long:          `Mendel vectorizes line art: it finds corners in an image and evolves one cubic Bézier curve per pair of neighbouring corners until the curve follows the dark pixels between them.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true, // main reports errors
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.vectorizeCommand())
	root.AddCommand(c.cornersCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// backendOpts selects where results are cached and published.
type backendOpts struct {
	noCache  bool
	redis    string
	scope    string
	mongoURI string
}

func (b *backendOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&b.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&b.redis, "redis", os.Getenv("MENDEL_REDIS"), "cache in Redis at host:port instead of on disk")
	cmd.Flags().StringVar(&b.scope, "cache-scope", os.Getenv("MENDEL_CACHE_SCOPE"), "prefix for cache keys when several users share a backend")
	cmd.Flags().StringVar(&b.mongoURI, "mongo-uri", os.Getenv("MENDEL_MONGO_URI"), "also store fitted curves in MongoDB")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, b backendOpts) (*pipeline.Runner, error) {
	cache, err := newCache(ctx, b)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(cache, b.keyer(), c.Logger)
	if b.mongoURI != "" {
		ms, err := sink.NewMongoSink(ctx, sink.MongoOptions{URI: b.mongoURI})
		if err != nil {
			runner.Close(ctx)
			return nil, err
		}
		runner.Sinks = append(runner.Sinks, ms)
	}
	return runner, nil
}

// keyer returns nil (the default keyer) unless a scope is set.
func (b backendOpts) keyer() cache.Keyer {
	if b.scope == "" {
		return nil
	}
	return cache.NewScopedKeyer(nil, b.scope+":")
}

func newCache(ctx context.Context, b backendOpts) (cache.Cache, error) {
	switch {
	case b.noCache:
		return cache.NewNullCache(), nil
	case b.redis != "":
		return cache.NewRedisCache(ctx, cache.RedisOptions{Addr: b.redis})
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mendel/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// basePath derives the base output path from the output and input paths.
// If output is empty, the input's extension is stripped. A known format
// extension on output is stripped too.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// outputPaths maps each format to the file it is written to. A single
// format honours output verbatim; several share its base name.
func outputPaths(formats []string, output, input string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + "." + f
	}
	return paths
}

// writeArtifacts writes rendered artifacts and lists the files.
func writeArtifacts(artifacts map[string][]byte, formats []string, output, input string) error {
	paths := outputPaths(formats, output, input)
	for _, f := range formats {
		if err := os.WriteFile(paths[f], artifacts[f], 0o644); err != nil {
			return err
		}
		printFile(paths[f])
	}
	return nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
