package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/mendel/pkg/corner"
	mio "github.com/matzehuels/mendel/pkg/io"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/raster"
	"github.com/matzehuels/mendel/pkg/solver"
)

// vectorizeFlags holds the command-line flags for vectorize. Only flags the
// user set explicitly override the configuration file.
type vectorizeFlags struct {
	config      string
	output      string
	formats     string
	cornersFile string
	tui         bool
	backend     backendOpts

	opts pipeline.Options
}

// vectorizeCommand creates the vectorize command.
func (c *CLI) vectorizeCommand() *cobra.Command {
	var f vectorizeFlags
	defaults := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "vectorize [image]",
		Short: "Fit Bézier curves to an image",
		Long: `Fit one cubic Bézier curve to each pair of neighbouring corners.

Corners are detected with FAST-9 unless --corners supplies them. Each segment
is searched by its own worker with a seeded random stream, so the same image,
corners and options always produce the same curves.

Options are read from --config (or ./mendel.toml when present); flags given
on the command line take precedence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return c.runVectorize(cmd.Context(), args[0], f, opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "configuration file (default ./"+pipeline.DefaultConfigName+" if present)")
	fl.StringVarP(&f.output, "output", "o", "", "output file (single format) or base path (multiple)")
	fl.StringVarP(&f.formats, "format", "f", "", "output format(s): svg (default), png, json (comma-separated)")
	fl.StringVar(&f.cornersFile, "corners", "", "read corners from a JSON or TOML file instead of detecting them")
	fl.BoolVar(&f.tui, "tui", false, "show an interactive progress view")
	fl.BoolVar(&f.opts.Closed, "closed", defaults.Closed, "join the last corner back to the first")
	fl.BoolVar(&f.opts.ShowCorners, "show-corners", defaults.ShowCorners, "mark corners in the output")
	fl.StringVar(&f.opts.Stroke, "stroke", defaults.Stroke, "SVG curve color (default black)")
	fl.Float64Var(&f.opts.StrokeWidth, "stroke-width", defaults.StrokeWidth, "SVG curve width")
	fl.BoolVar(&f.opts.Refresh, "refresh", false, "ignore cached results")
	fl.IntVarP(&f.opts.Workers, "workers", "w", 0, "worker goroutines (default: number of CPUs)")
	fl.Uint64Var(&f.opts.Seed, "seed", defaults.Seed, "random seed")
	fl.IntVar(&f.opts.Solver.PopulationSize, "population", defaults.Solver.PopulationSize, "candidates per generation")
	fl.IntVar(&f.opts.Solver.Survivors, "survivors", defaults.Solver.Survivors, "candidates kept by selection")
	fl.Float64Var(&f.opts.Solver.MutationRate, "mutation-rate", defaults.Solver.MutationRate, "probability that a child is mutated")
	fl.Float64Var(&f.opts.Solver.Threshold, "threshold", defaults.Solver.Threshold, "fitness at which a segment is accepted")
	fl.IntVar(&f.opts.Solver.MaxGenerations, "max-generations", defaults.Solver.MaxGenerations, "generation cap per segment (0: default)")
	fl.IntVar(&f.opts.Corners.Threshold, "corner-threshold", defaults.Corners.Threshold, "FAST intensity threshold")
	f.backend.register(cmd)

	return cmd
}

// flagSetters copies each explicitly changed flag into the loaded options.
var flagSetters = map[string]func(dst, src *pipeline.Options){
	"closed":           func(d, s *pipeline.Options) { d.Closed = s.Closed },
	"show-corners":     func(d, s *pipeline.Options) { d.ShowCorners = s.ShowCorners },
	"stroke":           func(d, s *pipeline.Options) { d.Stroke = s.Stroke },
	"stroke-width":     func(d, s *pipeline.Options) { d.StrokeWidth = s.StrokeWidth },
	"refresh":          func(d, s *pipeline.Options) { d.Refresh = s.Refresh },
	"workers":          func(d, s *pipeline.Options) { d.Workers = s.Workers },
	"seed":             func(d, s *pipeline.Options) { d.Seed = s.Seed },
	"population":       func(d, s *pipeline.Options) { d.Solver.PopulationSize = s.Solver.PopulationSize },
	"survivors":        func(d, s *pipeline.Options) { d.Solver.Survivors = s.Solver.Survivors },
	"mutation-rate":    func(d, s *pipeline.Options) { d.Solver.MutationRate = s.Solver.MutationRate },
	"threshold":        func(d, s *pipeline.Options) { d.Solver.Threshold = s.Solver.Threshold },
	"max-generations":  func(d, s *pipeline.Options) { d.Solver.MaxGenerations = s.Solver.MaxGenerations },
	"corner-threshold": func(d, s *pipeline.Options) {
		if d.Corners == (corner.Options{}) {
			d.Corners.Suppress = true
		}
		d.Corners.Threshold = s.Corners.Threshold
	},
}

// resolve loads the configuration file and applies changed flags on top.
func (f *vectorizeFlags) resolve(flags *pflag.FlagSet) (pipeline.Options, error) {
	path := f.config
	if path == "" {
		if _, err := os.Stat(pipeline.DefaultConfigName); err == nil {
			path = pipeline.DefaultConfigName
		}
	}

	opts := pipeline.DefaultOptions()
	if path != "" {
		loaded, err := pipeline.LoadConfig(path)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	flags.Visit(func(fl *pflag.Flag) {
		if set, ok := flagSetters[fl.Name]; ok {
			set(&opts, &f.opts)
		}
	})
	if flags.Changed("format") || len(opts.Formats) == 0 {
		opts.Formats = parseFormats(f.formats)
	}
	if err := pipeline.ValidateFormats(opts.Formats); err != nil {
		return opts, err
	}
	if err := pipeline.ValidateStroke(opts.Stroke, opts.StrokeWidth); err != nil {
		return opts, err
	}
	return opts, nil
}

// runVectorize loads the image and corners, solves every segment and writes
// the requested artifacts.
func (c *CLI) runVectorize(ctx context.Context, input string, f vectorizeFlags, opts pipeline.Options) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	img, err := raster.Load(input)
	if err != nil {
		return err
	}
	logger.Debug("loaded image", "path", input, "width", img.Width(), "height", img.Height())

	in := pipeline.Input{Image: img}
	if f.cornersFile != "" {
		in.Corners, err = mio.ImportCorners(f.cornersFile)
		if err != nil {
			return err
		}
		logger.Info("loaded corners", "path", f.cornersFile, "corners", len(in.Corners))
	}

	runner, err := c.newRunner(ctx, f.backend)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(context.WithoutCancel(ctx))

	opts.Logger = logger
	if f.tui {
		// The progress view owns the terminal.
		opts.Logger = newLogger(io.Discard, LogInfo)
	}
	run, err := runner.Start(ctx, in, opts)
	if err != nil {
		return err
	}

	var results []solver.Result
	if f.tui {
		results, err = runProgressTUI(ctx, fmt.Sprintf("Vectorizing %s", input), run.Job)
	} else {
		results, err = waitWithSpinner(ctx, run.Job)
	}
	if err != nil {
		return err
	}

	res, err := runner.Finish(ctx, run, results)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Solved %d segments", res.Stats.Segments))

	fmt.Println(segmentTable(res.Segments))
	fmt.Println(statsLine(res.Stats, res.CacheInfo))
	if n := res.Stats.Exhausted; n > 0 {
		printWarning("%d segment(s) hit the generation cap before reaching fitness %g", n, run.Options.Solver.Threshold)
	}
	if n := res.Stats.Degenerate; n > 0 {
		printWarning("%d segment(s) had coincident corners", n)
	}

	if err := writeArtifacts(res.Artifacts, run.Options.Formats, f.output, input); err != nil {
		return err
	}
	printKeyValue("Run", res.RunID)
	if !run.Options.ShowCorners {
		printNextStep("Overlay corners", fmt.Sprintf("%s vectorize %s --show-corners", appName, input))
	}
	return nil
}

// waitWithSpinner drains job, showing how many segments are done.
func waitWithSpinner(ctx context.Context, job *pipeline.Job) ([]solver.Result, error) {
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Solving 0/%d segments...", job.Total()))
	spinner.Start()

	results := make([]solver.Result, 0, job.Total())
	for r := range job.Results() {
		results = append(results, r)
		spinner.SetMessage(fmt.Sprintf("Solving %d/%d segments...", len(results), job.Total()))
	}
	if err := job.Wait(); err != nil {
		spinner.StopWithError("Vectorization failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	spinner.Stop()
	return results, nil
}
