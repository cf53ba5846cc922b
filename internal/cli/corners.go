package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mendel/pkg/corner"
	mio "github.com/matzehuels/mendel/pkg/io"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/raster"
)

// cornersCommand creates the corners command, which runs detection on its
// own so corners can be reviewed or edited before vectorizing.
func (c *CLI) cornersCommand() *cobra.Command {
	var (
		output     string
		threshold  int
		noSuppress bool
		backend    backendOpts
	)

	cmd := &cobra.Command{
		Use:   "corners [image]",
		Short: "Detect corners and export them",
		Long: `Detect FAST-9 corners and write them as JSON or TOML.

The format follows the output extension (.json or .toml); without --output
the corners are printed to stdout as JSON. Pass the file back to vectorize
with --corners.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.DefaultOptions()
			opts.Corners = corner.Options{Threshold: threshold, Suppress: !noSuppress}
			return c.runCorners(cmd.Context(), args[0], output, backend, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.json or .toml); stdout when empty")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", corner.DefaultThreshold, "FAST intensity threshold")
	cmd.Flags().BoolVar(&noSuppress, "no-suppress", false, "keep corners that are not local maxima")
	backend.register(cmd)

	return cmd
}

func (c *CLI) runCorners(ctx context.Context, input, output string, backend backendOpts, opts pipeline.Options) error {
	logger := loggerFromContext(ctx)

	img, err := raster.Load(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, backend)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(context.WithoutCancel(ctx))

	opts.Logger = logger
	cs, hit, err := runner.DetectCornersWithCacheInfo(ctx, img, opts)
	if err != nil {
		return err
	}

	if output == "" {
		return mio.WriteCorners(os.Stdout, cs, mio.FormatJSON)
	}
	if err := mio.ExportCorners(cs, output); err != nil {
		return err
	}

	status := iconFresh
	if hit {
		status = iconCached
	}
	printSuccess("Detected %s corners %s", StyleNumber.Render(fmt.Sprint(len(cs))), StyleDim.Render("("+status+")"))
	printFile(output)
	printNextStep("Vectorize with these corners", fmt.Sprintf("%s vectorize %s --corners %s", appName, input, output))
	return nil
}
