package cli

import (
	"context"

	"github.com/spf13/cobra"

	mio "github.com/matzehuels/mendel/pkg/io"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/raster"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string
	formats     []string
	background  string // image drawn under the curves in PNG output
	showCorners bool
	stroke      string
	strokeWidth float64
}

// renderCommand creates the render command, which redraws a curves document
// written by "vectorize --format json" without solving again.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [curves.json]",
		Short: "Render a curves document to SVG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, json (comma-separated)")
	cmd.Flags().StringVar(&opts.background, "background", "", "image to draw under the curves (PNG only)")
	cmd.Flags().BoolVar(&opts.showCorners, "show-corners", false, "mark corners in the output")
	cmd.Flags().StringVar(&opts.stroke, "stroke", "", "SVG curve color (default black)")
	cmd.Flags().Float64Var(&opts.strokeWidth, "stroke-width", 0, "SVG curve width")

	return cmd
}

func runRender(ctx context.Context, input string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	doc, err := mio.ImportCurves(input)
	if err != nil {
		return err
	}
	logger.Debug("loaded curves", "path", input, "curves", len(doc.Curves))

	if opts.background != "" {
		if doc.Background, err = raster.Load(opts.background); err != nil {
			return err
		}
	}

	artifacts, err := pipeline.Render(doc, pipeline.Options{
		Formats:     opts.formats,
		ShowCorners: opts.showCorners,
		Stroke:      opts.stroke,
		StrokeWidth: opts.strokeWidth,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	printSuccess("Rendered %d curves", len(doc.Curves))
	return writeArtifacts(artifacts, opts.formats, opts.output, input)
}
