package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/pipeline"
)

// generateCommand creates the generate command, the main entry point of the
// pipeline.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		output     string
		noCache    bool
		minGap     int
		baseTemp   float64
		paramPairs []string
	)

	cmd := &cobra.Command{
		Use:   "generate [request]",
		Short: "Generate a validated circuit schematic from a description",
		Long: `Generate a validated circuit schematic from a natural-language description.

The request is sent to the configured model together with retrieved example
circuits. Each candidate runs through the staged validator in an isolated
worker process; failures feed back into retry prompts with escalating
temperature, and spacing violations go through a mechanical repair loop
before falling back to regeneration.

On success the validated ORD source and the rendered schematic SVG are
written next to each other:

  ordpilot generate "differential pair with resistive loads" -o diffpair`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testParams, err := parseTestParams(paramPairs)
			if err != nil {
				return err
			}
			return c.runGenerate(cmd.Context(), args[0], generateParams{
				output:     output,
				noCache:    noCache,
				minGap:     minGap,
				baseTemp:   baseTemp,
				testParams: testParams,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output base path (writes <base>.ord and <base>.svg)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable outcome caching")
	cmd.Flags().IntVar(&minGap, "min-gap", 0, "minimum clear distance between elements (default from config)")
	cmd.Flags().Float64Var(&baseTemp, "temperature", -1, "base sampling temperature (default from config)")
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "test parameter as key=value (repeatable)")

	return cmd
}

type generateParams struct {
	output     string
	noCache    bool
	minGap     int
	baseTemp   float64
	testParams map[string]string
}

// runGenerate executes the pipeline and writes the artifacts.
func (c *CLI) runGenerate(ctx context.Context, request string, p generateParams) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, p.noCache)
	if err != nil {
		return err
	}
	defer runner.Generator.Close()

	if p.minGap > 0 {
		runner.Options.MinGap = p.minGap
	}
	if p.baseTemp >= 0 {
		runner.Options.BaseTemperature = p.baseTemp
	}
	runner.Options.TestParams = p.testParams

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Generating circuit...")
	spinner.Start()

	result, err := runner.Run(ctx, request, nil)
	if err != nil {
		spinner.StopWithError("Generation failed")
		return err
	}
	spinner.Stop()

	if result.Intent == pipeline.IntentQuestion {
		fmt.Println(result.Response)
		return nil
	}

	printAttempts(result.Attempts)
	if !result.Success() {
		printError("%s", result.Response)
		if result.Source != "" {
			printDetail("Best candidate kept below")
			fmt.Println(result.Source)
		}
		return fmt.Errorf("no valid circuit after %d attempts", len(result.Attempts))
	}

	prog.done(fmt.Sprintf("Validated %s", strings.Join(result.Outcome.CellNames, ", ")))
	printSuccess("%s", result.Response)

	if p.output == "" {
		fmt.Println(result.Source)
		return nil
	}
	return writeArtifacts(p.output, result.Source, result.SVG)
}

// writeArtifacts writes the ORD source and schematic SVG for a result.
func writeArtifacts(base, source string, svg []byte) error {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ordPath := base + ".ord"
	if err := os.WriteFile(ordPath, []byte(source), 0644); err != nil {
		return fmt.Errorf("write %s: %w", ordPath, err)
	}
	printFile(ordPath)

	if len(svg) > 0 {
		svgPath := base + ".svg"
		if err := os.WriteFile(svgPath, svg, 0644); err != nil {
			return fmt.Errorf("write %s: %w", svgPath, err)
		}
		printFile(svgPath)
	}

	printNewline()
	printNextStep("Inspect connectivity", "ordpilot netlist "+ordPath)
	return nil
}
