package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// validateCommand creates the validate command for checking ORD files.
func (c *CLI) validateCommand() *cobra.Command {
	var (
		minGap     int
		output     string
		asJSON     bool
		paramPairs []string
	)

	cmd := &cobra.Command{
		Use:   "validate [file.ord]",
		Short: "Validate an ORD file through every pipeline stage",
		Long: `Validate an ORD file through every pipeline stage.

The file runs through parsing, compilation, execution, cell discovery,
instantiation, view access, rendering, and the spacing check - the same
stages a generated candidate faces. The first failing stage is reported
with its diagnostic; --json prints the full structured outcome instead.

Validation runs in-process: the source comes from a trusted file, not a
model. Use --min-gap to tighten or relax the spacing rule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testParams, err := parseTestParams(paramPairs)
			if err != nil {
				return err
			}
			return c.runValidate(args[0], minGap, testParams, output, asJSON)
		},
	}

	cmd.Flags().IntVar(&minGap, "min-gap", validate.DefaultMinGap, "minimum clear distance between elements")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the rendered schematic SVG to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured outcome as JSON")
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "test parameter as key=value (repeatable)")

	return cmd
}

// runValidate validates one file and reports the outcome.
func (c *CLI) runValidate(path string, minGap int, testParams map[string]string, output string, asJSON bool) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	prog := newProgress(c.Logger)
	out := validate.Full(ordrt.New(), string(source), testParams, minGap)

	if asJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		if !out.Success {
			return fmt.Errorf("validation failed at the %s stage", out.Stage)
		}
		return nil
	}

	if !out.Success {
		printError("Failed at the %s stage", out.Stage)
		printDetail("%s", out.Message)
		return fmt.Errorf("validation failed")
	}

	prog.done(fmt.Sprintf("Validated %d cell(s)", len(out.CellNames)))
	printSuccess("Valid: %s", strings.Join(out.CellNames, ", "))

	if output != "" && len(out.SVG) > 0 {
		if err := os.WriteFile(output, out.SVG, 0644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printFile(output)
	}
	return nil
}
