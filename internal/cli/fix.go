package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/repair"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// fixCommand creates the fix command for applying layout changes to an ORD file.
func (c *CLI) fixCommand() *cobra.Command {
	var (
		planPath   string
		minGap     int
		output     string
		paramPairs []string
	)

	cmd := &cobra.Command{
		Use:   "fix [file.ord]",
		Short: "Apply layout changes to an ORD file and re-validate",
		Long: `Apply layout changes to an ORD file and re-validate the result.

Changes come from a JSON plan file: a list of per-element edits with a new
position, alignment, or route setting, for example:

  [{"element_name": "m2", "new_pos_x": 12, "new_pos_y": 0}]

The edits are applied textually - only the named statements change, the
rest of the file is untouched. The patched source then runs through full
validation; it is written out even when violations remain, so a plan can
be refined incrementally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testParams, err := parseTestParams(paramPairs)
			if err != nil {
				return err
			}
			return c.runFix(args[0], planPath, minGap, testParams, output)
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "JSON file with the layout changes (required)")
	cmd.Flags().IntVar(&minGap, "min-gap", validate.DefaultMinGap, "minimum clear distance between elements")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the patched source here (default: overwrite input)")
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "test parameter as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

// runFix applies the plan and reports the re-validation outcome.
func (c *CLI) runFix(path, planPath string, minGap int, testParams map[string]string, output string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	planData, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan %s: %w", planPath, err)
	}

	var changes []repair.Change
	if err := json.Unmarshal(planData, &changes); err != nil {
		return fmt.Errorf("parse plan %s: %w", planPath, err)
	}
	if len(changes) == 0 {
		return fmt.Errorf("plan %s contains no changes", planPath)
	}

	out := validate.FixSpacing(ordrt.New(), string(source), changes, testParams, minGap)

	if output == "" {
		output = path
	}
	if err := os.WriteFile(output, []byte(out.FixedSource), 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printFile(output)

	if !out.Success {
		printWarning("Patched source still fails at the %s stage", out.Stage)
		printDetail("%s", out.Message)
		return fmt.Errorf("validation failed after patching")
	}
	printSuccess("Patched and validated")
	return nil
}
