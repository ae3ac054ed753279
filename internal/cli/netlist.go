package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/render/netlist"
)

func netlistsOf(source string) ([]ordrt.Netlist, error) {
	return ordrt.New().Netlists(source)
}

// netlistCommand creates the netlist command for connectivity diagrams.
func (c *CLI) netlistCommand() *cobra.Command {
	var (
		output   string
		detailed bool
		dotOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "netlist [file.ord]",
		Short: "Render cell connectivity as a node-link diagram",
		Long: `Render cell connectivity as a node-link diagram.

The schematic SVG shows placement; the netlist diagram shows topology:
instances, ports, and nets as nodes, pin connections as labeled edges.
One diagram is produced per cell with a schematic view, laid out with
Graphviz.

Use --dot to print the DOT source instead of rendering.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNetlist(args[0], output, netlist.Options{Detailed: detailed}, dotOnly)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: alongside the input)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include component types in instance labels")
	cmd.Flags().BoolVar(&dotOnly, "dot", false, "print DOT source instead of rendering SVG")

	return cmd
}

// runNetlist extracts and renders every cell netlist in the file.
func (c *CLI) runNetlist(path, output string, opts netlist.Options, dotOnly bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	source := string(data)

	if dotOnly {
		lists, err := netlistsOf(source)
		if err != nil {
			return err
		}
		for _, nl := range lists {
			fmt.Print(netlist.ToDOT(nl, opts))
		}
		return nil
	}

	diagrams, err := netlist.Render(source, opts)
	if err != nil {
		return err
	}
	if len(diagrams) == 0 {
		printWarning("No cells with schematic views in %s", path)
		return nil
	}

	dir := output
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for cell, svg := range diagrams {
		out := filepath.Join(dir, fmt.Sprintf("%s.%s.netlist.svg", base, cell))
		if err := os.WriteFile(out, svg, 0644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		printFile(out)
	}
	printSuccess("Rendered %d netlist diagram(s)", len(diagrams))
	return nil
}
