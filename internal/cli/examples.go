package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ordlab/ordpilot/pkg/retrieval"
)

// examplesCommand creates the examples command for browsing the built-in
// retrieval corpus.
func (c *CLI) examplesCommand() *cobra.Command {
	var (
		interactive bool
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "examples [name]",
		Short: "Browse the example circuits used to ground generation",
		Long: `Browse the example circuits used to ground generation.

Without arguments, lists all examples with their descriptions. With a name,
prints that example's ORD source. With --interactive, opens a picker.

Use --dir to browse a custom example directory instead of the built-in
corpus; the same directory can back the pipeline's retrieval index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := loadIndex(dir)
			if err != nil {
				return err
			}
			switch {
			case len(args) == 1:
				return printExample(index, args[0])
			case interactive:
				return c.pickExample(index)
			default:
				listExamples(index)
				return nil
			}
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick an example interactively")
	cmd.Flags().StringVar(&dir, "dir", "", "load examples from a directory instead of the built-in corpus")

	return cmd
}

func loadIndex(dir string) (*retrieval.Index, error) {
	if dir != "" {
		return retrieval.LoadDir(dir)
	}
	return retrieval.LoadBuiltin()
}

func listExamples(index *retrieval.Index) {
	for _, ex := range index.Examples() {
		fmt.Println(StyleHighlight.Render(ex.Name) + "  " + StyleDim.Render(ex.Description))
	}
}

func printExample(index *retrieval.Index, name string) error {
	for _, ex := range index.Examples() {
		if ex.Name == name {
			fmt.Println(ex.Source)
			return nil
		}
	}
	return fmt.Errorf("no example named %q", name)
}

// pickExample opens the interactive picker and prints the chosen source.
func (c *CLI) pickExample(index *retrieval.Index) error {
	model := newExampleListModel(index.Examples())
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("run picker: %w", err)
	}
	if m, ok := final.(exampleListModel); ok && m.selected != nil {
		printNewline()
		fmt.Println(m.selected.Source)
	}
	return nil
}
