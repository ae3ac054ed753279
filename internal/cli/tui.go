package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ordlab/ordpilot/pkg/retrieval"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// exampleListModel - Interactive example selection
// =============================================================================

// exampleListModel is the bubbletea model for picking an example circuit.
type exampleListModel struct {
	examples []retrieval.Example
	cursor   int
	selected *retrieval.Example
	height   int
	offset   int
}

func newExampleListModel(examples []retrieval.Example) exampleListModel {
	return exampleListModel{
		examples: examples,
		height:   15,
	}
}

func (m exampleListModel) Init() tea.Cmd {
	return nil
}

func (m exampleListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.examples)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "enter":
			m.selected = &m.examples[m.cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m exampleListModel) View() string {
	if len(m.examples) == 0 {
		return listDimStyle.Render("No examples available.") + "\n"
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Example circuits") + "\n\n")

	end := min(m.offset+m.height, len(m.examples))
	for i := m.offset; i < end; i++ {
		ex := m.examples[i]
		line := fmt.Sprintf("%-16s %s", ex.Name, ex.Description)
		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(listNormalStyle.Render("  "+line) + "\n")
		}
	}

	b.WriteString("\n" + listDimStyle.Render("↑/↓ move · enter select · q quit") + "\n")
	return b.String()
}
