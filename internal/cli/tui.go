package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/cbzkit/pkg/merge"
)

// =============================================================================
// ArchivePickerModel - Interactive archive selection for merge
// =============================================================================

// ArchivePickerModel is the bubbletea model for choosing which discovered
// archives to merge. Every archive starts selected; merge order is always
// discovery order regardless of the order of selection.
type ArchivePickerModel struct {
	Archives  []merge.Descriptor
	Sizes     []int64
	Chosen    []bool
	Cursor    int
	Offset    int
	Height    int
	Confirmed bool
}

// NewArchivePickerModel creates a picker over descs.
func NewArchivePickerModel(descs []merge.Descriptor) ArchivePickerModel {
	m := ArchivePickerModel{
		Archives: descs,
		Sizes:    make([]int64, len(descs)),
		Chosen:   make([]bool, len(descs)),
		Height:   15,
	}
	for i, d := range descs {
		m.Chosen[i] = true
		if info, err := os.Stat(d.Path); err == nil {
			m.Sizes[i] = info.Size()
		}
	}
	return m
}

func (m ArchivePickerModel) Init() tea.Cmd {
	return nil
}

func (m ArchivePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Archives)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Chosen) > 0 {
				m.Chosen[m.Cursor] = !m.Chosen[m.Cursor]
			}
		case "a":
			all := m.count() == len(m.Chosen)
			for i := range m.Chosen {
				m.Chosen[i] = !all
			}
		case "enter":
			if m.count() == 0 {
				return m, nil
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ArchivePickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Archives to Merge"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("↑/↓ navigate  space toggle  a all  ⏎ merge  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Archives))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Chosen[i] {
			check = "[x]"
		}
		rows = append(rows, []string{cursor, check, fmt.Sprint(i + 1), filepath.Base(m.Archives[i].Path), formatBytes(m.Sizes[i])})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("", "", "#", "Archive", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Archives) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			if !m.Chosen[idx] {
				return base.Foreground(colorDim)
			}
			if col == 4 {
				return base.Foreground(colorGray)
			}
			return base.Foreground(colorGreen)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d of %d selected", m.count(), len(m.Archives))))

	return b.String()
}

// Selected returns the chosen archives in discovery order, or nil when the
// picker was quit without confirming.
func (m ArchivePickerModel) Selected() []merge.Descriptor {
	if !m.Confirmed {
		return nil
	}
	var out []merge.Descriptor
	for i, d := range m.Archives {
		if m.Chosen[i] {
			out = append(out, d)
		}
	}
	return out
}

func (m ArchivePickerModel) count() int {
	n := 0
	for _, c := range m.Chosen {
		if c {
			n++
		}
	}
	return n
}

// pickArchives runs the picker on the terminal.
func pickArchives(descs []merge.Descriptor) ([]merge.Descriptor, error) {
	final, err := tea.NewProgram(NewArchivePickerModel(descs)).Run()
	if err != nil {
		return nil, fmt.Errorf("archive picker: %w", err)
	}
	return final.(ArchivePickerModel).Selected(), nil
}
