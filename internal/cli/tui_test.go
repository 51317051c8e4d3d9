package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/cbzkit/pkg/merge"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m ArchivePickerModel, keys ...string) (ArchivePickerModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(ArchivePickerModel)
	}
	return m, cmd
}

func pickerDescs() []merge.Descriptor {
	return []merge.Descriptor{{Path: "v1.cbz"}, {Path: "v2.cbz"}, {Path: "v10.cbz"}}
}

func TestPickerDeselect(t *testing.T) {
	m, cmd := press(NewArchivePickerModel(pickerDescs()), "down", " ", "enter")
	if cmd == nil {
		t.Fatal("enter should quit the program")
	}
	got := m.Selected()
	if len(got) != 2 || got[0].Path != "v1.cbz" || got[1].Path != "v10.cbz" {
		t.Errorf("Selected() = %v", got)
	}
}

func TestPickerToggleAll(t *testing.T) {
	m, _ := press(NewArchivePickerModel(pickerDescs()), "a")
	if m.count() != 0 {
		t.Errorf("a with all selected should clear, count = %d", m.count())
	}
	m, cmd := press(m, "enter")
	if cmd != nil || m.Confirmed {
		t.Error("enter with nothing selected should do nothing")
	}
	m, _ = press(m, "a", "enter")
	if len(m.Selected()) != 3 {
		t.Errorf("Selected() = %v", m.Selected())
	}
}

func TestPickerQuit(t *testing.T) {
	m, cmd := press(NewArchivePickerModel(pickerDescs()), "esc")
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if m.Selected() != nil {
		t.Error("quitting should select nothing")
	}
}

func TestPickerScrolls(t *testing.T) {
	m := NewArchivePickerModel(pickerDescs())
	m.Height = 2
	m, _ = press(m, "down", "down", "j")
	if m.Cursor != 2 || m.Offset != 1 {
		t.Errorf("Cursor/Offset = %d/%d, want 2/1", m.Cursor, m.Offset)
	}
	if view := m.View(); !strings.Contains(view, "v10.cbz") || strings.Contains(view, "v1.cbz ") {
		t.Errorf("view should show the scrolled window:\n%s", view)
	}
}
