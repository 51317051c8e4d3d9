package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Result Display
// =============================================================================

// cacheStatus is shown after the stats line of commands that read the
// decoded-page cache.
type cacheStatus int

const (
	cacheUnused cacheStatus = iota
	cacheFresh
	cacheHit
)

// printResult reports a finished build: the archive, its stats and any
// skipped inputs.
func printResult(verb string, res *pipeline.Result, cs cacheStatus) {
	printSuccess("%s %s", verb, plural(res.Stats.OutputPages, "page"))
	printFile(res.Output.Path)
	printStats(statsLine(res, cs))
	printSkipped(res.Warning)
}

// statsLine lists the parts of the stats line, unstyled.
func statsLine(res *pipeline.Result, cs cacheStatus) []string {
	parts := []string{plural(res.Stats.SourcePages, "source page")}
	if res.Stats.SplitPages > 0 {
		parts = append(parts, fmt.Sprintf("%d split", res.Stats.SplitPages))
	}
	if res.Output != nil {
		parts = append(parts, formatBytes(res.Output.Bytes))
	}
	switch cs {
	case cacheHit:
		parts = append(parts, iconCached)
	case cacheFresh:
		parts = append(parts, iconFresh)
	}
	return parts
}

// printStats prints stat parts on one dimmed line.
func printStats(parts []string) {
	var b strings.Builder
	b.WriteString("  ")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(StyleDim.Render(" · "))
		}
		switch part {
		case iconCached:
			b.WriteString(styleCached.Render(part))
		case iconFresh:
			b.WriteString(styleComputed.Render(part))
		default:
			b.WriteString(StyleDim.Render(part))
		}
	}
	fmt.Println(b.String())
}

func printSkipped(w *errors.PartialDiscoveryWarning) {
	if w == nil || w.Empty() {
		return
	}
	printWarning("Skipped %s", plural(len(w.Skipped), "input"))
	for _, s := range w.Skipped {
		printDetail("%s: %v", s.Input, s.Err)
	}
}

// =============================================================================
// Utilities
// =============================================================================

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// formatBytes renders n with a binary unit, e.g. "1.5 MiB".
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
