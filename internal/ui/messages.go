// Package ui provides message printing utilities.
package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/devrelay/cli/internal/status"
)

// quietMode suppresses decorative output when set via SetQuietMode.
var quietMode bool

// SetQuietMode enables or disables quiet output. In quiet mode only
// errors and explicitly requested data are printed.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// clearLine erases the current terminal line so in-place status output
// can be redrawn.
func clearLine() {
	fmt.Print("\r\033[K")
}

// Println prints an empty line.
func Println() {
	if quietMode {
		return
	}
	fmt.Println()
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(SuccessStyle.Render("✓ " + msg))
}

// PrintError prints an error message. Errors are printed even in quiet mode.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(ErrorStyle.Render("✗ " + msg))
}

// PrintWarning prints a warning message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintWarning(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(WarningStyle.Render("⚠ " + msg))
}

// PrintInfo prints an informational message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintInfo(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(InfoStyle.Render(msg))
}

// PrintDim prints a dimmed message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintDim(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(DimStyle.Render(msg))
}

// PrintLink prints a clickable link.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	if quietMode {
		return
	}
	fmt.Printf("%s %s\n", DimStyle.Render(label+":"), LinkStyle.Render(url))
}

// PrintKeyValue prints an aligned key/value detail line.
//
// Parameters:
//   - key: The key label (including any trailing colon)
//   - value: The value to display
func PrintKeyValue(key, value string) {
	if quietMode {
		return
	}
	fmt.Printf("  %s %s\n", DimStyle.Render(padRight(key, 14)), InfoStyle.Render(value))
}

// PrintBox prints content in a styled box.
//
// Parameters:
//   - title: Box title
//   - content: Box content
func PrintBox(title, content string) {
	if quietMode {
		return
	}
	titleStyled := BoxTitleStyle.Render(title)
	box := BoxStyle.Render(titleStyled + "\n" + content)
	fmt.Println(box)
}

// PrintStepHeader prints a numbered step header for multi-step flows.
//
// Parameters:
//   - current: The current step number (1-based)
//   - total: The total number of steps
//   - title: The step title
func PrintStepHeader(current, total int, title string) {
	if quietMode {
		return
	}
	fmt.Println()
	step := DimStyle.Render(fmt.Sprintf("[%d/%d]", current, total))
	fmt.Printf("%s %s\n", step, TitleStyle.Render(title))
}

// NextStep represents a suggested follow-up command.
type NextStep struct {
	// Label describes what the command does.
	Label string

	// Command is the shell command to run.
	Command string
}

// PrintNextSteps prints a "Next steps" footer with suggested commands.
//
// Parameters:
//   - steps: The suggested follow-up commands
func PrintNextSteps(steps []NextStep) {
	if quietMode || len(steps) == 0 {
		return
	}

	fmt.Println(DimStyle.Render("Next steps:"))
	maxLabel := 0
	for _, s := range steps {
		if len(s.Label) > maxLabel {
			maxLabel = len(s.Label)
		}
	}
	for _, s := range steps {
		fmt.Printf("  %s %s\n", DimStyle.Render(padRight(s.Label, maxLabel)), CodeStyle.Render(s.Command))
	}
}

// PrintStatusLine prints an in-place status line for live monitoring.
// The line is cleared and redrawn on each call.
//
// Parameters:
//   - statusStr: Current dev server status string
//   - detail: Optional detail appended after the status
func PrintStatusLine(statusStr, detail string) {
	if quietMode {
		return
	}
	clearLine()

	statusIcon := getStyledStatusIcon(statusStr)
	line := fmt.Sprintf("%s %s", statusIcon, InfoStyle.Render(statusStr))
	if detail != "" {
		line += DimStyle.Render(" " + detail)
	}

	// Print without newline so it updates in place
	fmt.Print(line)
}

// getStyledStatusIcon returns a styled icon for the given status.
// Uses the shared status package for icon selection and applies UI styling.
//
// Parameters:
//   - statusStr: The status string
//
// Returns:
//   - string: The styled icon string
func getStyledStatusIcon(statusStr string) string {
	icon := status.StatusIcon(statusStr)
	category := status.StatusCategory(statusStr)

	switch category {
	case "dim":
		return DimStyle.Render(icon)
	case "info":
		return InfoStyle.Render(icon)
	case "success":
		return SuccessStyle.Render(icon)
	case "error":
		return ErrorStyle.Render(icon)
	case "warning":
		return WarningStyle.Render(icon)
	default:
		return DimStyle.Render(icon)
	}
}

// OpenBrowser opens a URL in the default browser.
//
// Parameters:
//   - url: The URL to open
//
// Returns:
//   - error: Any error that occurred
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// Table represents a table with dynamic column widths for formatted output.
type Table struct {
	// Headers contains the column header names.
	Headers []string

	// Rows contains all data rows.
	Rows [][]string

	// MinWidths specifies minimum width per column index.
	MinWidths map[int]int

	// MaxWidths specifies maximum width per column index (truncates with ellipsis).
	MaxWidths map[int]int
}

// NewTable creates a new table with the specified headers.
//
// Parameters:
//   - headers: Column header names
//
// Returns:
//   - *Table: A new table instance
func NewTable(headers ...string) *Table {
	return &Table{
		Headers:   headers,
		Rows:      make([][]string, 0),
		MinWidths: make(map[int]int),
		MaxWidths: make(map[int]int),
	}
}

// AddRow adds a data row to the table.
//
// Parameters:
//   - values: Cell values for the row
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// SetMinWidth sets the minimum width for a column.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Minimum width in characters
func (t *Table) SetMinWidth(col, width int) {
	t.MinWidths[col] = width
}

// SetMaxWidth sets the maximum width for a column.
// Values exceeding this width will be truncated with ellipsis.
//
// Parameters:
//   - col: Column index (0-based)
//   - width: Maximum width in characters
func (t *Table) SetMaxWidth(col, width int) {
	t.MaxWidths[col] = width
}

// calculateColumnWidths computes the optimal width for each column.
//
// Returns:
//   - []int: Width for each column
func (t *Table) calculateColumnWidths() []int {
	numCols := len(t.Headers)
	widths := make([]int, numCols)

	// Start with header widths
	for i, header := range t.Headers {
		widths[i] = len(header)
	}

	// Check all row values
	for _, row := range t.Rows {
		for i, val := range row {
			if i < numCols && len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}

	// Apply min/max constraints
	for i := range widths {
		if min, ok := t.MinWidths[i]; ok && widths[i] < min {
			widths[i] = min
		}
		if max, ok := t.MaxWidths[i]; ok && widths[i] > max {
			widths[i] = max
		}
	}

	return widths
}

// truncateWithEllipsis truncates a string to the specified width with ellipsis.
//
// Parameters:
//   - s: String to truncate
//   - width: Maximum width
//
// Returns:
//   - string: Truncated string with ellipsis if needed
func truncateWithEllipsis(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// padRight pads a string to the specified width with spaces.
//
// Parameters:
//   - s: String to pad
//   - width: Target width
//
// Returns:
//   - string: Padded string
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Render prints the table with calculated column widths.
// Headers are styled with TableHeaderStyle, cells with TableCellStyle.
func (t *Table) Render() {
	if len(t.Headers) == 0 {
		return
	}

	widths := t.calculateColumnWidths()
	colGap := "  " // Gap between columns

	// Print header row
	var headerCells []string
	for i, header := range t.Headers {
		cell := padRight(header, widths[i])
		headerCells = append(headerCells, TableHeaderStyle.Render(cell))
	}
	fmt.Println(strings.Join(headerCells, colGap))

	// Print separator
	totalWidth := 0
	for _, w := range widths {
		totalWidth += w
	}
	totalWidth += len(colGap) * (len(widths) - 1)
	fmt.Println(DimStyle.Render(strings.Repeat("─", totalWidth)))

	// Print data rows
	for _, row := range t.Rows {
		var cells []string
		for i := 0; i < len(t.Headers); i++ {
			val := ""
			if i < len(row) {
				val = row[i]
			}

			// Apply max width truncation
			if max, ok := t.MaxWidths[i]; ok {
				val = truncateWithEllipsis(val, max)
			}

			cell := padRight(val, widths[i])
			cells = append(cells, TableCellStyle.Render(cell))
		}
		fmt.Println(strings.Join(cells, colGap))
	}
}
