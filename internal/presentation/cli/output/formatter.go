// Package output renders sync results, mapping listings and status reports
// as colored text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatText  Format = "text"
)

// Color represents ANSI color codes for terminal output.
type Color string

const (
	ColorReset  Color = "\033[0m"
	ColorRed    Color = "\033[31m"
	ColorGreen  Color = "\033[32m"
	ColorYellow Color = "\033[33m"
	ColorBlue   Color = "\033[34m"
	ColorCyan   Color = "\033[36m"
	ColorBold   Color = "\033[1m"
	ColorDim    Color = "\033[2m"
)

// Formatter handles output formatting with support for multiple formats and colors.
type Formatter struct {
	mu           sync.Mutex
	writer       io.Writer
	format       Format
	colorEnabled bool
}

// Option is a functional option for configuring a Formatter.
type Option func(*Formatter)

// NewFormatter creates a new Formatter with the given options. Color defaults
// to what the terminal supports.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		writer:       os.Stdout,
		format:       FormatText,
		colorEnabled: IsColorSupported(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) {
		f.writer = w
	}
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(f *Formatter) {
		f.format = format
	}
}

// WithColor enables or disables colored output.
func WithColor(enabled bool) Option {
	return func(f *Formatter) {
		f.colorEnabled = enabled
	}
}

// Format returns the current output format.
func (f *Formatter) Format() Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// Write writes raw bytes to the output, implementing io.Writer.
func (f *Formatter) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Write(p)
}

// Println writes formatted output with a newline.
func (f *Formatter) Println(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.writer, format+"\n", args...)
	return err
}

// Colorize wraps text with ANSI color codes if color is enabled.
func (f *Formatter) Colorize(text string, color Color) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.colorEnabled {
		return text
	}
	return string(color) + text + string(ColorReset)
}

// Success prints a success message in green.
func (f *Formatter) Success(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return f.Println("%s", f.Colorize("✓ "+msg, ColorGreen))
}

// Error prints an error message in red.
func (f *Formatter) Error(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return f.Println("%s", f.Colorize("✗ "+msg, ColorRed))
}

// Warning prints a warning message in yellow.
func (f *Formatter) Warning(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return f.Println("%s", f.Colorize("⚠ "+msg, ColorYellow))
}

// Info prints an info message in blue.
func (f *Formatter) Info(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return f.Println("%s", f.Colorize("ℹ "+msg, ColorBlue))
}

// Bold wraps text in bold.
func (f *Formatter) Bold(text string) string {
	return f.Colorize(text, ColorBold)
}

// Dim wraps text in a muted style.
func (f *Formatter) Dim(text string) string {
	return f.Colorize(text, ColorDim)
}

// Header outputs a section header with underline.
func (f *Formatter) Header(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.colorEnabled {
		fmt.Fprintf(f.writer, "%s%s%s\n", ColorBold, msg, ColorReset)
	} else {
		fmt.Fprintln(f.writer, msg)
	}
	fmt.Fprintln(f.writer, strings.Repeat("─", len(msg)))
	return nil
}

// SubHeader outputs a sub-header.
func (f *Formatter) SubHeader(msg string) error {
	return f.Println("%s", f.Colorize(msg, ColorCyan))
}

// Item outputs a key-value pair for structured display.
func (f *Formatter) Item(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.colorEnabled {
		_, err := fmt.Fprintf(f.writer, "  %s%s%s: %s\n", ColorDim, key, ColorReset, value)
		return err
	}
	_, err := fmt.Fprintf(f.writer, "  %s: %s\n", key, value)
	return err
}

// BulletItem outputs a bulleted list item.
func (f *Formatter) BulletItem(msg string) error {
	return f.Println("  • %s", msg)
}

// TableColumn defines a column in a table.
type TableColumn struct {
	Header string
	Width  int
	// Right aligns cells to the right edge, for counts.
	Right bool
}

// TableData represents data for table formatting.
type TableData struct {
	Columns []TableColumn
	Rows    [][]string
}

// Table writes data as aligned columns under a dashed rule. Cells past the
// last column are dropped.
func (f *Formatter) Table(data TableData) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data.Columns) == 0 {
		return nil
	}

	widths := make([]int, len(data.Columns))
	for i, col := range data.Columns {
		widths[i] = max(len(col.Header), col.Width)
	}
	for _, row := range data.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], len(cell))
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, 0, len(widths))
		for i := 0; i < len(cells) && i < len(widths); i++ {
			parts = append(parts, padCell(cells[i], widths[i], data.Columns[i].Right))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	headers := make([]string, len(data.Columns))
	rules := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		headers[i] = col.Header
		rules[i] = strings.Repeat("-", widths[i])
	}

	head := line(headers)
	if f.colorEnabled {
		head = string(ColorBold) + head + string(ColorReset)
	}
	if _, err := fmt.Fprintf(f.writer, "%s\n%s\n", head, line(rules)); err != nil {
		return err
	}
	for _, row := range data.Rows {
		if _, err := fmt.Fprintln(f.writer, line(row)); err != nil {
			return err
		}
	}
	return nil
}

// padCell pads text to width.
func padCell(text string, width int, right bool) string {
	if len(text) >= width {
		return text
	}
	pad := strings.Repeat(" ", width-len(text))
	if right {
		return pad + text
	}
	return text + pad
}

// JSON writes data as formatted JSON.
func (f *Formatter) JSON(data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatAuto writes data as JSON in JSON mode and as table otherwise. A nil
// table falls back to JSON.
func (f *Formatter) FormatAuto(data any, table *TableData) error {
	if f.Format() == FormatJSON || table == nil {
		return f.JSON(data)
	}
	return f.Table(*table)
}

// ParseFormat parses a string into a Format type.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", s)
	}
}

// IsColorSupported reports whether stdout is a color-capable terminal.
// NO_COLOR disables color and FORCE_COLOR enables it.
func IsColorSupported() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	stat, err := os.Stdout.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}
