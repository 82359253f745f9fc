// Package output renders engine results for the command line.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format is a command output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
	FormatIDs   Format = "ids"
)

// AllClear is printed when a listing has nothing to report
const AllClear = "No stale content found. Your content is fresh!"

const (
	defaultWidth  = 80
	maxTitleWidth = 40
	minTitleWidth = 15
)

// Console colors
var (
	StaleColor   = color.New(color.FgRed, color.Bold)
	AgingColor   = color.New(color.FgYellow)
	FreshColor   = color.New(color.FgGreen)
	SuccessColor = color.New(color.FgGreen, color.Bold)
	WarningColor = color.New(color.FgYellow, color.Bold)
)

// ParseFormat validates a format name against the formats a command accepts
func ParseFormat(s string, allowed ...Format) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		f = FormatTable
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("invalid format %q (expected one of: %s)", s, strings.Join(names, ", "))
}

// Printer writes results in one format. Data goes to Out, status lines to Err.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Format Format
	Colors bool
	Width  int // 0 detects the terminal width
}

// NewPrinter creates a printer on stdout/stderr. Colors are enabled only for
// terminals.
func NewPrinter(format Format) *Printer {
	return &Printer{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Format: format,
		Colors: !color.NoColor && term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Success prints a success status line
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.Colors {
		msg = SuccessColor.Sprint("Success: ") + msg
	} else {
		msg = "Success: " + msg
	}
	fmt.Fprintln(p.statusWriter(), msg)
}

// Warning prints a warning status line
func (p *Printer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.Colors {
		msg = WarningColor.Sprint("Warning: ") + msg
	} else {
		msg = "Warning: " + msg
	}
	fmt.Fprintln(p.Err, msg)
}

// statusWriter keeps machine-readable formats free of status lines
func (p *Printer) statusWriter() io.Writer {
	if p.Format == FormatTable || p.Format == "" {
		return p.Out
	}
	return p.Err
}

func (p *Printer) width() int {
	if p.Width > 0 {
		return p.Width
	}
	if f, ok := p.Out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// titleWidth is the room left for titles next to the fixed listing columns
func (p *Printer) titleWidth() int {
	available := p.width() - 60
	if available < minTitleWidth {
		return minTitleWidth
	}
	if available > maxTitleWidth {
		return maxTitleWidth
	}
	return available
}

func (p *Printer) colorize(c *color.Color, s string) string {
	if !p.Colors {
		return s
	}
	return c.Sprint(s)
}

// structured writes v as JSON or YAML
func (p *Printer) structured(v any) error {
	switch p.Format {
	case FormatJSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q is not structured", p.Format)
}

// rows writes a header and data rows as a table or CSV
func (p *Printer) rows(headers []string, data [][]string, align tw.Align) error {
	if p.Format == FormatCSV {
		w := csv.NewWriter(p.Out)
		if err := w.Write(headers); err != nil {
			return err
		}
		if err := w.WriteAll(data); err != nil {
			return err
		}
		return w.Error()
	}

	table := tablewriter.NewWriter(p.Out)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
