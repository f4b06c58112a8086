package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Report is a tabular view of a value. Table and Markdown render the rows;
// JSON renders Value.
type Report struct {
	Title  string
	Header table.Row
	Rows   []table.Row
	Footer table.Row
	Value  any
}

// Formatter renders reports.
type Formatter interface {
	Format(report Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render formats each report and joins them with a blank line.
func Render(format Format, reports ...Report) (string, error) {
	formatter := NewFormatter(format)
	rendered := make([]string, 0, len(reports))
	for _, report := range reports {
		value, err := formatter.Format(report)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		rendered = append(rendered, value)
	}
	return strings.Join(rendered, "\n\n"), nil
}

func newWriter(report Report) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if report.Title != "" {
		t.SetTitle(report.Title)
	}
	if len(report.Header) > 0 {
		t.AppendHeader(report.Header)
	}
	t.AppendRows(report.Rows)
	if len(report.Footer) > 0 {
		t.AppendFooter(report.Footer)
	}
	return t
}
