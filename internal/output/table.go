package output

import "strings"

// TableFormatter renders reports as rounded ASCII tables.
type TableFormatter struct{}

func (f *TableFormatter) Format(report Report) (string, error) {
	if len(report.Rows) == 0 && len(report.Header) == 0 {
		return "", nil
	}
	return newWriter(report).Render(), nil
}

// MarkdownFormatter renders reports as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(report Report) (string, error) {
	if len(report.Rows) == 0 && len(report.Header) == 0 {
		return "", nil
	}

	var sb strings.Builder
	if report.Title != "" {
		sb.WriteString("## " + escapeMarkdownCell(report.Title) + "\n\n")
	}
	report.Title = ""
	sb.WriteString(newWriter(report).RenderMarkdown())
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
