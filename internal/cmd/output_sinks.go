package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tabledog/tdog-cli-sub000/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

// outputFlags are the --output-format, --out and --out-dir flags shared by
// every reporting command.
type outputFlags struct {
	format string
	out    string
	outDir string
}

func (f *outputFlags) register(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVar(&f.format, "output-format", string(output.FormatTable), "Output format: "+formats)
	cmd.Flags().StringVar(&f.out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write output to a directory")
}

// open validates the flags and opens the sink. stdout receives the output
// when no file is named; name is the file stem used with --out-dir.
func (f *outputFlags) open(stdout io.Writer, name string, allowed ...output.Format) (output.Format, *outputSink, error) {
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return "", nil, err
	}
	if len(allowed) > 0 && !slices.Contains(allowed, format) {
		return "", nil, fmt.Errorf("unsupported output format: %s", format)
	}

	outPath := strings.TrimSpace(f.out)
	outDir := strings.TrimSpace(f.outDir)
	if outPath != "" && outDir != "" {
		return "", nil, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	if outDir != "" {
		dir, err := ensureOutDir(outDir)
		if err != nil {
			return "", nil, err
		}
		outPath = filepath.Join(dir, fmt.Sprintf("%s.%s", sanitizeFilename(name), outputExtension(format)))
	}

	sink, err := openSink(outPath, stdout)
	if err != nil {
		return "", nil, err
	}
	return format, sink, nil
}

// writeReports renders reports into the sink.
func writeReports(sink *outputSink, format output.Format, reports ...output.Report) error {
	rendered, err := output.Render(format, reports...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}

func openSink(path string, stdout io.Writer) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return &outputSink{writer: stdout, close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

func ensureOutDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", nil
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean, nil
	}
	return abs, nil
}
