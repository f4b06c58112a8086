package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

// Logging profiles accepted in configuration.
const (
	ProfileSimple     = "simple"
	ProfileStructured = "structured"
)

var (
	// CLILogger is used by commands and the download pipeline
	CLILogger *logging.Logger

	// ServerLogger is used by the status server (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger. The simple profile writes
// human-readable lines; the structured profile emits JSON.
func InitCLILogger(serviceName, profile, level string, verbose bool) {
	if verbose {
		level = "debug"
	}

	var (
		logger *logging.Logger
		err    error
	)
	switch {
	case strings.EqualFold(profile, ProfileStructured):
		logger, err = newStructuredLogger(serviceName, level, "cli")
	case parseLogLevel(level) == "WARN" || parseLogLevel(level) == "ERROR":
		logger, err = newSimpleLogger(serviceName, level)
	default:
		logger, err = logging.NewCLI(serviceName)
		if err == nil && parseLogLevel(level) != "INFO" {
			logger.SetLevel(logging.DEBUG)
		}
	}
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	CLILogger = logger
}

// InitServerLogger initializes the status server logger with request
// correlation enabled.
func InitServerLogger(serviceName string, logLevel string) {
	logger, err := newStructuredLogger(serviceName, logLevel, "status")
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

func newStructuredLogger(serviceName, level, component string) (*logging.Logger, error) {
	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(level),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: map[string]any{"component": component},
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "json",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
		EnableCaller: true,
	})
}

func newSimpleLogger(serviceName, level string) (*logging.Logger, error) {
	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileSimple,
		DefaultLevel: parseLogLevel(level),
		Service:      serviceName,
		Environment:  "cli",
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "console",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
	})
}

// parseLogLevel converts a config log level to a logging severity string
func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// Logger initialization fails before any logger exists to report it.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
