package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"go.uber.org/zap"
)

func TestInitCLILogger(t *testing.T) {
	cases := []struct {
		name    string
		profile string
		level   string
		verbose bool
	}{
		{name: "simple info", profile: ProfileSimple, level: "info"},
		{name: "simple verbose", profile: ProfileSimple, level: "info", verbose: true},
		{name: "simple warn", profile: ProfileSimple, level: "warn"},
		{name: "structured debug", profile: ProfileStructured, level: "debug"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			CLILogger = nil
			InitCLILogger("tdog-test", tc.profile, tc.level, tc.verbose)

			if CLILogger == nil {
				t.Fatal("CLI logger should not be nil after initialization")
			}
			CLILogger.Info("Test CLI log message", zap.String("case", tc.name))
			CLILogger.Debug("Debug message", zap.String("case", tc.name))
		})
	}
}

func TestInitServerLogger(t *testing.T) {
	InitServerLogger("tdog-test", "info")

	if ServerLogger == nil {
		t.Fatal("Server logger should not be nil after initialization")
	}
	ServerLogger.Info("Test structured log message",
		zap.String("endpoint", "/stats"),
		zap.Int("status", 200))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	if version.Gofulmen == "" || version.Crucible == "" {
		t.Fatalf("expected gofulmen and crucible versions, got %+v", version)
	}
}
