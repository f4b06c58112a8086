package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
)

// useTestConfig resets the global viper instance to defaults plus settings,
// pointing the store at a fresh libsql file. It returns the store path.
func useTestConfig(t *testing.T, settings map[string]any) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults(viper.GetViper())

	path := filepath.Join(t.TempDir(), "tdog.db")
	viper.Set("store.driver", config.DriverLibSQL)
	viper.Set("store.path", path)
	for key, value := range settings {
		viper.Set(key, value)
	}

	observability.InitCLILogger(config.AppName, observability.ProfileSimple, "error", false)
	return path
}

// runCommand parses args into c's flags and runs it, capturing its output.
func runCommand(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()

	resetFlags(c)
	t.Cleanup(func() { resetFlags(c) })
	require.NoError(t, c.Flags().Parse(args))

	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetContext(context.Background())
	defer c.SetOut(nil)

	err := c.RunE(c, c.Flags().Args())
	return buf.String(), err
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}
