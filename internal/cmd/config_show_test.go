package cmd

import (
	"encoding/json"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/require"
)

func TestConfigShowRedactsSecrets(t *testing.T) {
	useTestConfig(t, map[string]any{
		"stripe.secret_key":     "sk_test_1234567890",
		"download.on_exhausted": "skip",
	})

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "yaml",
			check: func(t *testing.T, out string) {
				require.Contains(t, out, "secret_key: sk_test_****")
				require.Contains(t, out, "on_exhausted: skip")
				require.NotContains(t, out, "1234567890")
			},
		},
		{
			name: "json",
			args: []string{"--json"},
			check: func(t *testing.T, out string) {
				var payload map[string]map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &payload))
				require.Equal(t, "sk_test_****", payload["Stripe"]["SecretKey"])
				require.Equal(t, "libsql", payload["Store"]["Driver"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, configShowCmd, tt.args...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestConfigShowRejectsInvalidConfig(t *testing.T) {
	useTestConfig(t, map[string]any{"download.concurrency": 0})

	_, err := runCommand(t, configShowCmd)
	require.Error(t, err)
	require.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
	require.Contains(t, err.Error(), "invalid configuration")
}
