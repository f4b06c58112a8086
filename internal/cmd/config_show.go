package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/tabledog/tdog-cli-sub000/internal/errors"
)

var configShowJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context(), nil)
		if err != nil {
			return apperrors.WrapConfigInvalid(cmd.Context(), err, "invalid configuration")
		}
		redacted := cfg.Redacted()

		w := cmd.OutOrStdout()
		if configShowJSON {
			payload, err := json.MarshalIndent(redacted, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(payload))
			return err
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(w, "# %s\n", used)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(redacted); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "Print JSON instead of YAML")
}
