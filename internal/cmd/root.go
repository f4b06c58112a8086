package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tabledog/tdog-cli-sub000/internal/config"
	"github.com/tabledog/tdog-cli-sub000/internal/observability"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Download a Stripe account into a SQL database",
	Long: `tdog downloads every object of a Stripe account into libsql, MySQL or
Postgres. Requests are retried on network errors, 5xx responses and 429 rate
limits; every physical attempt is recorded so rate limiting can be inspected
after the fact.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/tdog/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if dir := config.DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	readErr := v.ReadInConfig()

	// The file may change the level, so the logger is built after reading it.
	observability.InitCLILogger(config.AppName, v.GetString("logging.profile"), v.GetString("logging.level"), verbose)

	if readErr == nil {
		observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
		return
	}

	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(readErr, &notFound):
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	case cfgFile != "":
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", readErr)
	default:
		observability.CLILogger.Warn("Error reading config file", zap.Error(readErr))
	}
}

// loadConfig decodes and validates the layered configuration.
func loadConfig(ctx context.Context, overrides map[string]any) (*config.Config, error) {
	cfg, err := config.Load(ctx, viper.GetViper(), overrides)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagOverrides maps changed flags to config keys.
func flagOverrides(cmd *cobra.Command, keys map[string]string) map[string]any {
	overrides := map[string]any{}
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "stringSlice":
			values, _ := cmd.Flags().GetStringSlice(flag)
			overrides[key] = values
		case "bool":
			value, _ := cmd.Flags().GetBool(flag)
			overrides[key] = value
		case "int":
			value, _ := cmd.Flags().GetInt(flag)
			overrides[key] = value
		case "float64":
			value, _ := cmd.Flags().GetFloat64(flag)
			overrides[key] = value
		default:
			overrides[key] = strings.TrimSpace(f.Value.String())
		}
	}
	return overrides
}
