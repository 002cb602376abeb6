package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cosmossdk.io/log"
)

const (
	// EnvPrefix is the prefix of environment variables read by withdrawsimd.
	EnvPrefix = "WITHDRAWSIM"

	flagConfig   = "config"
	flagLogLevel = "log-level"
)

// NewRootCmd creates the root command for withdrawsimd. It is called once in
// the main function.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "withdrawsimd",
		Short:         "Replay balance withdraw scheduling traces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(v, cmd)
		},
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "Path to a TOML config file")
	rootCmd.PersistentFlags().String(flagLogLevel, zerolog.InfoLevel.String(), "The logging level (trace|debug|info|warn|error|fatal|panic)")

	rootCmd.AddCommand(
		replayCommand(v),
		configCommand(),
	)
	return rootCmd
}

// initViper binds flags, environment variables and the optional config file.
// Environment variables use the EnvPrefix and replace '.' and '-' with '_'.
func initViper(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}

	if path := v.GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the command logger from the configured level.
func newLogger(v *viper.Viper) (log.Logger, error) {
	level, err := zerolog.ParseLevel(v.GetString(flagLogLevel))
	if err != nil {
		return nil, err
	}
	return log.NewLogger(os.Stderr, log.LevelOption(level)), nil
}
