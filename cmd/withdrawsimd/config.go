package main

import (
	"text/template"

	"github.com/spf13/cobra"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched"
)

// appConfig is the data the config template is rendered with.
type appConfig struct {
	WithdrawScheduler withdrawsched.Config
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpl, err := template.New("config").Parse(withdrawsched.DefaultConfigTemplate)
			if err != nil {
				return err
			}
			return tmpl.Execute(cmd.OutOrStdout(), appConfig{WithdrawScheduler: withdrawsched.DefaultConfig()})
		},
	}
}
