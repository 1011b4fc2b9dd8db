package cmd

import (
	"github.com/spf13/cobra"
	"worker-minutes/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "worker-minutes",
		Short:        "meeting minutes worker",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(migrate(config))
	return rootCmd
}
