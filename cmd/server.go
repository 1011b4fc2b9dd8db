package cmd

import (
	"github.com/spf13/cobra"
	"worker-minutes/config"
	server2 "worker-minutes/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and job consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}
