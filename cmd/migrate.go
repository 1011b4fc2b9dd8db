package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"worker-minutes/config"
	server2 "worker-minutes/server"
)

func migrate(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the job table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(config)
			repo, err := server2.OpenRepository(config)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Migrate(ctx); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Str("driver", config.Store.Driver).Msg("migration complete")
			return nil
		},
	}
}
