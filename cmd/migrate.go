package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cgu-connect/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.Migrate(cmd.Context(), database); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.Store.Driver).Msg("schema up to date")
		return nil
	},
}
