package cli

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and optionally seed a catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load("migrate")
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := seedCatalog(cmd.Context(), store, seedFile, log); err != nil {
				return err
			}
			log.Info("migrate_completed", "Schema is up to date", "", map[string]interface{}{"storage": cfg.Storage.Driver})
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML catalog to upsert after migrating")
	return cmd
}
