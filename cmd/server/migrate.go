package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diewo77/medcrm/internal/db"
	"github.com/diewo77/medcrm/internal/repository"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbConn, err := db.Open(c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			if err := db.Migrate(dbConn); err != nil {
				return err
			}
			c.log.Info("migrations completed successfully")
			fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
			return nil
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	var fixtures string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate, then load seed fixtures and exit",
		Long: `Loads the embedded demo fixtures, or a YAML file given with --file.
Records whose ID already exists are left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data []byte
			if fixtures != "" {
				b, err := os.ReadFile(fixtures)
				if err != nil {
					return fmt.Errorf("read fixtures: %w", err)
				}
				data = b
			}
			f, err := db.LoadFixtures(data)
			if err != nil {
				return err
			}

			dbConn, err := db.Open(c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			if err := db.Migrate(dbConn); err != nil {
				return err
			}
			rep, err := db.SeedFixtures(cmd.Context(), repository.NewGormStore(dbConn), f, c.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers, %d products, %d deals, %d proposals\n",
				rep.Customers, rep.Products, rep.Deals, rep.Proposals)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fixtures, "file", "f", "", "YAML fixtures file (defaults to the embedded demo data)")
	return cmd
}
