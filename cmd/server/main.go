package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/config"
	"github.com/diewo77/medcrm/internal/logging"
)

// cli carries what PersistentPreRunE prepares for the subcommands.
type cli struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "medcrm",
		Short: "CRM for a medical-device distributor",
		Long: `medcrm tracks customers, the sales pipeline, proposals and the
product catalog, and serves them as a JSON API.

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load environment variables from .env file
			_ = godotenv.Load()

			c.cfg = config.Load()
			if cmd.Flags().Changed("driver") {
				driver, _ := cmd.Flags().GetString("driver")
				c.cfg.Database.Driver = strings.ToLower(driver)
			}
			if err := c.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log, err := logging.New(c.cfg.App.Dev)
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().String("driver", "", "database driver override (postgres or sqlite)")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
