package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/crm"
)

var seedTenant string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo CRM data for a tenant",
	Long: `Seed inserts a small demo dataset (customers, invoices, payments,
products, tasks, time entries, transactions) for one tenant so the chat
assistant has data to answer about. Running it twice is a no-op.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedTenant, "tenant", "default", "tenant id to seed")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store, err := crm.NewStore(cfg.CRMDBPath())
	if err != nil {
		return fmt.Errorf("opening CRM store: %w", err)
	}
	defer store.Close()

	if err := store.Seed(cmd.Context(), seedTenant); err != nil {
		return fmt.Errorf("seeding tenant %s: %w", seedTenant, err)
	}

	log.Info().Str("tenant_id", seedTenant).Str("db", cfg.CRMDBPath()).Msg("seed_completed")
	fmt.Printf("Seeded demo data for tenant %q in %s\n", seedTenant, cfg.CRMDBPath())
	return nil
}
