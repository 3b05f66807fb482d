package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/conversation"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired conversation turns and working memory now",
	Long: `Purge runs the retention sweep immediately instead of waiting for
the nightly schedule. Expired rows are already invisible to reads; this
only reclaims space.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := conversation.NewStore(cfg.ConversationDBPath(),
		time.Duration(cfg.RetentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer store.Close()

	removed, err := store.PurgeExpired(cmd.Context())
	if err != nil {
		return fmt.Errorf("purging: %w", err)
	}
	fmt.Printf("Removed %d expired rows\n", removed)
	return nil
}
