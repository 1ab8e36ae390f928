package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the local index with your starred repositories",
	Long: `Fetches the list of repositories you have starred on GitHub, compares
it with the local index, and re-fetches, re-chunks and re-embeds only the
repositories that changed. Repositories you have unstarred are removed.

Per-repository failures do not abort the run; they are counted in the
summary.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	ctx := context.Background()

	cmd.Println("Synchronising starred repositories...")

	summary, err := syncOrchestrator.Sync(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			return fmt.Errorf("sync failed: %w (run 'starsift auth' to store a GitHub token)", err)
		}
		if errors.Is(err, domain.ErrRateLimited) {
			return fmt.Errorf("sync failed: %w (wait for the GitHub rate limit to reset)", err)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Println()
	cmd.Printf("Starred repositories: %d\n", summary.Remote)
	cmd.Printf("  Updated:   %d\n", summary.Updated)
	cmd.Printf("  Unchanged: %d\n", summary.Unchanged)
	cmd.Printf("  Removed:   %d\n", summary.Removed)
	cmd.Printf("  Chunks embedded: %d\n", summary.ChunksEmbedded)
	if summary.Errors > 0 {
		cmd.Printf("  Errors:    %d (rerun 'starsift sync' to retry)\n", summary.Errors)
	}

	return nil
}
