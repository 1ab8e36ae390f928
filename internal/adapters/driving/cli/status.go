package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/services"
)

// poolSizer is satisfied by the embedding orchestrator; the port itself
// does not expose pool geometry.
type poolSizer interface {
	ConfiguredPoolSize() int
	ActivePoolSize() int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and backend selection",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if repoStore == nil || chunkStore == nil || embeddingStore == nil {
		return errors.New("index store not configured")
	}

	ctx := context.Background()

	repos, err := repoStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count repositories: %w", err)
	}
	chunks, err := chunkStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	vectors, err := embeddingStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count embeddings: %w", err)
	}

	cmd.Println("Index")
	cmd.Printf("  Repositories: %d\n", repos)
	cmd.Printf("  Chunks:       %d (%d embedded)\n", chunks, vectors)
	if indexStore != nil {
		cmd.Printf("  Database:     %s\n", indexStore.Path())
	}

	if metaStore != nil {
		lastSync, err := metaStore.Get(ctx, services.MetaLastSyncAt)
		switch {
		case err == nil:
			cmd.Printf("  Last sync:    %s\n", lastSync)
		case errors.Is(err, domain.ErrNotFound):
			cmd.Println("  Last sync:    never")
		default:
			return fmt.Errorf("read sync metadata: %w", err)
		}
	}

	if embedder != nil {
		info := embedder.RuntimeInfo()
		cmd.Println()
		cmd.Println("Embedding")
		cmd.Printf("  Backend:    %s", info.SelectedBackend)
		if info.FallbackReason != "" {
			cmd.Printf(" (wanted %s: %s)", info.PreferredBackend, info.FallbackReason)
		}
		cmd.Println()
		cmd.Printf("  Model:      %s\n", info.Model)
		cmd.Printf("  Dimensions: %d\n", info.Dimensions)
		if sizer, ok := embedder.(poolSizer); ok {
			cmd.Printf("  Workers:    %d of %d\n", sizer.ActivePoolSize(), sizer.ConfiguredPoolSize())
		}
	}

	return nil
}
