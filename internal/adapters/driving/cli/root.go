// Package cli implements the starsift command-line interface. Commands
// are thin adapters: they validate flags, call the driving ports and
// format output. All services are injected by the composition root via
// SetServices before Execute runs.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driving"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// IndexStore is the slice of the persistence layer the CLI drives
// directly: durability flushes, destructive resets and diagnostics.
type IndexStore interface {
	ClearAllData(ctx context.Context) error
	Flush(ctx context.Context) error
	Path() string
}

// Injected services. Nil checks in each command give a clear error when
// the composition root could not build a dependency.
var (
	syncOrchestrator driving.SyncOrchestrator
	searchService    driving.SearchService
	chatService      driving.ChatService
	configStore      driven.ConfigStore
	embedder         driven.Embedder
	repoStore        driven.RepositoryStore
	chunkStore       driven.ChunkStore
	embeddingStore   driven.EmbeddingStore
	metaStore        driven.MetaStore
	indexStore       IndexStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "starsift",
	Short: "Semantic search over your starred GitHub repositories",
	Long: `starsift builds a local semantic index of the repositories you have
starred on GitHub and lets you search and chat over it.

Everything runs locally: repository metadata and README chunks live in a
SQLite database under ~/.starsift, embeddings come from a local Ollama
server when one is reachable and from a portable built-in model otherwise.

Typical workflow:
  starsift auth                 # store a GitHub personal access token
  starsift sync                 # index your starred repositories
  starsift search "query"       # find repositories by meaning
  starsift ask "question"       # chat over the search results`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose diagnostic output")
}

// Services bundles everything the commands need. Fields left nil disable
// the commands that require them.
type Services struct {
	SyncOrchestrator driving.SyncOrchestrator
	SearchService    driving.SearchService
	ChatService      driving.ChatService
	ConfigStore      driven.ConfigStore
	Embedder         driven.Embedder
	RepoStore        driven.RepositoryStore
	ChunkStore       driven.ChunkStore
	EmbeddingStore   driven.EmbeddingStore
	MetaStore        driven.MetaStore
	IndexStore       IndexStore
}

// SetServices injects the wired services. Called once from the
// composition root before Execute.
func SetServices(s Services) {
	syncOrchestrator = s.SyncOrchestrator
	searchService = s.SearchService
	chatService = s.ChatService
	configStore = s.ConfigStore
	embedder = s.Embedder
	repoStore = s.RepoStore
	chunkStore = s.ChunkStore
	embeddingStore = s.EmbeddingStore
	metaStore = s.MetaStore
	indexStore = s.IndexStore
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
