// Command starsift indexes the GitHub repositories you have starred and
// answers semantic queries over them, entirely on the local machine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/config/file"
	backend "github.com/starsift-labs/starsift-cli/internal/adapters/driven/embedding"
	embedollama "github.com/starsift-labs/starsift-cli/internal/adapters/driven/embedding/ollama"
	llmollama "github.com/starsift-labs/starsift-cli/internal/adapters/driven/llm/ollama"
	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/storage/sqlite"
	"github.com/starsift-labs/starsift-cli/internal/adapters/driving/cli"
	"github.com/starsift-labs/starsift-cli/internal/connectors/github"
	"github.com/starsift-labs/starsift-cli/internal/core/services"
	"github.com/starsift-labs/starsift-cli/internal/embedding"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore("", sqlite.Options{
		CheckpointEvery: configStore.GetInt(file.KeyCheckpointEvery),
		CheckpointMs:    configStore.GetInt(file.KeyCheckpointMs),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	// Checkpoint pending WAL writes before an interrupt kills the
	// process; Close performs the same flush on the normal path.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		if err := store.Flush(context.Background()); err != nil {
			logger.Warn("Flush on shutdown: %v", err)
		}
		_ = store.Close()
		os.Exit(1)
	}()

	selector := backend.NewSelector(backend.SelectorConfig{
		Ollama: embedollama.Config{
			BaseURL: configStore.GetString(file.KeyEmbeddingBaseURL),
			Model:   configStore.GetString(file.KeyEmbeddingModel),
		},
		PreferredBackend: configStore.GetString(file.KeyEmbeddingBackend),
	})

	embedder, err := embedding.New(embedding.Config{
		PoolSize:       configStore.GetInt(file.KeyEmbeddingPoolSize),
		MicroBatchSize: configStore.GetInt(file.KeyEmbeddingMicroBatch),
		MaxQueueSize:   configStore.GetInt(file.KeyEmbeddingMaxQueue),
		ErrorThreshold: configStore.GetInt(file.KeyEmbeddingErrorThreshold),
	}, selector.NewWorker)
	if err != nil {
		return err
	}
	defer embedder.Close()

	source := github.NewLazySource(func() string {
		return configStore.GetString(file.KeyGitHubToken)
	})
	defer source.Close()

	answerService := llmollama.NewAnswerService(llmollama.Config{
		BaseURL: configStore.GetString(file.KeyLLMBaseURL),
		Model:   configStore.GetString(file.KeyLLMModel),
	})
	defer answerService.Close()

	searchService := services.NewSearchService(embedder, store.EmbeddingStore())
	syncOrchestrator := services.NewSyncOrchestrator(
		source,
		store.RepositoryStore(),
		store.ChunkStore(),
		store.EmbeddingStore(),
		store.MetaStore(),
		embedder,
		store,
	)
	chatService := services.NewChatService(searchService, store.ChatStore(), answerService)

	cli.SetServices(cli.Services{
		SyncOrchestrator: syncOrchestrator,
		SearchService:    searchService,
		ChatService:      chatService,
		ConfigStore:      configStore,
		Embedder:         embedder,
		RepoStore:        store.RepositoryStore(),
		ChunkStore:       store.ChunkStore(),
		EmbeddingStore:   store.EmbeddingStore(),
		MetaStore:        store.MetaStore(),
		IndexStore:       store,
	})

	return cli.Execute()
}
