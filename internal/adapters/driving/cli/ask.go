package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

var (
	askSession     string
	askShowSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your starred repositories",
	Long: `Retrieves the most relevant README chunks for the question and asks the
local chat model to answer using them. Both turns are recorded in a chat
session; pass --session to continue an earlier conversation.

Requires a running Ollama server for answer generation. Without one, the
retrieved snippets are shown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "chat session ID to continue")
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "list the snippets the answer is grounded in")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if chatService == nil {
		return errors.New("chat service not configured")
	}

	ctx := context.Background()

	sessionID := askSession
	if sessionID == "" {
		session, err := chatService.NewSession(ctx, question)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = session.ID
	}

	answer, sources, err := chatService.Ask(ctx, sessionID, question)
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			cmd.Println("No chat model is reachable; showing the matching repositories instead.")
			cmd.Println()
			return outputSearchTable(cmd, sources)
		}
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer)

	if askShowSources {
		cmd.Println()
		cmd.Println("Sources:")
		for i := range sources {
			cmd.Printf("  [%d] %s (%.3f)\n", i+1, sources[i].RepoFullName, sources[i].Score)
		}
	}

	cmd.Println()
	cmd.Printf("Session: %s (continue with --session %s)\n", sessionID, sessionID)

	return nil
}
