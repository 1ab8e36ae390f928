package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage chat sessions",
	Long:  `List past chat sessions and replay their transcripts.`,
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runChatList,
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatHistory,
}

func init() {
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatHistoryCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChatList(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	sessions, err := chatService.Sessions(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		cmd.Println("No chat sessions yet. Start one with 'starsift ask'.")
		return nil
	}

	for i := range sessions {
		title := sessions[i].Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("%s  %s  %s\n",
			sessions[i].ID,
			sessions[i].CreatedAt.Format("2006-01-02 15:04"),
			title,
		)
	}
	return nil
}

func runChatHistory(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	messages, err := chatService.History(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if len(messages) == 0 {
		cmd.Println("No messages in this session.")
		return nil
	}

	for i := range messages {
		cmd.Printf("[%s] %s\n", messages[i].Role, messages[i].Content)
		cmd.Println()
	}
	return nil
}
