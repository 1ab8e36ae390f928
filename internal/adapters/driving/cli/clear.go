package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all indexed data",
	Long: `Deletes every repository, chunk, embedding and chat session from the
local index. Configuration (including the stored GitHub token) is kept.
The next 'starsift sync' rebuilds the index from scratch.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, _ []string) error {
	if indexStore == nil {
		return errors.New("index store not configured")
	}

	if !clearYes {
		cmd.Print("Delete all indexed data? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(input)); answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := indexStore.ClearAllData(context.Background()); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	cmd.Println("Index cleared.")
	return nil
}
