package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed repositories by meaning",
	Long: `Embeds the query and ranks indexed README chunks by cosine similarity.
Results show the owning repository; run 'starsift sync' first to build
the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := context.Background()

	results, err := searchService.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found. Run 'starsift sync' to index your starred repositories.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("[%d] %s (%.3f)\n", i+1, results[i].RepoFullName, results[i].Score)
		cmd.Printf("    %s\n", results[i].RepoURL)
		snippet := snippetOf(results[i].Content, 160)
		if snippet != "" {
			cmd.Printf("    %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}

// snippetOf collapses whitespace and truncates content for one-line
// display.
func snippetOf(content string, max int) string {
	snippet := strings.Join(strings.Fields(content), " ")
	if len(snippet) > max {
		snippet = snippet[:max] + "..."
	}
	return snippet
}
