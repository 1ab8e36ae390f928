package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/config/file"
)

var authToken string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store a GitHub personal access token",
	Long: `Stores the GitHub personal access token used to list your starred
repositories. The token needs no scopes beyond public repository read
access (add 'repo' scope to index private starred repositories).

Run without flags for an interactive prompt (input is not echoed), or
pass --token for scripted setup. The token is written to the local
config file with owner-only permissions.

Examples:
  starsift auth                      # interactive prompt
  starsift auth --token ghp_xxx      # non-interactive
  starsift auth status               # show whether a token is stored`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a token is stored",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.Flags().StringVar(&authToken, "token", "", "GitHub personal access token")
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	token := strings.TrimSpace(authToken)
	if token == "" {
		cmd.Print("GitHub personal access token: ")
		token = readSecret()
		cmd.Println()
	}

	if token == "" {
		return errors.New("no token provided")
	}

	if err := configStore.Set(file.KeyGitHubToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	cmd.Println("Token stored. Run 'starsift sync' to index your starred repositories.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	token := configStore.GetString(file.KeyGitHubToken)
	if token == "" {
		cmd.Println("No token stored. Run 'starsift auth' to add one.")
		return nil
	}

	cmd.Printf("Token stored: %s\n", maskToken(token))
	return nil
}

// readSecret reads a line without echoing when stdin is a terminal.
func readSecret() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
