package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"twaler/pkg/auth"
	"twaler/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file under the XDG config directory
  - TWALER_API_USERNAME / TWALER_API_PASSWORD environment variables (read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a username and password",
	Example: `  # Interactive login
  twaler auth login

  # Login with username
  twaler auth login crawler1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Fprint(out, "Username: ")
		if username, err = readLine(reader); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Fprintf(out, "Account '%s' already exists. Update it? (y/N): ", username)
		answer, _ := readLine(reader)
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	fmt.Fprint(out, "Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	account := &auth.Account{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Account saved: " + username)
	ui.PrintDim("Crawl with it using: twaler crawl <seedfile> --auth --account " + username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'twaler auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		ui.PrintPanel(ui.RenderRows([]ui.Row{
			{Label: "Username", Value: sanitized.Username},
			{Label: "Password", Value: sanitized.Password},
			{Label: "Modified", Value: sanitized.LastModified.Format(time.DateTime)},
		}))
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise
func readPassword(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}
	return readLine(r)
}
