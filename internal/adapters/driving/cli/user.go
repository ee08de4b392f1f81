package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create an account",
	Long: `Create an account. The password is read from the terminal without
echo, or from the first line of stdin when it is not a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userUsageCmd = &cobra.Command{
	Use:   "usage [username]",
	Short: "Show storage usage",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserUsage,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userUsageCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	if services == nil || services.Auth == nil {
		return errors.New("auth service not configured")
	}

	cmd.Print("Password: ")
	password, err := readPassword(cmd.InOrStdin())
	cmd.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	user, err := services.Auth.Register(cmd.Context(), args[0], password)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	cmd.Printf("Created user %s (%s)\n", user.Username, user.ID)
	return nil
}

func runUserUsage(cmd *cobra.Command, args []string) error {
	if services == nil || services.Users == nil {
		return errors.New("user service not configured")
	}

	user, err := lookupUser(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	usage, err := services.Users.Usage(cmd.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("reading usage: %w", err)
	}

	cmd.Printf("User:      %s\n", usage.Username)
	cmd.Printf("Documents: %d\n", usage.DocumentCount)
	cmd.Printf("Used:      %s of %s\n",
		humanize.IBytes(uint64(usage.TotalStorageBytes)), humanize.IBytes(uint64(usage.QuotaBytes)))
	cmd.Printf("Remaining: %s\n", humanize.IBytes(uint64(usage.Remaining())))
	return nil
}

// lookupUser resolves the --user flag shared by user-scoped commands.
func lookupUser(ctx context.Context, username string) (*domain.User, error) {
	if services == nil || services.Users == nil {
		return nil, errors.New("user service not configured")
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("--user is required")
	}
	user, err := services.Users.Lookup(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no such user %q", username)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
