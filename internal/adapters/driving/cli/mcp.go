package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Expose search and the personal knowledge base of one account to an AI
assistant over the Model Context Protocol.

Stdio is used unless --port is given, in which case the streamable HTTP
transport listens on that port.

  nexus mcp serve --user alice
  nexus mcp serve --user alice --port 8090

For a desktop assistant, register the binary as a stdio server:

  {"mcpServers": {"nexus": {"command": "nexus", "args": ["mcp", "serve", "-u", "alice"]}}}`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().StringP("user", "u", "", "user the assistant acts as")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Search == nil {
		return errors.New("search service not configured")
	}

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	username, err := cmd.Flags().GetString("user")
	if err != nil {
		return fmt.Errorf("getting user flag: %w", err)
	}
	user, err := lookupUser(cmd.Context(), username)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:    services.Search,
		Documents: services.Documents,
		UserID:    user.ID,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		return server.RunHTTP(cmd.Context(), fmt.Sprintf(":%d", port))
	}

	return server.Run(cmd.Context())
}
