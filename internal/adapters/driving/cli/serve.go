package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus/internal/adapters/driving/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on the configured address (default :8080).

The server stops gracefully on SIGINT or SIGTERM, letting in-flight
requests finish within server.shutdown_timeout.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}

// newServer is replaced in tests.
var newServer = func(s *Services, addr string) runner {
	settings := s.Settings.Server
	if addr != "" {
		settings.Addr = addr
	}
	return api.NewServer(settings, api.Services{
		Auth:      s.Auth,
		Search:    s.Search,
		Documents: s.Documents,
		Users:     s.Users,
	})
}

type runner interface {
	Run(ctx context.Context) error
}

func runServe(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Auth == nil || services.Search == nil ||
		services.Documents == nil || services.Users == nil {
		return errors.New("api services not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if services.Background != nil {
		go services.Background(ctx)
	}

	return newServer(services, serveAddr).Run(ctx)
}
