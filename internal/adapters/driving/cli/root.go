// Package cli provides the nexus command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
	"github.com/custodia-labs/nexus/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// ConfigService reads and writes persisted settings.
type ConfigService interface {
	Get() (domain.Settings, error)
	Set(key string, value any) error
}

// Services are the ports the commands operate on.
type Services struct {
	Settings  domain.Settings
	Config    ConfigService
	Auth      driving.AuthService
	Search    driving.SearchService
	Documents driving.DocumentService
	Users     driving.UserService

	// Background runs housekeeping for long-lived commands until ctx ends.
	Background func(ctx context.Context)
}

// LoadOptions are the global flags handed to the Loader.
type LoadOptions struct {
	ConfigPath string
	DotEnv     []string
}

// Loader assembles services after flags are parsed. The returned func
// releases them.
type Loader func(ctx context.Context, opts LoadOptions) (*Services, func() error, error)

var (
	services *Services
	loader   Loader
	release  func() error
)

// Global flags.
var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

// skipServices marks commands that run without loading services.
const skipServices = "skip-services"

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Federated search across the web and your own documents",
	Long: `Nexus fans one query out to web search, Wikipedia, DuckDuckGo and a
personal knowledge base built from your uploads, and returns a single
merged, source-tagged result list.

Run "nexus serve" to start the HTTP API.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.nexus/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")
}

// SetLoader registers the function that builds services on demand.
func SetLoader(l Loader) {
	loader = l
}

// SetServices injects ready-made services, bypassing the Loader.
func SetServices(s *Services) {
	services = s
}

// Execute runs the root command and releases whatever the Loader built.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := teardown(); closeErr != nil {
		logger.Warn("Closing services: %v", closeErr)
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if verbose {
		logger.SetVerbose(true)
	}
	if jsonLogs {
		logger.SetJSON(true)
	}

	if cmd.Annotations[skipServices] == "true" || services != nil || loader == nil {
		return nil
	}

	s, closeFn, err := loader(cmd.Context(), LoadOptions{
		ConfigPath: configPath,
		DotEnv:     []string{".env"},
	})
	if err != nil {
		return fmt.Errorf("starting nexus: %w", err)
	}
	services = s
	release = closeFn
	return nil
}

func teardown() error {
	if release == nil {
		return nil
	}
	err := release()
	release = nil
	services = nil
	return err
}
