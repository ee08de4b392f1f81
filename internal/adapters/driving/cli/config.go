package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `View the resolved settings or persist a value to the config file.

Environment variables such as SERPAPI_KEY and JWT_SECRET take precedence
over the file and are never written back.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Persist a setting",
	Long: `Persist a setting using its dotted key, for example:

  nexus config set search.merge_policy interleave
  nexus config set storage.quota_bytes 104857600
  nexus config set server.allowed_origins https://a.example,https://b.example`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Config == nil {
		return errors.New("settings service not configured")
	}
	s, err := services.Config.Get()
	if err != nil {
		return err
	}

	cmd.Println("Server")
	cmd.Printf("  addr:               %s\n", s.Server.Addr)
	cmd.Printf("  allowed origins:    %s\n", strings.Join(s.Server.AllowedOrigins, ", "))
	cmd.Printf("  rate limit:         %.1f rps, burst %d\n", s.Server.RateLimitRPS, s.Server.RateLimitBurst)
	cmd.Println("Auth")
	cmd.Printf("  jwt secret:         %s\n", maskSecret(s.Auth.JWTSecret))
	cmd.Printf("  session ttl:        %s\n", s.Auth.SessionTTL)
	cmd.Println("Storage")
	cmd.Printf("  driver:             %s\n", s.Storage.Driver)
	cmd.Printf("  quota bytes:        %d\n", s.Storage.QuotaBytes)
	cmd.Printf("  unsupported format: %s\n", s.Storage.UnsupportedFormat)
	cmd.Println("Search")
	cmd.Printf("  timeout:            %s (per provider %s)\n", s.Search.Timeout, s.Search.ProviderTimeout)
	cmd.Printf("  limits:             %d per provider, %d from PKB\n", s.Search.ProviderLimit, s.Search.PKBLimit)
	cmd.Printf("  merge policy:       %s\n", s.Search.MergePolicy)
	cmd.Printf("  scorer:             %s\n", s.Search.Scorer)
	cmd.Println("Providers")
	cmd.Printf("  web backend:        %s\n", s.Provider.WebBackend)
	cmd.Printf("  serpapi key:        %s\n", maskSecret(s.Provider.SerpAPIKey))
	cmd.Printf("  google cse key:     %s\n", maskSecret(s.Provider.GoogleCSEKey))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if services == nil || services.Config == nil {
		return errors.New("settings service not configured")
	}
	key, raw := args[0], args[1]

	if err := services.Config.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	if _, err := services.Config.Get(); err != nil {
		return fmt.Errorf("%s=%s leaves the settings invalid: %w", key, raw, err)
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

// parseConfigValue keeps TOML types natural: numbers and booleans are
// stored as such, comma lists as arrays.
func parseConfigValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return raw
}

func maskSecret(v string) string {
	switch {
	case v == "":
		return "(not set)"
	case len(v) <= 8:
		return "****"
	default:
		return v[:4] + "..." + v[len(v)-4:]
	}
}
