// Command nexus is the federated search server and CLI.
package main

import (
	"context"
	"os"
	"time"

	"github.com/custodia-labs/nexus/internal/adapters/driving/cli"
	"github.com/custodia-labs/nexus/internal/app"
)

const sessionPurgeInterval = time.Hour

func main() {
	cli.SetLoader(load)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

func load(ctx context.Context, opts cli.LoadOptions) (*cli.Services, func() error, error) {
	a, err := app.New(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		DotEnv:     opts.DotEnv,
	})
	if err != nil {
		return nil, nil, err
	}

	return &cli.Services{
		Settings:  a.Settings,
		Config:    a.SettingsService,
		Auth:      a.Auth,
		Search:    a.Search,
		Documents: a.Documents,
		Users:     a.Users,
		Background: func(ctx context.Context) {
			a.PurgeSessions(ctx, sessionPurgeInterval)
		},
	}, a.Close, nil
}
