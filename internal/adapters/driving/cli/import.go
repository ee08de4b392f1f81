package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/nexus/internal/connectors/filesystem"
	"github.com/custodia-labs/nexus/internal/core/domain"
)

var (
	importUser  string
	importWatch bool
)

var importCmd = &cobra.Command{
	Use:   "import [path...]",
	Short: "Add local files to a user's knowledge base",
	Long: `Walks each path and uploads every visible file into the user's personal
knowledge base, subject to the storage quota. Hidden files and
directories are skipped.

With --watch, nexus keeps running and imports files as they are created
or changed. Files deleted while watching are removed again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "owner of the imported documents")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "keep watching for changes")
	rootCmd.AddCommand(importCmd)
}

// importer uploads files and remembers which document each path became.
type importer struct {
	cmd     *cobra.Command
	userID  string
	mu      sync.Mutex
	byPath  map[string]string
	stored  int
	skipped int
}

func (im *importer) put(ctx context.Context, path string, upload domain.Upload) error {
	doc, err := services.Documents.Put(ctx, upload)
	var quota *domain.QuotaExceededError
	switch {
	case errors.As(err, &quota), errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrValidation):
		im.cmd.PrintErrf("  skipped %s: %v\n", path, err)
		im.mu.Lock()
		im.skipped++
		im.mu.Unlock()
		return nil
	case err != nil:
		return fmt.Errorf("importing %s: %w", path, err)
	}

	im.mu.Lock()
	previous, seen := im.byPath[path]
	im.byPath[path] = doc.ID
	if !seen {
		im.stored++
	}
	im.mu.Unlock()

	// An edited file is a new document; drop the version it replaces.
	if seen && previous != doc.ID {
		if err := services.Documents.Delete(ctx, im.userID, previous); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("replacing %s: %w", path, err)
		}
	}

	status := "indexed"
	if !doc.Indexed {
		status = "stored, not searchable"
	}
	im.cmd.Printf("  %s -> %s (%s)\n", path, doc.ID, status)
	return nil
}

func (im *importer) remove(ctx context.Context, path string) error {
	im.mu.Lock()
	id, ok := im.byPath[path]
	delete(im.byPath, path)
	im.mu.Unlock()
	if !ok {
		return nil
	}
	if err := services.Documents.Delete(ctx, im.userID, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	im.cmd.Printf("  removed %s (%s)\n", path, id)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return errors.New("document service not configured")
	}

	user, err := lookupUser(cmd.Context(), importUser)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quota := services.Settings.Storage.QuotaBytes
	im := &importer{cmd: cmd, userID: user.ID, byPath: make(map[string]string)}

	connectors := make([]*filesystem.Connector, 0, len(args))
	for _, path := range args {
		c := filesystem.New(user.ID, path, filesystem.WithMaxFileSize(quota))
		connectors = append(connectors, c)

		cmd.Printf("Importing %s\n", path)
		err := c.Walk(ctx, func(path string, upload domain.Upload) error {
			return im.put(ctx, path, upload)
		})
		if err != nil {
			return err
		}
	}
	cmd.Printf("Imported %d files, skipped %d\n", im.stored, im.skipped)

	if !importWatch {
		return nil
	}
	return watchImports(ctx, im, connectors)
}

func watchImports(ctx context.Context, im *importer, connectors []*filesystem.Connector) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(connectors))

	for _, c := range connectors {
		changes, err := c.Watch(ctx)
		if err != nil {
			return fmt.Errorf("watching %s: %w", c.RootPath(), err)
		}
		im.cmd.Printf("Watching %s\n", c.RootPath())

		wg.Add(1)
		go func() {
			defer wg.Done()
			for change := range changes {
				var err error
				if change.Type == filesystem.ChangeDeleted {
					err = im.remove(ctx, change.Path)
				} else {
					err = im.put(ctx, change.Path, *change.Upload)
				}
				if err != nil {
					errCh <- err
					cancel()
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}
