package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/logger"
)

// ChangeType describes what happened to a watched file.
type ChangeType string

// Change types emitted by Watch.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is one file event. Upload is nil for deletions.
type Change struct {
	Type   ChangeType
	Path   string
	Upload *domain.Upload
}

// Option configures a Connector.
type Option func(*Connector)

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// Connector reads files under rootPath on behalf of one user.
type Connector struct {
	userID      string
	rootPath    string
	maxFileSize int64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// New creates a connector. rootPath may be a directory or a single file.
func New(userID, rootPath string, opts ...Option) *Connector {
	c := &Connector{
		userID:      userID,
		rootPath:    rootPath,
		maxFileSize: domain.DefaultQuotaBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RootPath returns the path the connector reads from.
func (c *Connector) RootPath() string { return c.rootPath }

// Validate checks that the root path exists.
func (c *Connector) Validate() error {
	if c.rootPath == "" {
		return fmt.Errorf("%w: path is required", domain.ErrValidation)
	}
	if _, err := os.Stat(c.rootPath); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// Walk calls fn for every visible regular file under the root. Hidden
// files and directories are skipped. An error from fn stops the walk.
func (c *Connector) Walk(ctx context.Context, fn func(path string, upload domain.Upload) error) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != c.rootPath && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		upload, err := c.readFile(path)
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if upload == nil {
			return nil
		}
		return fn(path, *upload)
	})
}

// readFile builds an upload from path. It returns nil for empty or
// oversized files.
func (c *Connector) readFile(path string) (*domain.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}
	if info.Size() > c.maxFileSize {
		logger.Warn("Skipping %s: %d bytes exceeds the %d byte limit", path, info.Size(), c.maxFileSize)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &domain.Upload{
		UserID:   c.userID,
		Filename: filepath.Base(path),
		MIMEType: detectMIMEType(path),
		Data:     data,
	}, nil
}

// Watch emits changes under the root until ctx is cancelled. Directories
// created after Watch starts are watched too.
func (c *Connector) Watch(ctx context.Context) (<-chan Change, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := c.addTree(watcher, c.rootPath); err != nil {
		watcher.Close()
		return nil, err
	}

	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	changes := make(chan Change, 16)
	go func() {
		defer close(changes)
		defer c.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if rel, ok := c.relative(event.Name); !ok || isHidden(rel) {
							continue
						}
						if err := c.addTree(watcher, event.Name); err != nil {
							logger.Warn("Watching %s: %v", event.Name, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

func (c *Connector) addTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// handleFsEvent converts a raw event into a change, or nil when the event
// is irrelevant.
func (c *Connector) handleFsEvent(event fsnotify.Event) *Change {
	rel, ok := c.relative(event.Name)
	if !ok || isHidden(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		upload, err := c.readFile(event.Name)
		if err != nil {
			logger.Warn("Reading %s: %v", event.Name, err)
			return nil
		}
		if upload == nil {
			return nil
		}
		changeType := ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = ChangeCreated
		}
		return &Change{Type: changeType, Path: event.Name, Upload: upload}
	default:
		return nil
	}
}

// relative returns path relative to the root, or false when path is
// outside it. A file root only covers itself.
func (c *Connector) relative(path string) (string, bool) {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return filepath.Base(path), true
	}
	if info, err := os.Stat(c.rootPath); err == nil && !info.IsDir() {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// Close stops an active watch.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

// fallbackMIMETypes covers extensions the system MIME table often lacks.
var fallbackMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// detectMIMEType guesses a file's type from its extension. Files without
// an extension are treated as plain text.
func detectMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "text/plain"
	}
	if mt, ok := fallbackMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}
	return "application/octet-stream"
}

// isHidden reports whether any path element starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
