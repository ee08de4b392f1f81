package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNew(t *testing.T) {
	c := New("alice", "/tmp/notes")
	assert.Equal(t, "alice", c.userID)
	assert.Equal(t, "/tmp/notes", c.RootPath())
	assert.Equal(t, domain.DefaultQuotaBytes, c.maxFileSize)

	c = New("alice", "/tmp/notes", WithMaxFileSize(10))
	assert.Equal(t, int64(10), c.maxFileSize)
}

func TestConnector_Validate(t *testing.T) {
	assert.ErrorIs(t, New("alice", "").Validate(), domain.ErrValidation)
	assert.ErrorIs(t, New("alice", filepath.Join(t.TempDir(), "missing")).Validate(), domain.ErrValidation)
	assert.NoError(t, New("alice", t.TempDir()).Validate())
}

func TestConnector_Walk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "# beta")
	writeFile(t, filepath.Join(dir, ".git", "config"), "hidden dir")
	writeFile(t, filepath.Join(dir, ".secret"), "hidden file")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")
	writeFile(t, filepath.Join(dir, "big.txt"), "0123456789abcdef")

	c := New("alice", dir, WithMaxFileSize(10))
	var got []domain.Upload
	require.NoError(t, c.Walk(context.Background(), func(_ string, u domain.Upload) error {
		got = append(got, u)
		return nil
	}))

	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].Filename)
	assert.Equal(t, "text/plain", got[0].MIMEType)
	assert.Equal(t, "alice", got[0].UserID)
	assert.Equal(t, []byte("alpha"), got[0].Data)
	assert.Equal(t, "b.md", got[1].Filename)
	assert.Equal(t, "text/markdown", got[1].MIMEType)
}

func TestConnector_WalkSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "only.txt")
	writeFile(t, path, "just me")

	var names []string
	require.NoError(t, New("alice", path).Walk(context.Background(), func(path string, u domain.Upload) error {
		assert.Equal(t, filepath.Base(path), u.Filename)
		names = append(names, u.Filename)
		return nil
	}))
	assert.Equal(t, []string{"only.txt"}, names)
}

func TestConnector_WalkStopsOnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")

	stop := errors.New("stop")
	calls := 0
	err := New("alice", dir).Walk(context.Background(), func(string, domain.Upload) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestConnector_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		dir := t.TempDir()
		c := New("alice", dir)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := c.Watch(ctx)
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = os.WriteFile(filepath.Join(dir, "new-file.txt"), []byte("content"), 0644)
		}()

		select {
		case change := <-changes:
			assert.Contains(t, change.Path, "new-file.txt")
			require.NotNil(t, change.Upload)
			assert.Equal(t, "new-file.txt", change.Upload.Filename)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file change event")
		}
	})

	t.Run("channel closes on cancel", func(t *testing.T) {
		c := New("alice", t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := c.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed")
		}
		assert.NoError(t, c.Close())
	})

	t.Run("invalid root", func(t *testing.T) {
		_, err := New("alice", filepath.Join(t.TempDir(), "missing")).Watch(context.Background())
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		create   bool
		op       fsnotify.Op
		wantType ChangeType
		wantNil  bool
	}{
		{"create file", "test.txt", true, fsnotify.Create, ChangeCreated, false},
		{"write file", "test.txt", true, fsnotify.Write, ChangeUpdated, false},
		{"write and chmod", "test.txt", true, fsnotify.Write | fsnotify.Chmod, ChangeUpdated, false},
		{"remove file", "removed.txt", false, fsnotify.Remove, ChangeDeleted, false},
		{"rename file", "renamed.txt", false, fsnotify.Rename, ChangeDeleted, false},
		{"chmod only", "test.txt", true, fsnotify.Chmod, "", true},
		{"hidden create", ".hidden.txt", true, fsnotify.Create, "", true},
		{"hidden remove", ".hidden.txt", false, fsnotify.Remove, "", true},
		{"create vanished file", "gone.txt", false, fsnotify.Create, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			if tt.create {
				writeFile(t, path, "content")
			}

			change := New("alice", dir).handleFsEvent(fsnotify.Event{Name: path, Op: tt.op})
			if tt.wantNil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantType, change.Type)
			assert.Equal(t, path, change.Path)
			if tt.wantType == ChangeDeleted {
				assert.Nil(t, change.Upload)
			} else {
				assert.Equal(t, []byte("content"), change.Upload.Data)
			}
		})
	}

	t.Run("outside root", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "x.txt")
		writeFile(t, other, "x")
		assert.Nil(t, New("alice", t.TempDir()).handleFsEvent(fsnotify.Event{Name: other, Op: fsnotify.Create}))
	})

	t.Run("directory create", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		assert.Nil(t, New("alice", dir).handleFsEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create}))
	})
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"file", "text/plain"},
		{"notes.txt", "text/plain"},
		{"doc.md", "text/markdown"},
		{"FILE.MD", "text/markdown"},
		{"code.go", "text/x-go"},
		{"File.Yaml", "text/yaml"},
		{"page.html", "text/html"},
		{"doc.pdf", "application/pdf"},
		{"report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"file.zzzzunknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectMIMEType(tt.filename))
		})
	}

	t.Run("strips charset", func(t *testing.T) {
		assert.NotContains(t, detectMIMEType("file.html"), ";")
	})
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"dir/.git/config", true},
		{".config/.cache/data", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{".", false},
		{"..", false},
		{"path/../file", false},
		{"", false},
		{"/", false},
		{"file.hidden", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}
