package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is an uploaded file owned by exactly one user.
// Documents are immutable after creation; they can only be deleted.
type Document struct {
	// ID is content-addressed within the owner, so identical bytes
	// uploaded twice by the same user map to the same document.
	ID string

	UserID   string
	Filename string
	Title    string
	MIMEType string

	// Size is the byte length of the original upload, charged against quota.
	Size int64

	// Content is the extracted plain text. Empty when extraction degraded.
	Content string

	// Indexed is false when no extractor could handle the format.
	Indexed bool

	CreatedAt time.Time
}

// Chunk is a window of a document's text used for snippet selection.
type Chunk struct {
	// ID is "<documentID>#<position>".
	ID         string
	DocumentID string
	Content    string
	Position   int
}

// Upload is an incoming file before extraction and persistence.
type Upload struct {
	UserID   string
	Filename string
	MIMEType string
	Data     []byte
}

// TitleFromFilename derives a readable title from an upload's filename:
// extension dropped, underscores and dashes turned into spaces.
func TitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
