// Package plaintext normalises plain text and source-like files.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-shellscript",
		"text/yaml",
		"text/toml",
		"application/json",
		"application/xml",
	}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{
		".txt", ".text", ".log", ".csv", ".tsv",
		".json", ".xml", ".yaml", ".yml", ".toml", ".ini",
		".go", ".py", ".rs", ".js", ".ts", ".java", ".c", ".h", ".sh", ".sql",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the upload's bytes as text. Binary content is refused.
func (n *Normaliser) Normalise(_ context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrValidation
	}

	data := bytes.TrimPrefix(upload.Data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrUnsupportedFormat, upload.Filename)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &driven.NormaliseResult{
		Title:   domain.TitleFromFilename(upload.Filename),
		Content: strings.TrimSpace(content),
	}, nil
}
