package normalisers

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
	"github.com/custodia-labs/nexus/internal/logger"
	"github.com/custodia-labs/nexus/internal/normalisers/docx"
	"github.com/custodia-labs/nexus/internal/normalisers/html"
	"github.com/custodia-labs/nexus/internal/normalisers/markdown"
	"github.com/custodia-labs/nexus/internal/normalisers/pdf"
	"github.com/custodia-labs/nexus/internal/normalisers/plaintext"
	"github.com/custodia-labs/nexus/internal/normalisers/xlsx"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches uploads to the best matching normaliser.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a registry with every built-in normaliser registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	r.Register(xlsx.New())
	return r
}

// Register adds a normaliser, keeping the list ordered by priority.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types
}

// Normalise extracts text with the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrValidation
	}

	n := r.match(upload)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, describe(upload))
	}

	logger.Debug("normalising %s with %T", upload.Filename, n)
	return n.Normalise(ctx, upload)
}

func (r *Registry) match(upload *domain.Upload) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ext := strings.ToLower(filepath.Ext(upload.Filename)); ext != "" {
		for _, n := range r.normalisers {
			if contains(n.SupportedExtensions(), ext) {
				return n
			}
		}
	}

	if mt := baseMIMEType(upload.MIMEType); mt != "" {
		for _, n := range r.normalisers {
			if contains(n.SupportedMIMETypes(), mt) {
				return n
			}
		}
	}
	return nil
}

// baseMIMEType strips parameters such as charset.
func baseMIMEType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func describe(upload *domain.Upload) string {
	if upload.MIMEType != "" {
		return fmt.Sprintf("%s (%s)", upload.Filename, upload.MIMEType)
	}
	return upload.Filename
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
