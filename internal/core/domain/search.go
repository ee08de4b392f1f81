package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies where a search result came from.
type SourceKind string

// Known source kinds. The set is closed.
const (
	SourceWeb       SourceKind = "web"
	SourceWikipedia SourceKind = "wiki"
	SourceDDG       SourceKind = "ddg"
	SourcePKB       SourceKind = "pkb"
)

// ExternalSources lists the provider-backed sources in their default order.
var ExternalSources = []SourceKind{SourceWeb, SourceWikipedia, SourceDDG}

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceWeb, SourceWikipedia, SourceDDG, SourcePKB:
		return true
	default:
		return false
	}
}

// IsExternal returns true for sources backed by a third-party provider.
func (k SourceKind) IsExternal() bool {
	return k.IsValid() && k != SourcePKB
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// ParseSourceKind converts a toggle name into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrValidation, s)
	}
	return k, nil
}

// SearchRequest is a validated fan-out query.
type SearchRequest struct {
	UserID string
	Query  string

	// Sources are the enabled external sources in the order the caller toggled them.
	Sources []SourceKind

	// PKB includes the caller's personal knowledge base.
	PKB bool
}

// SearchResult is a single merged, source-tagged hit.
type SearchResult struct {
	Source SourceKind

	// Label is the display tag, e.g. "Wikipedia" or "PKB (notes.txt)".
	Label string

	Title   string
	URL     string
	Snippet string

	// Score is only meaningful within one source.
	Score float64

	// DocumentID is set for PKB results.
	DocumentID string
}

// MergePolicy decides how per-source result lists are combined.
type MergePolicy string

// Available merge policies.
const (
	// MergePKBLast concatenates sources in request toggle order, then PKB.
	MergePKBLast MergePolicy = "pkb_last"

	// MergeInterleave takes one result from each source in turn, same order.
	MergeInterleave MergePolicy = "interleave"
)

// DefaultMergePolicy is the policy used when none is configured.
const DefaultMergePolicy = MergePKBLast

// IsValid returns true if the merge policy is recognised.
func (p MergePolicy) IsValid() bool {
	return p == MergePKBLast || p == MergeInterleave
}

// UnsupportedFormatPolicy decides what happens to uploads no extractor handles.
type UnsupportedFormatPolicy string

// Available unsupported-format policies.
const (
	// FormatDegrade stores the file with empty text; it is never returned by PKB search.
	FormatDegrade UnsupportedFormatPolicy = "degrade"

	// FormatReject fails the upload with ErrUnsupportedFormat.
	FormatReject UnsupportedFormatPolicy = "reject"
)

// DefaultUnsupportedFormatPolicy is the policy used when none is configured.
const DefaultUnsupportedFormatPolicy = FormatDegrade

// IsValid returns true if the policy is recognised.
func (p UnsupportedFormatPolicy) IsValid() bool {
	return p == FormatDegrade || p == FormatReject
}
