// Package mcp exposes Nexus search and the personal knowledge base to AI
// assistants over the Model Context Protocol.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingUser is returned when no user is bound to the server.
var ErrMissingUser = errors.New("mcp: a user is required")
