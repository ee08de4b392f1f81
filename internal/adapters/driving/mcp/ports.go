package mcp

import (
	"github.com/custodia-labs/nexus/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls into.
type Ports struct {
	// Search fans queries out to the enabled sources.
	Search driving.SearchService

	// Documents exposes the user's knowledge base. Optional.
	Documents driving.DocumentService

	// UserID is the account every request runs as. MCP clients talk to a
	// local process, so the identity is fixed when the server starts.
	UserID string
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.UserID == "" {
		return ErrMissingUser
	}
	return nil
}
