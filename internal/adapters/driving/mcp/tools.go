package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	Web   bool   `json:"web,omitempty" jsonschema:"include general web results"`
	Wiki  bool   `json:"wiki,omitempty" jsonschema:"include Wikipedia articles"`
	DDG   bool   `json:"ddg,omitempty" jsonschema:"include DuckDuckGo instant answers"`
	PKB   bool   `json:"pkb,omitempty" jsonschema:"include the user's uploaded documents"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results     []SearchResultOutput `json:"results"`
	Count       int                  `json:"count"`
	TimeTakenMs int64                `json:"time_taken_ms"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Source     string `json:"source"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// ListDocumentsInput is the (empty) input schema for list_documents.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for list_documents.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes one stored document.
type DocumentOutput struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Size     int64  `json:"size"`
	Indexed  bool   `json:"indexed"`
	URI      string `json:"uri"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search",
		Description: "Search the web, Wikipedia, DuckDuckGo and the user's own documents at once. " +
			"Enable each source with its flag; with no flags only the user's documents are searched.",
	}, s.handleSearch)

	if s.ports.Documents != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_documents",
			Description: "List the documents in the user's personal knowledge base",
		}, s.handleListDocuments)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()

	req := domain.SearchRequest{
		UserID: s.ports.UserID,
		Query:  input.Query,
		PKB:    input.PKB,
	}
	if input.Web {
		req.Sources = append(req.Sources, domain.SourceWeb)
	}
	if input.Wiki {
		req.Sources = append(req.Sources, domain.SourceWikipedia)
	}
	if input.DDG {
		req.Sources = append(req.Sources, domain.SourceDDG)
	}
	if len(req.Sources) == 0 && !req.PKB {
		req.PKB = true
	}

	results, err := s.ports.Search.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}

	output := SearchOutput{
		Results:     make([]SearchResultOutput, len(results)),
		Count:       len(results),
		TimeTakenMs: time.Since(start).Milliseconds(),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			Source:     results[i].Label,
			Kind:       string(results[i].Source),
			Title:      results[i].Title,
			URL:        results[i].URL,
			Snippet:    results[i].Snippet,
			DocumentID: results[i].DocumentID,
		}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Documents == nil {
		return nil, ListDocumentsOutput{}, errors.New("document service not configured")
	}

	docs, err := s.ports.Documents.ListByUser(ctx, s.ports.UserID)
	if err != nil {
		return nil, ListDocumentsOutput{}, fmt.Errorf("listing documents: %w", err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = DocumentOutput{
			ID:       docs[i].ID,
			Filename: docs[i].Filename,
			Title:    docs[i].Title,
			Size:     docs[i].Size,
			Indexed:  docs[i].Indexed,
			URI:      documentURI(docs[i].ID),
		}
	}
	return nil, output, nil
}
