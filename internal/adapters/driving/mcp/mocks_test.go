package mcp

import (
	"context"

	"github.com/custodia-labs/nexus/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	last    domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchResult, error) {
	m.last = req
	return m.results, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error
	userID    string
}

func (m *mockDocumentService) Put(_ context.Context, _ domain.Upload) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Get(_ context.Context, userID, _ string) (*domain.Document, error) {
	m.userID = userID
	return m.document, m.err
}

func (m *mockDocumentService) ListByUser(_ context.Context, userID string) ([]domain.Document, error) {
	m.userID = userID
	return m.documents, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockDocumentService) Reindex(_ context.Context) (int, error) {
	return len(m.documents), m.err
}
