package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/nexus/internal/core/domain"
	"github.com/custodia-labs/nexus/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument inserts the document, its bytes, and the usage increment atomically.
func (s *documentStore) SaveDocument(
	ctx context.Context,
	doc *domain.Document,
	data []byte,
	quota int64,
) (bool, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("beginning save", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, filename, title, mime_type, size, content, indexed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO NOTHING
	`, doc.ID, doc.UserID, doc.Filename, doc.Title, doc.MIMEType, doc.Size,
		doc.Content, doc.Indexed, doc.CreatedAt)
	if err != nil {
		return false, storageErr("saving document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("saving document", err)
	}
	if n == 0 {
		// Same content already stored for this user: nothing to charge.
		return false, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE users SET total_storage_bytes = total_storage_bytes + ?
		WHERE id = ? AND total_storage_bytes + ? <= ?
	`, doc.Size, doc.UserID, doc.Size, quota)
	if err != nil {
		return false, storageErr("charging usage", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, storageErr("charging usage", err)
	}
	if n == 0 {
		var used int64
		err := tx.QueryRowContext(ctx, "SELECT total_storage_bytes FROM users WHERE id = ?", doc.UserID).Scan(&used)
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("user %s: %w", doc.UserID, domain.ErrNotFound)
		}
		if err != nil {
			return false, storageErr("reading usage", err)
		}
		return false, &domain.QuotaExceededError{
			UserID:    doc.UserID,
			Used:      used,
			Requested: doc.Size,
			Limit:     quota,
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_blobs (user_id, document_id, data) VALUES (?, ?, ?)
	`, doc.UserID, doc.ID, data); err != nil {
		return false, storageErr("saving document data", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("committing document", err)
	}
	return true, nil
}

// GetDocument retrieves a user's document by ID.
func (s *documentStore) GetDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, title, mime_type, size, content, indexed, created_at
		FROM documents WHERE user_id = ? AND id = ?
	`, userID, id)
	return scanDocument(row)
}

// GetDocumentData retrieves the original uploaded bytes.
func (s *documentStore) GetDocumentData(ctx context.Context, userID, id string) ([]byte, error) {
	var data []byte
	err := s.store.db.QueryRowContext(ctx, `
		SELECT data FROM document_blobs WHERE user_id = ? AND document_id = ?
	`, userID, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("reading document data", err)
	}
	return data, nil
}

// ListDocuments returns a user's documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, filename, title, mime_type, size, content, indexed, created_at
		FROM documents WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, storageErr("listing documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing documents", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and credits its size back to the owner.
func (s *documentStore) DeleteDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("beginning delete", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	doc, err := scanDocument(tx.QueryRowContext(ctx, `
		SELECT id, user_id, filename, title, mime_type, size, content, indexed, created_at
		FROM documents WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM document_blobs WHERE user_id = ? AND document_id = ?", userID, id); err != nil {
		return nil, storageErr("deleting document data", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE user_id = ? AND id = ?", userID, id); err != nil {
		return nil, storageErr("deleting document", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_storage_bytes = MAX(total_storage_bytes - ?, 0) WHERE id = ?
	`, doc.Size, userID); err != nil {
		return nil, storageErr("crediting usage", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("committing delete", err)
	}
	return doc, nil
}

// GetUsage returns the committed storage counter for a user.
func (s *documentStore) GetUsage(ctx context.Context, userID string) (int64, error) {
	var used int64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT total_storage_bytes FROM users WHERE id = ?", userID).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, storageErr("reading usage", err)
	}
	return used, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(r rowScanner) (*domain.Document, error) {
	var doc domain.Document
	err := r.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.Title, &doc.MIMEType,
		&doc.Size, &doc.Content, &doc.Indexed, &doc.CreatedAt)
	return &doc, err
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("scanning document", err)
	}
	return doc, nil
}

func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	doc, err := scanInto(rows)
	if err != nil {
		return nil, storageErr("scanning document", err)
	}
	return doc, nil
}
