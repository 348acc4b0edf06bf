package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, doc *domain.SourceDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO source_documents (
	id, title, url, type, namespace, filename, mime_type, storage_path, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.Title, doc.URL, doc.Type, doc.Namespace, doc.Filename, doc.MimeType,
		doc.StoragePath, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source document: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, url, type, namespace, filename, mime_type, storage_path, status, error_message, created_at, updated_at
FROM source_documents
WHERE id = $1
`, id)

	var doc domain.SourceDocument
	var status string

	err := row.Scan(
		&doc.ID, &doc.Title, &doc.URL, &doc.Type, &doc.Namespace, &doc.Filename, &doc.MimeType,
		&doc.StoragePath, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get source document", fmt.Errorf("source %s", id))
		}
		return nil, fmt.Errorf("scan source document: %w", err)
	}

	doc.Status = domain.SourceStatus(status)
	return &doc, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE source_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source document status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update source document status", fmt.Errorf("source %s", id))
	}
	return nil
}
