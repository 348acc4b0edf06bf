package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

type AnnotationRepository struct {
	db *sql.DB
}

func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func (r *AnnotationRepository) CreateJob(ctx context.Context, job *domain.AnnotationJob) error {
	itemIDsJSON, err := json.Marshal(job.ItemIDs)
	if err != nil {
		return fmt.Errorf("marshal item ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO annotation_jobs (id, profile_id, item_ids, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, job.ID, job.ProfileID, itemIDsJSON, string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert annotation job: %w", err)
	}
	return nil
}

func (r *AnnotationRepository) GetJob(ctx context.Context, id string) (*domain.AnnotationJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, profile_id, item_ids, status, error_message, created_at, updated_at
FROM annotation_jobs
WHERE id = $1
`, id)

	var job domain.AnnotationJob
	var itemIDsRaw []byte
	var status string

	err := row.Scan(&job.ID, &job.ProfileID, &itemIDsRaw, &status, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get annotation job", fmt.Errorf("job %s", id))
		}
		return nil, fmt.Errorf("scan annotation job: %w", err)
	}

	if err := json.Unmarshal(itemIDsRaw, &job.ItemIDs); err != nil {
		return nil, fmt.Errorf("unmarshal item ids: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *AnnotationRepository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE annotation_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update annotation job status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update annotation job rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update annotation job status", fmt.Errorf("job %s", id))
	}
	return nil
}

func (r *AnnotationRepository) SaveAnnotations(ctx context.Context, jobID string, annotations []domain.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin annotations tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, a := range annotations {
		citationsJSON, err := json.Marshal(a.Citations)
		if err != nil {
			return fmt.Errorf("marshal citations: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO annotations (job_id, item_id, issue, text, citations, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, jobID, a.ItemID, a.Issue, a.Text, citationsJSON, now)
		if err != nil {
			return fmt.Errorf("insert annotation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotations tx: %w", err)
	}
	return nil
}

func (r *AnnotationRepository) ListAnnotationsByJob(ctx context.Context, jobID string) ([]domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT item_id, issue, text, citations
FROM annotations
WHERE job_id = $1
ORDER BY id
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Annotation, 0)
	for rows.Next() {
		var a domain.Annotation
		var citationsRaw []byte
		if err := rows.Scan(&a.ItemID, &a.Issue, &a.Text, &citationsRaw); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if err := json.Unmarshal(citationsRaw, &a.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}
