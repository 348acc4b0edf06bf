package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

func newAnnotationRepoWithMock(t *testing.T) (*AnnotationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AnnotationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetJobReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newAnnotationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, profile_id, item_ids").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetJob(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetJobScansItemIDs(t *testing.T) {
	repo, mock, done := newAnnotationRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "profile_id", "item_ids", "status", "error_message", "created_at", "updated_at"}).
		AddRow("job-1", "prof-1", []byte(`["q1","q2"]`), "pending", "", now, now)
	mock.ExpectQuery("SELECT id, profile_id, item_ids").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != domain.JobPending {
		t.Fatalf("unexpected status %s", job.Status)
	}
	if len(job.ItemIDs) != 2 || job.ItemIDs[0] != "q1" {
		t.Fatalf("unexpected item ids %v", job.ItemIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateJobStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newAnnotationRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE annotation_jobs").
		WithArgs("missing", string(domain.JobRunning), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateJobStatus(context.Background(), "missing", domain.JobRunning, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAnnotationsInsertsAllRowsInTx(t *testing.T) {
	repo, mock, done := newAnnotationRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO annotations").
		WithArgs("job-1", "q1", "housing", "Text one.", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO annotations").
		WithArgs("job-1", "q1", "transit", "Text two.", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := repo.SaveAnnotations(context.Background(), "job-1", []domain.Annotation{
		{ItemID: "q1", Issue: "housing", Text: "Text one.", Citations: []domain.Citation{{Title: "T", URL: "https://example.org"}}},
		{ItemID: "q1", Issue: "transit", Text: "Text two.", Citations: []domain.Citation{}},
	})
	if err != nil {
		t.Fatalf("SaveAnnotations() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
