package ports

import (
	"context"
	"io"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// Annotator is the inbound contract for the annotation pipeline.
type Annotator interface {
	AnnotateItem(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile, used *domain.UsedVectorSet) ([]domain.Annotation, error)
	AnnotateBatch(ctx context.Context, items []domain.BallotItem, profile domain.VoterProfile) map[string][]domain.Annotation
	Blurb(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile) (*domain.Blurb, error)
	BudgetBreakdown(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile, categories []string) (*domain.BudgetBreakdown, error)
}

// SourceIngestor is the inbound contract for source document upload.
type SourceIngestor interface {
	Upload(ctx context.Context, meta domain.SourceDocument, body io.Reader) (*domain.SourceDocument, error)
}

// SourceProcessor is the inbound contract for asynchronous source indexing.
type SourceProcessor interface {
	ProcessByID(ctx context.Context, sourceID string) error
}

// JobRunner is the inbound contract for asynchronous batch annotation.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}
