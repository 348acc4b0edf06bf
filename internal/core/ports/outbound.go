package ports

import (
	"context"
	"io"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// Embedder builds vectors for source passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is a multi-namespace vector store. Search queries a single
// namespace; the retriever fans out over its configured namespace set and
// merges. Limit is a per-namespace cap.
type VectorIndex interface {
	Search(ctx context.Context, namespace string, queryVector []float32, limit int, filter domain.PassageFilter) ([]domain.RetrievedPassage, error)
	IndexPassages(ctx context.Context, namespace string, doc *domain.SourceDocument, chunks []string, vectors [][]float32) error
}

// CompletionClient wraps one synchronous chat-completion call. No streaming,
// no tool use.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// BallotRepository stores annotatable items. The annotation core only reads;
// Create serves the seeding endpoint that loads a ballot before annotation.
type BallotRepository interface {
	List(ctx context.Context) ([]domain.BallotItem, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.BallotItem, error)
	Create(ctx context.Context, item *domain.BallotItem) error
}

// ProfileRepository persists voter profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.VoterProfile) error
	GetByID(ctx context.Context, id string) (*domain.VoterProfile, error)
}

// AnnotationRepository persists generated annotations and batch jobs.
type AnnotationRepository interface {
	CreateJob(ctx context.Context, job *domain.AnnotationJob) error
	GetJob(ctx context.Context, id string) (*domain.AnnotationJob, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveAnnotations(ctx context.Context, jobID string, annotations []domain.Annotation) error
	ListAnnotationsByJob(ctx context.Context, jobID string) ([]domain.Annotation, error)
}

// SourceRepository persists source document state for the ingest pipeline.
type SourceRepository interface {
	Create(ctx context.Context, doc *domain.SourceDocument) error
	GetByID(ctx context.Context, id string) (*domain.SourceDocument, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a stored source document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.SourceDocument) (string, error)
}

// Chunker splits extracted text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// PipelineObserver receives per-run pipeline outcomes for instrumentation.
// The pipeline reports passage counts from the retrieval context it actually
// prompted with, so callers never have to infer them from response payloads.
type PipelineObserver interface {
	ObserveRun(flavor domain.Flavor, passageCount int, duration time.Duration)
	ObserveParseFailure(flavor domain.Flavor)
}

// MessageQueue carries job IDs between the API and the worker.
type MessageQueue interface {
	PublishAnnotationJob(ctx context.Context, jobID string) error
	SubscribeAnnotationJobs(ctx context.Context, handler func(context.Context, string) error) error
	PublishSourceIngested(ctx context.Context, sourceID string) error
	SubscribeSourceIngested(ctx context.Context, handler func(context.Context, string) error) error
}
