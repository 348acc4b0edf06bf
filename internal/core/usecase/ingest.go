package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
)

// IngestSourceUseCase accepts a source document upload, stores the raw file,
// records its metadata, and queues it for asynchronous indexing.
type IngestSourceUseCase struct {
	repo       ports.SourceRepository
	storage    ports.ObjectStorage
	queue      ports.MessageQueue
	namespaces map[string]struct{}
}

func NewIngestSourceUseCase(repo ports.SourceRepository, storage ports.ObjectStorage, queue ports.MessageQueue, namespaces []string) *IngestSourceUseCase {
	allowed := make(map[string]struct{}, len(namespaces))
	for _, ns := range namespaces {
		allowed[ns] = struct{}{}
	}
	return &IngestSourceUseCase{
		repo:       repo,
		storage:    storage,
		queue:      queue,
		namespaces: allowed,
	}
}

func (uc *IngestSourceUseCase) Upload(ctx context.Context, meta domain.SourceDocument, body io.Reader) (*domain.SourceDocument, error) {
	if strings.TrimSpace(meta.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload source", errors.New("title is required"))
	}
	if _, ok := uc.namespaces[meta.Namespace]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload source", fmt.Errorf("unknown namespace %q", meta.Namespace))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(meta.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.SourceDocument{
		ID:          id,
		Title:       meta.Title,
		URL:         meta.URL,
		Type:        meta.Type,
		Namespace:   meta.Namespace,
		Filename:    meta.Filename,
		MimeType:    meta.MimeType,
		StoragePath: storageKey,
		Status:      domain.SourceUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create source metadata: %w", err)
	}

	if err := uc.queue.PublishSourceIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// ProcessSourceUseCase runs the asynchronous half of ingestion: extract text,
// chunk, embed, and index into the document's namespace.
type ProcessSourceUseCase struct {
	repo      ports.SourceRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
}

func NewProcessSourceUseCase(
	repo ports.SourceRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *ProcessSourceUseCase {
	return &ProcessSourceUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
	}
}

func (uc *ProcessSourceUseCase) ProcessByID(ctx context.Context, sourceID string) error {
	if err := uc.repo.UpdateStatus(ctx, sourceID, domain.SourceProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, sourceID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, sourceID, domain.SourceFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, sourceID, domain.SourceIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *ProcessSourceUseCase) processPipeline(ctx context.Context, sourceID string) error {
	doc, err := uc.repo.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("fetch source by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk source", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.index.IndexPassages(ctx, doc.Namespace, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "source.bin"
	}
	return base
}
