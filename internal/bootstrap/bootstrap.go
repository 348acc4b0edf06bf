package bootstrap

import (
	"context"
	"fmt"

	"github.com/ballotbrief/ballotbrief/internal/config"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
	"github.com/ballotbrief/ballotbrief/internal/core/usecase"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/chunking"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/extractor"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/llm/ollama"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/llm/openai"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/queue/nats"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/repository/postgres"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/resilience"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/storage/localfs"
	"github.com/ballotbrief/ballotbrief/internal/infrastructure/vector/qdrant"
	"github.com/ballotbrief/ballotbrief/internal/observability/logging"
)

type App struct {
	Config config.Config

	Queue          ports.MessageQueue
	BallotRepo     ports.BallotRepository
	ProfileRepo    ports.ProfileRepository
	AnnotationRepo ports.AnnotationRepository
	SourceRepo     ports.SourceRepository

	Annotator ports.Annotator
	Ingestor  ports.SourceIngestor
	Processor ports.SourceProcessor
	JobRunner ports.JobRunner

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, observer ports.PipelineObserver) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ballotRepo := postgres.NewBallotRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	annotationRepo := postgres.NewAnnotationRepository(db)
	sourceRepo := postgres.NewSourceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSJobsSubject, cfg.NATSSourcesSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var embedder ports.Embedder
	var completer ports.CompletionClient
	if cfg.LLMBackend == "openai" {
		client := openai.New(openai.Config{
			APIKey:            cfg.OpenAIAPIKey,
			BaseURL:           cfg.OpenAIBaseURL,
			GenModel:          cfg.OpenAIGenModel,
			EmbedModel:        cfg.OpenAIEmbedModel,
			RequestsPerSecond: cfg.OpenAIRequestsPerSecond,
		})
		embedder = client
		completer = client
	} else {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		embedder = ollama.NewEmbedder(client)
		completer = client
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.New(storage)

	retriever := usecase.NewContextRetriever(embedder, vectorDB, cfg.Namespaces, cfg.RetrievalTopK, cfg.OverfetchBuffer)
	annotator := usecase.NewAnnotateUseCase(retriever, completer, usecase.AnnotateConfig{
		Temperature:  cfg.Temperature,
		ParseRetries: cfg.ParseRetries,
		CallTimeout:  cfg.CallTimeout,
	}, logger, observer)

	ingestor := usecase.NewIngestSourceUseCase(sourceRepo, storage, queue, cfg.Namespaces)
	processor := usecase.NewProcessSourceUseCase(sourceRepo, textExtractor, chunker, embedder, vectorDB)
	jobRunner := usecase.NewRunJobUseCase(annotationRepo, profileRepo, ballotRepo, annotator)

	return &App{
		Config: cfg,

		Queue:          queue,
		BallotRepo:     ballotRepo,
		ProfileRepo:    profileRepo,
		AnnotationRepo: annotationRepo,
		SourceRepo:     sourceRepo,

		Annotator: annotator,
		Ingestor:  ingestor,
		Processor: processor,
		JobRunner: jobRunner,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
