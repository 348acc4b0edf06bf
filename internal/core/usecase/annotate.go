package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
)

// AnnotateConfig holds the caller-visible pipeline knobs.
type AnnotateConfig struct {
	// Temperature is fixed low: this is factual extraction, not generation.
	Temperature float64

	// ParseRetries is the number of times a completion is re-requested after
	// malformed or schema-violating output. Zero means fail on first bad
	// response; any retry behavior is explicit caller configuration, never
	// baked in silently.
	ParseRetries int

	// CallTimeout bounds each external call (embedding+search, completion).
	CallTimeout time.Duration
}

func (c AnnotateConfig) normalize() AnnotateConfig {
	out := c
	if out.Temperature <= 0 {
		out.Temperature = 0.2
	}
	if out.ParseRetries < 0 {
		out.ParseRetries = 0
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 60 * time.Second
	}
	return out
}

// AnnotateUseCase drives the per-item pipeline: retrieve context, build the
// prompt, complete, parse, resolve citations. Failure policy is two-tier:
// any step failing inside one item is a hard failure for that item's caller,
// while the batch loop catches it, logs, and moves on.
type AnnotateUseCase struct {
	retriever *ContextRetriever
	completer ports.CompletionClient
	cfg       AnnotateConfig
	logger    *slog.Logger
	observer  ports.PipelineObserver
}

func NewAnnotateUseCase(retriever *ContextRetriever, completer ports.CompletionClient, cfg AnnotateConfig, logger *slog.Logger, observer ports.PipelineObserver) *AnnotateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnnotateUseCase{
		retriever: retriever,
		completer: completer,
		cfg:       cfg.normalize(),
		logger:    logger,
		observer:  observer,
	}
}

type noopObserver struct{}

func (noopObserver) ObserveRun(domain.Flavor, int, time.Duration) {}
func (noopObserver) ObserveParseFailure(domain.Flavor)            {}

// AnnotateItem produces the per-issue annotation list for one item. The
// caller threads the batch's UsedVectorSet; pass nil for single-shot calls.
func (uc *AnnotateUseCase) AnnotateItem(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile, used *domain.UsedVectorSet) ([]domain.Annotation, error) {
	start := time.Now()
	rc, err := uc.retrieve(ctx, item, used)
	if err != nil {
		return nil, err
	}

	issueKeys := profile.IssueKeys()
	system := systemPromptFor(domain.FlavorIssues, nil, issueKeys)
	user := userPrompt(item, rc, profile)

	// Passages count as used once shown to the model, even if parsing the
	// response later fails: they were surfaced either way.
	used.Add(rc.VectorIDs...)

	var parsed []issueOutput
	err = uc.completeParsed(ctx, domain.FlavorIssues, system, user, func(content string) error {
		var perr error
		parsed, perr = parseIssueAnnotations(content, issueKeys)
		return perr
	})
	if err != nil {
		return nil, err
	}
	uc.observer.ObserveRun(domain.FlavorIssues, len(rc.Passages), time.Since(start))

	annotations := make([]domain.Annotation, 0, len(parsed))
	for _, a := range parsed {
		annotations = append(annotations, domain.Annotation{
			ItemID:    item.ID,
			Issue:     a.Issue,
			Text:      a.Annotation,
			Citations: resolveCitations(a.SourceIndices, rc),
		})
	}
	return annotations, nil
}

// AnnotateBatch annotates items strictly sequentially so that vector IDs used
// by item i are excluded when retrieving for item i+1. Per-item failures are
// logged and yield an empty annotation list; the batch itself never aborts.
func (uc *AnnotateUseCase) AnnotateBatch(ctx context.Context, items []domain.BallotItem, profile domain.VoterProfile) map[string][]domain.Annotation {
	used := domain.NewUsedVectorSet()
	results := make(map[string][]domain.Annotation, len(items))

	for _, item := range items {
		annotations, err := uc.AnnotateItem(ctx, item, profile, used)
		if err != nil {
			uc.logger.Warn("item annotation failed",
				"item_id", item.ID,
				"kind", string(item.Kind),
				"error", err,
			)
			results[item.ID] = []domain.Annotation{}
			continue
		}
		results[item.ID] = annotations
	}
	return results
}

// Blurb produces the single-paragraph flavor for one item.
func (uc *AnnotateUseCase) Blurb(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile) (*domain.Blurb, error) {
	start := time.Now()
	rc, err := uc.retrieve(ctx, item, nil)
	if err != nil {
		return nil, err
	}

	system := systemPromptFor(domain.FlavorBlurb, nil, nil)
	user := userPrompt(item, rc, profile)

	var parsed *blurbOutput
	err = uc.completeParsed(ctx, domain.FlavorBlurb, system, user, func(content string) error {
		var perr error
		parsed, perr = parseBlurb(content)
		return perr
	})
	if err != nil {
		return nil, err
	}
	uc.observer.ObserveRun(domain.FlavorBlurb, len(rc.Passages), time.Since(start))

	return &domain.Blurb{
		ItemID:    item.ID,
		Text:      parsed.Blurb,
		Citations: resolveCitations(parsed.Citations, rc),
	}, nil
}

// BudgetBreakdown produces the category-table flavor. The caller supplies the
// exact fixed category set; the result always contains every one of them.
// "Percentages net to zero" remains a prompt-level hint, not enforced here.
func (uc *AnnotateUseCase) BudgetBreakdown(ctx context.Context, item domain.BallotItem, profile domain.VoterProfile, categories []string) (*domain.BudgetBreakdown, error) {
	if len(categories) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "budget breakdown", errors.New("empty category set"))
	}

	start := time.Now()
	rc, err := uc.retrieve(ctx, item, nil)
	if err != nil {
		return nil, err
	}

	system := systemPromptFor(domain.FlavorBudget, categories, nil)
	user := userPrompt(item, rc, profile)

	var parsed map[string]budgetCategoryOutput
	err = uc.completeParsed(ctx, domain.FlavorBudget, system, user, func(content string) error {
		var perr error
		parsed, perr = parseBudget(content, categories)
		return perr
	})
	if err != nil {
		return nil, err
	}
	uc.observer.ObserveRun(domain.FlavorBudget, len(rc.Passages), time.Since(start))

	breakdown := &domain.BudgetBreakdown{
		ItemID:     item.ID,
		Categories: make(map[string]domain.BudgetCategory, len(parsed)),
	}
	for name, cat := range parsed {
		breakdown.Categories[name] = domain.BudgetCategory{
			Explanation:            cat.Explanation,
			ProjectedChangePercent: float64(cat.ProjectedChangePercent),
			Direction:              domain.Direction(cat.Direction),
			Citations:              resolveCitations(cat.Citations, rc),
		}
	}
	return breakdown, nil
}

func (uc *AnnotateUseCase) retrieve(ctx context.Context, item domain.BallotItem, used *domain.UsedVectorSet) (*domain.RetrievalContext, error) {
	retrieveCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
	defer cancel()

	rc, err := uc.retriever.Retrieve(retrieveCtx, item, used)
	if err != nil {
		return nil, fmt.Errorf("retrieve context for item %s: %w", item.ID, err)
	}
	return rc, nil
}

// completeParsed runs the completion call and hands the content to the
// flavor's parser, re-requesting on malformed or schema-violating output up
// to the configured retry count. Provider failures are never retried here;
// that is the resilience layer's concern.
func (uc *AnnotateUseCase) completeParsed(ctx context.Context, flavor domain.Flavor, system, user string, parse func(content string) error) error {
	attempts := uc.cfg.ParseRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, uc.cfg.CallTimeout)
		content, err := uc.completer.Complete(callCtx, system, user, uc.cfg.Temperature)
		cancel()
		if err != nil {
			return fmt.Errorf("completion call: %w", err)
		}

		err = parse(content)
		if err == nil {
			return nil
		}
		if !domain.IsKind(err, domain.ErrMalformedOutput) && !domain.IsKind(err, domain.ErrSchemaViolation) {
			return err
		}
		uc.observer.ObserveParseFailure(flavor)
		lastErr = err
		if attempt < attempts {
			uc.logger.Warn("model output rejected, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err,
			)
		}
	}
	return lastErr
}
