package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
)

const (
	defaultTopK = 5
	// overfetchBuffer pads the per-namespace limit beyond topK + excluded IDs
	// so post-filtering still leaves enough candidates.
	defaultOverfetchBuffer = 3

	emptyContextBlock = "No sources available."
)

// ContextRetriever produces the numbered, deduplicated source list for one
// item's annotation. The query is built from the item's own text only; the
// voter profile is injected later in the prompt, never into the embedding,
// so the semantic query stays anchored to the item itself.
type ContextRetriever struct {
	embedder   ports.Embedder
	index      ports.VectorIndex
	namespaces []string
	topK       int
	buffer     int
}

func NewContextRetriever(embedder ports.Embedder, index ports.VectorIndex, namespaces []string, topK, overfetchBuffer int) *ContextRetriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if overfetchBuffer <= 0 {
		overfetchBuffer = defaultOverfetchBuffer
	}
	return &ContextRetriever{
		embedder:   embedder,
		index:      index,
		namespaces: namespaces,
		topK:       topK,
		buffer:     overfetchBuffer,
	}
}

// Retrieve embeds the item query once, fans out across every configured
// namespace, merges and deduplicates matches, drops already-used vector IDs,
// and locks the 1-based Source N numbering the model will see. Zero results
// is a valid outcome, not an error.
func (r *ContextRetriever) Retrieve(ctx context.Context, item domain.BallotItem, used *domain.UsedVectorSet) (*domain.RetrievalContext, error) {
	query := buildItemQuery(item)

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed item query", err)
	}

	limit := r.topK + used.Len() + r.buffer

	merged := make([]domain.RetrievedPassage, 0, limit*len(r.namespaces))
	for _, namespace := range r.namespaces {
		matches, err := r.index.Search(ctx, namespace, vector, limit, domain.PassageFilter{})
		if err != nil {
			return nil, domain.WrapError(domain.ErrRetrieval, fmt.Sprintf("search namespace %s", namespace), err)
		}
		merged = append(merged, matches...)
	}

	passages := dedupeAndFilter(merged, used)

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > r.topK {
		passages = passages[:r.topK]
	}

	return buildRetrievalContext(item, passages), nil
}

// buildItemQuery concatenates the item's title and body. User keywords are
// deliberately absent here.
func buildItemQuery(item domain.BallotItem) string {
	title := strings.TrimSpace(item.Title)
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return title
	}
	return title + "\n" + text
}

// dedupeAndFilter keeps the first occurrence of each vector ID and drops any
// ID already surfaced in this batch.
func dedupeAndFilter(matches []domain.RetrievedPassage, used *domain.UsedVectorSet) []domain.RetrievedPassage {
	seen := make(map[string]struct{}, len(matches))
	out := make([]domain.RetrievedPassage, 0, len(matches))
	for _, m := range matches {
		if used.Contains(m.VectorID) {
			continue
		}
		if _, ok := seen[m.VectorID]; ok {
			continue
		}
		seen[m.VectorID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// buildRetrievalContext assigns the final 1-based indices and renders the
// numbered block. The numbering fixed here is what the prompt shows and what
// citation resolution reads back; nothing renumbers in between.
func buildRetrievalContext(item domain.BallotItem, passages []domain.RetrievedPassage) *domain.RetrievalContext {
	rc := &domain.RetrievalContext{
		Passages:  passages,
		Sources:   make([]domain.SourceRef, 0, len(passages)),
		VectorIDs: make([]string, 0, len(passages)),
	}

	if len(passages) == 0 {
		rc.Block = emptyContextBlock
		return rc
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sources for %q:\n\n", item.Title)
	for i, p := range passages {
		fmt.Fprintf(&b, "[Source %d] %s (%s)\n%s\n\n", i+1, p.Title, p.URL, p.Text)
		rc.Sources = append(rc.Sources, domain.SourceRef{Title: p.Title, URL: p.URL})
		rc.VectorIDs = append(rc.VectorIDs, p.VectorID)
	}
	rc.Block = strings.TrimRight(b.String(), "\n")
	return rc
}
