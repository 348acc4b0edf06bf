package usecase

import (
	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// resolveCitations maps model-emitted 1-based source indices back to the
// titles and URLs the retriever actually numbered. This is the single choke
// point keeping hallucinated citations away from users, and it is
// deliberately conservative: an index that is out of range, or that resolves
// to an empty URL, is dropped silently rather than repaired. The model's
// ordering of indices is preserved.
func resolveCitations(indices []int, rc *domain.RetrievalContext) []domain.Citation {
	out := make([]domain.Citation, 0, len(indices))
	for _, idx := range indices {
		ref, ok := rc.Resolve(idx)
		if !ok || ref.URL == "" {
			continue
		}
		out = append(out, domain.Citation{Title: ref.Title, URL: ref.URL})
	}
	return out
}
