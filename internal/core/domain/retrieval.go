package domain

// RetrievedPassage is one scored chunk of source text returned by the vector
// index. Ephemeral: produced per retrieval call, never persisted. Score has no
// fixed range; higher is better.
type RetrievedPassage struct {
	VectorID string  `json:"vector_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Type     string  `json:"type"`
	Source   string  `json:"source"`
}

// SourceRef is the resolved form of a citation: the title and URL the
// retriever saw, never anything the model invented.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PassageFilter is an opaque metadata predicate passed through to the vector
// index unmodified.
type PassageFilter struct {
	Type string
}

// RetrievalContext is the output of one retrieval call. Sources[i] carries
// the {title,url} for "Source i+1"; the numbering is locked here, before
// prompting, and must not change until citations are resolved.
type RetrievalContext struct {
	Passages  []RetrievedPassage
	Block     string
	Sources   []SourceRef
	VectorIDs []string
}

// Empty reports whether no passages were retrieved. Not an error condition;
// prompts built on an empty context instruct the model to say so.
func (c *RetrievalContext) Empty() bool {
	return len(c.Passages) == 0
}

// Resolve maps a model-emitted 1-based source index to its SourceRef.
func (c *RetrievalContext) Resolve(index int) (SourceRef, bool) {
	if index < 1 || index > len(c.Sources) {
		return SourceRef{}, false
	}
	return c.Sources[index-1], true
}

// UsedVectorSet tracks passages already surfaced to the model within one
// batch, so later items in the batch are pushed toward fresh sources.
// It is deliberately the only mutable shared state in the pipeline and is
// always passed explicitly, never held as a package-level singleton.
type UsedVectorSet struct {
	ids map[string]struct{}
}

func NewUsedVectorSet() *UsedVectorSet {
	return &UsedVectorSet{ids: make(map[string]struct{})}
}

func (s *UsedVectorSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

func (s *UsedVectorSet) Add(ids ...string) {
	if s == nil {
		return
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *UsedVectorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}
