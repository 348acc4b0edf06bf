package domain

import (
	"sort"
	"time"
)

type ItemKind string

const (
	KindQuestion ItemKind = "question"
	KindRace     ItemKind = "race"
	KindPolicy   ItemKind = "policy"
)

// BallotItem is one annotatable entity: a ballot question, a candidate race,
// or a policy. Immutable once loaded.
type BallotItem struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"kind"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VoterProfile steers prompt context only. Issue keywords are open-ended
// free text, never validated against a taxonomy; demographics are optional.
type VoterProfile struct {
	ID           string              `json:"id"`
	Issues       map[string][]string `json:"issues"`
	Demographics Demographics        `json:"demographics"`
	CreatedAt    time.Time           `json:"created_at"`
}

type Demographics struct {
	Age        int    `json:"age,omitempty"`
	Zip        string `json:"zip,omitempty"`
	Income     string `json:"income,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Education  string `json:"education,omitempty"`
	AboutYou   string `json:"about_you,omitempty"`
}

// IssueKeys returns the profile's issue keys in deterministic order.
func (p VoterProfile) IssueKeys() []string {
	keys := make([]string, 0, len(p.Issues))
	for k := range p.Issues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
