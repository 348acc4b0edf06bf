package domain

import "time"

// Flavor selects the structured output shape the model is asked for.
type Flavor string

const (
	FlavorBlurb  Flavor = "blurb"
	FlavorBudget Flavor = "budget_table"
	FlavorIssues Flavor = "issue_annotations"
)

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Annotation is one personalized, citation-backed explanation of a ballot
// item for a single profile issue. Immutable output.
type Annotation struct {
	ItemID    string     `json:"item_id"`
	Issue     string     `json:"issue"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Blurb is the single-paragraph flavor result.
type Blurb struct {
	ItemID    string     `json:"item_id"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionNoChange Direction = "no_change"
)

// NeutralExplanation fills budget categories the model omitted. Never a guess
// at content: it states that the provided materials were insufficient.
const NeutralExplanation = "Insufficient sourced evidence in provided materials."

// BudgetCategory is one row of the category-table flavor.
type BudgetCategory struct {
	Explanation            string     `json:"explanation"`
	ProjectedChangePercent float64    `json:"projected_change_percent"`
	Direction              Direction  `json:"direction"`
	Citations              []Citation `json:"citations"`
}

// BudgetBreakdown always holds exactly the caller-supplied fixed category
// set; omitted categories are reconciled to a neutral default, never dropped.
type BudgetBreakdown struct {
	ItemID     string                    `json:"item_id"`
	Categories map[string]BudgetCategory `json:"categories"`
}

// DeriveDirection maps a signed percent to its direction literal.
func DeriveDirection(percent float64) Direction {
	switch {
	case percent > 0:
		return DirectionIncrease
	case percent < 0:
		return DirectionDecrease
	default:
		return DirectionNoChange
	}
}

func ValidDirection(d Direction) bool {
	switch d {
	case DirectionIncrease, DirectionDecrease, DirectionNoChange:
		return true
	}
	return false
}

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// AnnotationJob is one queued batch: a set of ballot items annotated for a
// single profile, sharing one UsedVectorSet.
type AnnotationJob struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	ItemIDs   []string  `json:"item_ids"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
