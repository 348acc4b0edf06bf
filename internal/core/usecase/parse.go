package usecase

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// blurbOutput is the single-blurb flavor shape.
type blurbOutput struct {
	Blurb     string    `json:"blurb"`
	Citations indexList `json:"citations"`
}

// issueOutput is one element of the per-issue flavor array.
type issueOutput struct {
	Issue         string    `json:"issue"`
	Annotation    string    `json:"annotation"`
	SourceIndices indexList `json:"sourceIndices"`
}

// budgetCategoryOutput is one row of the category-table flavor.
type budgetCategoryOutput struct {
	Explanation            string       `json:"explanation"`
	ProjectedChangePercent lenientFloat `json:"projectedChangePercent"`
	Direction              string       `json:"direction"`
	Citations              indexList    `json:"citations"`
}

type budgetOutput struct {
	Categories map[string]budgetCategoryOutput `json:"categories"`
}

// indexList tolerates the citation-shape mistakes models actually make:
// floats instead of ints, a bare int instead of an array, or a non-array
// value. Anything unusable decodes to an empty list rather than failing the
// whole parse; repairing citations is safe because the resolver drops
// anything that does not map to a real source anyway.
type indexList []int

func (l *indexList) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err == nil {
		*l = ints
		return nil
	}
	var floats []float64
	if err := json.Unmarshal(data, &floats); err == nil {
		out := make([]int, 0, len(floats))
		for _, f := range floats {
			if !math.IsNaN(f) && !math.IsInf(f, 0) {
				out = append(out, int(f))
			}
		}
		*l = out
		return nil
	}
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*l = []int{single}
		return nil
	}
	*l = nil
	return nil
}

// lenientFloat parses a number or a numeric string; anything non-finite or
// unparseable coerces to 0.
type lenientFloat float64

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		*f = lenientFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		*f = lenientFloat(v)
		return nil
	}
	*f = 0
	return nil
}

// stripCodeFences removes a single layer of triple-backtick wrapping,
// case-insensitively for the language tag. Idempotent: stripping already
// stripped content is a no-op.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && strings.EqualFold(strings.TrimSpace(s[:idx]), "json") {
		s = s[idx+1:]
	} else if strings.HasPrefix(strings.ToLower(s), "json") {
		s = s[4:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseBlurb validates the single-blurb flavor. The blurb text itself is
// never repaired; an empty blurb is a schema violation.
func parseBlurb(raw string) (*blurbOutput, error) {
	content := stripCodeFences(raw)

	var out blurbOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, domain.NewMalformedOutputError(domain.FlavorBlurb, content, err)
	}
	if strings.TrimSpace(out.Blurb) == "" {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "blurb output", errors.New("missing blurb text"))
	}
	return &out, nil
}

// parseIssueAnnotations validates the per-issue array flavor. The array must
// end up with at least one usable element; an empty array is a contract
// violation, never "no relevant issues".
func parseIssueAnnotations(raw string, issueKeys []string) ([]issueOutput, error) {
	content := stripCodeFences(raw)

	var out []issueOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, domain.NewMalformedOutputError(domain.FlavorIssues, content, err)
	}

	allowed := make(map[string]struct{}, len(issueKeys))
	for _, k := range issueKeys {
		allowed[k] = struct{}{}
	}

	kept := out[:0]
	for _, a := range out {
		if strings.TrimSpace(a.Annotation) == "" {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[a.Issue]; !ok {
				continue
			}
		}
		kept = append(kept, a)
	}

	if len(kept) == 0 {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "issue annotations", errors.New("no usable annotation elements"))
	}
	return kept, nil
}

// parseBudget validates the category-table flavor and reconciles the model's
// output against the complete fixed category list: omitted categories are
// synthesized with the neutral default rather than dropped, so callers always
// receive the full set. Category names not in the fixed list are discarded.
func parseBudget(raw string, categories []string) (map[string]budgetCategoryOutput, error) {
	content := stripCodeFences(raw)

	var out budgetOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, domain.NewMalformedOutputError(domain.FlavorBudget, content, err)
	}

	result := make(map[string]budgetCategoryOutput, len(categories))
	for _, name := range categories {
		cat, ok := out.Categories[name]
		if !ok || strings.TrimSpace(cat.Explanation) == "" {
			result[name] = budgetCategoryOutput{
				Explanation:            domain.NeutralExplanation,
				ProjectedChangePercent: 0,
				Direction:              string(domain.DirectionNoChange),
				Citations:              nil,
			}
			continue
		}
		if !domain.ValidDirection(domain.Direction(cat.Direction)) {
			cat.Direction = string(domain.DeriveDirection(float64(cat.ProjectedChangePercent)))
		}
		result[name] = cat
	}
	return result, nil
}
