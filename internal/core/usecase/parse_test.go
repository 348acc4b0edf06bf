package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

func TestStripCodeFencesIsIdempotent(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"bare json", `{"blurb":"x","citations":[1]}`},
		{"fenced", "```json\n{\"blurb\":\"x\",\"citations\":[1]}\n```"},
		{"fenced uppercase tag", "```JSON\n{\"blurb\":\"x\",\"citations\":[1]}\n```"},
		{"fenced no tag", "```\n{\"blurb\":\"x\",\"citations\":[1]}\n```"},
		{"fenced no newline", "```json{\"blurb\":\"x\",\"citations\":[1]}```"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			once := stripCodeFences(tc.in)
			twice := stripCodeFences(once)
			if once != twice {
				t.Fatalf("strip not idempotent: %q vs %q", once, twice)
			}
			if _, err := parseBlurb(tc.in); err != nil {
				t.Fatalf("parseBlurb(%q) error = %v", tc.in, err)
			}
		})
	}
}

func TestParseBlurbMalformedCarriesRawSnippet(t *testing.T) {
	raw := "I think the answer is" + strings.Repeat(" definitely", 100)
	_, err := parseBlurb(raw)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}

	var malformed *domain.MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedOutputError, got %T", err)
	}
	if len(malformed.Raw) == 0 || len(malformed.Raw) > 500 {
		t.Fatalf("expected bounded raw snippet, got %d bytes", len(malformed.Raw))
	}
	if !strings.HasPrefix(malformed.Raw, "I think the answer is") {
		t.Fatalf("raw snippet should start with model content, got %q", malformed.Raw)
	}
}

func TestParseBlurbMissingTextIsSchemaViolation(t *testing.T) {
	_, err := parseBlurb(`{"blurb":"  ","citations":[1]}`)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestParseBlurbNonArrayCitationsCoercedToEmpty(t *testing.T) {
	out, err := parseBlurb(`{"blurb":"fine","citations":"not an array"}`)
	if err != nil {
		t.Fatalf("parseBlurb() error = %v", err)
	}
	if len(out.Citations) != 0 {
		t.Fatalf("expected empty citations, got %v", out.Citations)
	}
}

func TestParseBlurbFloatCitationIndices(t *testing.T) {
	out, err := parseBlurb(`{"blurb":"fine","citations":[1.0, 3.0]}`)
	if err != nil {
		t.Fatalf("parseBlurb() error = %v", err)
	}
	if len(out.Citations) != 2 || out.Citations[0] != 1 || out.Citations[1] != 3 {
		t.Fatalf("expected [1 3], got %v", out.Citations)
	}
}

func TestParseIssueAnnotationsEmptyArrayIsViolation(t *testing.T) {
	_, err := parseIssueAnnotations(`[]`, []string{"housing"})
	if err == nil {
		t.Fatalf("expected error for empty array")
	}
	if !domain.IsKind(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestParseIssueAnnotationsFiltersUnknownIssues(t *testing.T) {
	raw := `[
		{"issue":"housing","annotation":"affects rents","sourceIndices":[1]},
		{"issue":"made-up","annotation":"irrelevant","sourceIndices":[2]},
		{"issue":"transit","annotation":"","sourceIndices":[3]}
	]`
	out, err := parseIssueAnnotations(raw, []string{"housing", "transit"})
	if err != nil {
		t.Fatalf("parseIssueAnnotations() error = %v", err)
	}
	if len(out) != 1 || out[0].Issue != "housing" {
		t.Fatalf("expected only the housing annotation, got %+v", out)
	}
}

func TestParseBudgetFillsMissingCategories(t *testing.T) {
	categories := []string{"Education", "Public Safety", "Parks", "Transit"}
	raw := `{"categories":{
		"Education":{"explanation":"more funding","projectedChangePercent":2.5,"direction":"increase","citations":[1,2]},
		"Parks":{"explanation":"slight cut","projectedChangePercent":-1.0,"direction":"decrease","citations":[3]}
	}}`

	out, err := parseBudget(raw, categories)
	if err != nil {
		t.Fatalf("parseBudget() error = %v", err)
	}
	if len(out) != len(categories) {
		t.Fatalf("expected %d categories, got %d", len(categories), len(out))
	}
	for _, name := range []string{"Public Safety", "Transit"} {
		cat := out[name]
		if cat.Explanation != domain.NeutralExplanation {
			t.Fatalf("expected neutral explanation for %s, got %q", name, cat.Explanation)
		}
		if cat.ProjectedChangePercent != 0 || cat.Direction != string(domain.DirectionNoChange) {
			t.Fatalf("expected neutral default for %s, got %+v", name, cat)
		}
		if len(cat.Citations) != 0 {
			t.Fatalf("expected empty citations for %s", name)
		}
	}
	if out["Education"].ProjectedChangePercent != 2.5 {
		t.Fatalf("expected model value preserved, got %v", out["Education"].ProjectedChangePercent)
	}
}

func TestParseBudgetDropsUnknownCategories(t *testing.T) {
	raw := `{"categories":{"Invented":{"explanation":"x","projectedChangePercent":1,"direction":"increase","citations":[]}}}`
	out, err := parseBudget(raw, []string{"Education"})
	if err != nil {
		t.Fatalf("parseBudget() error = %v", err)
	}
	if _, ok := out["Invented"]; ok {
		t.Fatalf("unknown category should be discarded")
	}
	if _, ok := out["Education"]; !ok {
		t.Fatalf("fixed category missing from output")
	}
}

func TestParseBudgetDerivesDirectionFromSign(t *testing.T) {
	raw := `{"categories":{
		"A":{"explanation":"up","projectedChangePercent":3.2,"direction":"way up","citations":[]},
		"B":{"explanation":"down","projectedChangePercent":-0.4,"direction":"","citations":[]},
		"C":{"explanation":"flat","projectedChangePercent":0,"direction":"sideways","citations":[]}
	}}`
	out, err := parseBudget(raw, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("parseBudget() error = %v", err)
	}
	if out["A"].Direction != string(domain.DirectionIncrease) {
		t.Fatalf("expected increase, got %s", out["A"].Direction)
	}
	if out["B"].Direction != string(domain.DirectionDecrease) {
		t.Fatalf("expected decrease, got %s", out["B"].Direction)
	}
	if out["C"].Direction != string(domain.DirectionNoChange) {
		t.Fatalf("expected no_change, got %s", out["C"].Direction)
	}
}

func TestParseBudgetCoercesStringAndNonFinitePercent(t *testing.T) {
	raw := `{"categories":{
		"A":{"explanation":"stringy","projectedChangePercent":"1.5","direction":"increase","citations":[]},
		"B":{"explanation":"garbage","projectedChangePercent":"NaN","direction":"decrease","citations":[]}
	}}`
	out, err := parseBudget(raw, []string{"A", "B"})
	if err != nil {
		t.Fatalf("parseBudget() error = %v", err)
	}
	if out["A"].ProjectedChangePercent != 1.5 {
		t.Fatalf("expected 1.5, got %v", out["A"].ProjectedChangePercent)
	}
	if out["B"].ProjectedChangePercent != 0 {
		t.Fatalf("expected non-finite coerced to 0, got %v", out["B"].ProjectedChangePercent)
	}
}

func TestParseBudgetMalformedJSON(t *testing.T) {
	_, err := parseBudget(`{"categories": not json`, []string{"A"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}
