package usecase

import (
	"strings"
	"testing"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

func TestSystemPromptSharedContract(t *testing.T) {
	for _, flavor := range []domain.Flavor{domain.FlavorBlurb, domain.FlavorBudget, domain.FlavorIssues} {
		prompt := systemPromptFor(flavor, []string{"Education"}, []string{"housing"})
		for _, want := range []string{
			"ONLY valid JSON",
			"No markdown fences",
			"integer index",
			"insufficient",
		} {
			if !strings.Contains(prompt, want) {
				t.Fatalf("flavor %s system prompt missing %q:\n%s", flavor, want, prompt)
			}
		}
	}
}

func TestSystemPromptBudgetListsAllCategories(t *testing.T) {
	categories := []string{"Education", "Public Safety", "Parks"}
	prompt := systemPromptFor(domain.FlavorBudget, categories, nil)
	for _, c := range categories {
		if !strings.Contains(prompt, c) {
			t.Fatalf("budget prompt missing category %q", c)
		}
	}
	if !strings.Contains(prompt, "net to zero") {
		t.Fatalf("budget prompt missing net-to-zero hint")
	}
}

func TestSystemPromptIssuesListsProfileKeys(t *testing.T) {
	prompt := systemPromptFor(domain.FlavorIssues, nil, []string{"housing", "transit"})
	if !strings.Contains(prompt, "housing, transit") {
		t.Fatalf("issues prompt missing issue keys:\n%s", prompt)
	}
	if !strings.Contains(prompt, "at least one element") {
		t.Fatalf("issues prompt missing minimum-element requirement")
	}
}

func TestUserPromptContainsItemSourcesAndProfile(t *testing.T) {
	item := testItem()
	rc := buildRetrievalContext(item, []domain.RetrievedPassage{passage("a", 0.9)})
	prompt := userPrompt(item, rc, testProfile())

	for _, want := range []string{
		item.Title,
		"[Source 1] Title a",
		"housing: rent, zoning",
		"age 34",
		"zip 02139",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestUserPromptEmptyContext(t *testing.T) {
	item := testItem()
	rc := buildRetrievalContext(item, nil)
	prompt := userPrompt(item, rc, domain.VoterProfile{})
	if !strings.Contains(prompt, emptyContextBlock) {
		t.Fatalf("empty-context prompt must carry the no-sources marker:\n%s", prompt)
	}
}

func TestProfileBlockOmitsEmptyAttributes(t *testing.T) {
	block := profileBlock(domain.VoterProfile{})
	if block != "" {
		t.Fatalf("expected empty block for empty profile, got %q", block)
	}
}
