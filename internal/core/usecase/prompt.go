package usecase

import (
	"fmt"
	"strings"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// All three flavors share one contract: the model returns ONLY valid JSON,
// cites sources exclusively by the integer indices of the numbered block it
// was given, and states insufficient evidence explicitly instead of
// fabricating. The flavors differ only in the required JSON shape.

const systemPromptBase = `You are a nonpartisan civic-education assistant.
Rules:
- Return ONLY valid JSON matching the requested shape. No markdown fences, no prose outside the JSON.
- Use ONLY the numbered sources provided. Do not use outside knowledge.
- Cite sources ONLY by their integer index (the N in "Source N"). Never invent titles or URLs.
- If the provided sources are insufficient to answer, say so explicitly in the text field instead of guessing.`

func systemPromptFor(flavor domain.Flavor, categories []string, issueKeys []string) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	b.WriteString("\n\nRequired JSON shape:\n")

	switch flavor {
	case domain.FlavorBlurb:
		b.WriteString(`{"blurb": string, "citations": [int, ...]}`)

	case domain.FlavorBudget:
		b.WriteString(`{"categories": {<category name>: {"explanation": string, "projectedChangePercent": signed float, "direction": "increase"|"decrease"|"no_change", "citations": [int, ...]}}}`)
		b.WriteString("\nEvery one of these category names must appear as a key, with no others: ")
		b.WriteString(strings.Join(categories, ", "))
		b.WriteString("\nPercentages should roughly net to zero across categories.")

	case domain.FlavorIssues:
		b.WriteString(`[{"issue": string, "annotation": string, "sourceIndices": [int, ...]}, ...]`)
		b.WriteString("\nThe array must contain at least one element. Each \"issue\" must be exactly one of: ")
		b.WriteString(strings.Join(issueKeys, ", "))
		b.WriteString("\nIf no listed issue is strongly relevant, still return one element explaining the item in general terms under the closest issue.")
	}

	return b.String()
}

func userPrompt(item domain.BallotItem, rc *domain.RetrievalContext, profile domain.VoterProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ballot item (%s): %s\n%s\n\n", item.Kind, item.Title, strings.TrimSpace(item.Text))

	b.WriteString(rc.Block)
	b.WriteString("\n\n")

	if block := profileBlock(profile); block != "" {
		b.WriteString(block)
	}

	return strings.TrimRight(b.String(), "\n")
}

// profileBlock renders the voter's issues and demographics for prompt context
// only. Issue keywords are free text and echoed as-is.
func profileBlock(profile domain.VoterProfile) string {
	var b strings.Builder

	if len(profile.Issues) > 0 {
		b.WriteString("Voter's issues:\n")
		for _, key := range profile.IssueKeys() {
			fmt.Fprintf(&b, "- %s: %s\n", key, strings.Join(profile.Issues[key], ", "))
		}
	}

	d := profile.Demographics
	var attrs []string
	if d.Age > 0 {
		attrs = append(attrs, fmt.Sprintf("age %d", d.Age))
	}
	if d.Zip != "" {
		attrs = append(attrs, "zip "+d.Zip)
	}
	if d.Income != "" {
		attrs = append(attrs, "income "+d.Income)
	}
	if d.Occupation != "" {
		attrs = append(attrs, "occupation "+d.Occupation)
	}
	if d.Education != "" {
		attrs = append(attrs, "education "+d.Education)
	}
	if len(attrs) > 0 {
		b.WriteString("Voter: " + strings.Join(attrs, ", ") + "\n")
	}
	if d.AboutYou != "" {
		b.WriteString("About the voter: " + d.AboutYou + "\n")
	}

	return b.String()
}
