package reasoning

import (
	"html"
	"strings"
)

// Step is one page of the guided review shown to the learner.
type Step struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Question string `json:"question,omitempty"`
	Evidence string `json:"evidence,omitempty"`
	Action   string `json:"action,omitempty"`
}

const (
	StepAnalysis = "Clinical Reasoning Analysis"
	StepReview   = "Areas for Review"
	StepPattern  = "Reasoning Pattern Analysis"
)

// BuildSteps turns an analysis into guidance steps. The analysis step is
// always first; review and pattern steps follow when there is material.
func BuildSteps(a Analysis) []Step {
	steps := []Step{{Title: StepAnalysis, Content: a.Summary}}

	if len(a.KnowledgeGaps) > 0 {
		steps = append(steps, Step{
			Title:   StepReview,
			Content: formatGaps(a.KnowledgeGaps),
			Action:  "Review these topics to strengthen your clinical reasoning",
		})
	}

	if a.PrimaryBias != "" {
		steps = append(steps, Step{
			Title:   StepPattern,
			Content: formatBiases(a.PrimaryBias, a.SecondaryBias),
			Action:  "Reflect on these patterns to improve diagnostic accuracy",
		})
	}
	return steps
}

func formatGaps(gaps []string) string {
	var b strings.Builder
	b.WriteString("<p>Consider reviewing these areas:</p><ul>")
	for _, g := range gaps {
		b.WriteString("<li>" + html.EscapeString(g) + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func formatBiases(primary Bias, secondary []Bias) string {
	var b strings.Builder
	b.WriteString("<p><strong>Primary pattern identified:</strong> " + primary.Description() + "</p>")
	if len(secondary) > 0 {
		b.WriteString("<p>Also consider:</p><ul>")
		for _, s := range secondary {
			b.WriteString("<li>" + s.Description() + "</li>")
		}
		b.WriteString("</ul>")
	}
	return b.String()
}
