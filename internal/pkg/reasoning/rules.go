package reasoning

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
)

func wordsPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var ruleBiases = []struct {
	bias          Bias
	pattern       *regexp.Regexp
	incorrectOnly bool
}{
	{AnchoringBias, wordsPattern("first", "initially", "immediately thought", "obvious", "clearly"), true},
	{ConfirmationBias, wordsPattern("confirms", "supports my", "proves", "obviously"), false},
	{AvailabilityHeuristic, wordsPattern("remember", "seen before", "common", "usually", "most cases"), false},
	{PrematureClosure, wordsPattern("enough", "sufficient", "done", "complete picture"), true},
	{OverconfidenceBias, wordsPattern("definitely", "certainly", "no doubt", "absolutely", "sure"), true},
}

var (
	uncertaintyPattern = wordsPattern("don't know", "not sure", "unclear", "confused", "don't understand")
	mechanismPattern   = wordsPattern("mechanism", "pathway")
)

// RuleBased analyses the learner's own reasoning text with fixed keyword
// rules. It is deterministic and never fails.
func RuleBased(in Input) Analysis {
	reasoning := strings.TrimSpace(in.Reasoning)
	lowered := strings.ToLower(reasoning)

	var biases []Bias
	for _, r := range ruleBiases {
		if r.incorrectOnly && in.IsCorrect {
			continue
		}
		if r.pattern.MatchString(reasoning) {
			biases = append(biases, r.bias)
		}
	}

	gaps := []string{}
	if uncertaintyPattern.MatchString(reasoning) {
		gaps = append(gaps, "Expressed uncertainty about core concepts")
	}
	if s := strings.TrimSpace(in.Question.Subspecialty); s != "" && len(reasoning) < 100 {
		gaps = append(gaps, fmt.Sprintf("Limited reasoning depth for %s topic", s))
	}
	if !mechanismPattern.MatchString(reasoning) {
		gaps = append(gaps, "Missing pathophysiological understanding")
	}

	misconceptions := []string{}
	if strings.Contains(lowered, "stroke") && strings.Contains(lowered, "hemorrhagic") && strings.Contains(lowered, "anticoagulation") {
		misconceptions = append(misconceptions, "Misconception about anticoagulation in hemorrhagic stroke")
	}
	if strings.Contains(lowered, "seizure") && strings.Contains(lowered, "tongue") {
		misconceptions = append(misconceptions, "Misconception about tongue biting as diagnostic for seizures")
	}

	if !in.IsCorrect && len(biases) == 0 {
		biases = append(biases, KnowledgeGap)
	}

	quality := ruleQuality(reasoning, in.IsCorrect)
	a := Analysis{
		SecondaryBias:  []Bias{},
		KnowledgeGaps:  gaps,
		Misconceptions: misconceptions,
		Quality:        quality,
		Confidence:     ruleConfidence(reasoning, len(biases)),
		Summary:        ruleSummary(in, biases, gaps, misconceptions),
		Source:         SourceRuleBased,
	}
	if len(biases) > 0 {
		a.PrimaryBias = biases[0]
		a.SecondaryBias = biases[1:]
	}
	return a
}

func ruleQuality(reasoning string, isCorrect bool) Quality {
	n := len(reasoning)
	var q Quality
	switch {
	case n < 50:
		return QualityPoor
	case n < 150:
		q = QualityFair
	case n < 300:
		q = QualityGood
	default:
		q = QualityExcellent
	}
	if !isCorrect {
		q = QualityFair
	}
	return q
}

func ruleConfidence(reasoning string, biasCount int) int {
	lengthBonus := math.Min(0.2, float64(len(reasoning))/1000)
	score := 0.7 + lengthBonus - float64(biasCount)*0.1
	return percent(math.Max(0.1, math.Min(1, score)))
}

func ruleSummary(in Input, biases []Bias, gaps, misconceptions []string) string {
	var b strings.Builder
	b.WriteString("<div class=\"clinical-reasoning-analysis\">\n<h3>Clinical Reasoning Analysis</h3>\n")
	selected := html.EscapeString(in.SelectedAnswer)
	if in.IsCorrect {
		fmt.Fprintf(&b, "<p><strong>Well done!</strong> You correctly identified %s as the answer.</p>\n", selected)
		b.WriteString("<p><strong>Key Learning:</strong> Focus on the pathophysiological mechanisms and clinical correlations that support your diagnosis.</p>\n")
	} else {
		fmt.Fprintf(&b, "<p>You selected <strong>%s</strong>, but the correct answer was <strong>%s</strong>.</p>\n",
			selected, html.EscapeString(in.Question.CorrectLetter))
		b.WriteString("<p><strong>Learning Point:</strong> Systematic analysis of clinical presentations helps identify the features that distinguish similar conditions.</p>\n")
	}

	var parts []string
	if len(biases) > 0 {
		names := make([]string, 0, 2)
		for i, bias := range biases {
			if i == 2 {
				break
			}
			names = append(names, titleCase(string(bias)))
		}
		parts = append(parts, "Identified cognitive patterns: "+strings.Join(names, ", "))
	}
	if len(gaps) > 0 {
		parts = append(parts, fmt.Sprintf("Knowledge gaps in %d areas", len(gaps)))
	}
	if len(misconceptions) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d potential misconceptions", len(misconceptions)))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "<p>%s.</p>\n", strings.Join(parts, ". "))
	}
	b.WriteString("</div>")
	return b.String()
}

func titleCase(tag string) string {
	words := strings.Split(tag, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
