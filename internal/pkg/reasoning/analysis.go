package reasoning

import (
	"math"
	"regexp"
	"strings"
)

type Bias string

const (
	AnchoringBias         Bias = "anchoring_bias"
	ConfirmationBias      Bias = "confirmation_bias"
	AvailabilityHeuristic Bias = "availability_heuristic"
	PrematureClosure      Bias = "premature_closure"
	OverconfidenceBias    Bias = "overconfidence_bias"
	KnowledgeGap          Bias = "knowledge_gap"
	Misconception         Bias = "misconception"
)

var biasDescriptions = map[Bias]string{
	AnchoringBias:         "Focusing too early on one diagnosis without considering alternatives",
	ConfirmationBias:      "Selectively interpreting information to support initial impression",
	AvailabilityHeuristic: "Overweighting recent or memorable cases",
	PrematureClosure:      "Accepting a diagnosis before verification",
	OverconfidenceBias:    "Expressing more certainty than the evidence supports",
	KnowledgeGap:          "Missing key medical knowledge for this topic",
	Misconception:         "Incorrect understanding of medical concepts",
}

func (b Bias) Description() string {
	if d, ok := biasDescriptions[b]; ok {
		return d
	}
	return "Learning opportunity identified"
}

type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
	// QualityAnalyzing marks a placeholder while a background analysis runs.
	QualityAnalyzing Quality = "analyzing"
)

const (
	SourceAI          = "ai"
	SourceRuleBased   = "rule_based"
	SourcePlaceholder = "placeholder"
)

// Question is the MCQ context an analysis is produced for.
type Question struct {
	ID            string
	Stem          string
	Options       map[string]string
	CorrectLetter string
	Explanation   string
	Subspecialty  string
}

type Input struct {
	Question       Question
	SelectedAnswer string
	Reasoning      string
	IsCorrect      bool
}

type Analysis struct {
	PrimaryBias    Bias     `json:"primary_bias,omitempty"`
	SecondaryBias  []Bias   `json:"secondary_biases"`
	KnowledgeGaps  []string `json:"knowledge_gaps"`
	Misconceptions []string `json:"misconceptions"`
	Quality        Quality  `json:"reasoning_quality"`
	Confidence     int      `json:"confidence"`
	Summary        string   `json:"summary"`
	Source         string   `json:"source"`
}

// Placeholder is returned while a background analysis is pending.
func Placeholder() Analysis {
	return Analysis{
		SecondaryBias:  []Bias{},
		KnowledgeGaps:  []string{},
		Misconceptions: []string{},
		Quality:        QualityAnalyzing,
		Confidence:     0,
		Summary:        `<div class="clinical-reasoning-analysis"><p>Your reasoning is being analyzed. This usually takes a few seconds.</p></div>`,
		Source:         SourcePlaceholder,
	}
}

var aiBiasPatterns = []struct {
	bias  Bias
	terms []string
}{
	{AnchoringBias, []string{"anchoring", "fixated", "premature conclusion"}},
	{ConfirmationBias, []string{"confirmation bias", "selective attention"}},
	{AvailabilityHeuristic, []string{"availability", "recent case", "common presentation"}},
	{PrematureClosure, []string{"premature closure", "stopped thinking", "didn't consider"}},
	{KnowledgeGap, []string{"knowledge gap", "didn't know", "unfamiliar with"}},
	{Misconception, []string{"misconception", "incorrect understanding", "misunderstood"}},
}

var (
	gapPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)should review (.+?)(?:\.|,)`),
		regexp.MustCompile(`(?i)gap in understanding of (.+?)(?:\.|,)`),
		regexp.MustCompile(`(?i)need to strengthen knowledge of (.+?)(?:\.|,)`),
		regexp.MustCompile(`(?i)important to understand (.+?)(?:\.|,)`),
	}
	misconceptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)misconception that (.+?)(?:\.|,)`),
		regexp.MustCompile(`(?i)incorrectly assumed (.+?)(?:\.|,)`),
		regexp.MustCompile(`(?i)mistaken belief that (.+?)(?:\.|,)`),
	}
	boldMarkdown   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicMarkdown = regexp.MustCompile(`\*(.+?)\*`)
)

const maxExtracted = 3

// detectBiases reads bias tags out of generated feedback. An incorrect
// answer with no named bias is tagged as a knowledge gap.
func detectBiases(feedback string, isCorrect bool) []Bias {
	lowered := strings.ToLower(feedback)
	var out []Bias
	for _, p := range aiBiasPatterns {
		for _, term := range p.terms {
			if strings.Contains(lowered, term) {
				out = append(out, p.bias)
				break
			}
		}
	}
	if !isCorrect && len(out) == 0 {
		out = append(out, KnowledgeGap)
	}
	return out
}

func extractPhrases(text string, patterns []*regexp.Regexp) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			phrase := strings.TrimSpace(m[1])
			if len(phrase) <= 10 {
				continue
			}
			if _, ok := seen[phrase]; ok {
				continue
			}
			seen[phrase] = struct{}{}
			out = append(out, phrase)
			if len(out) == maxExtracted {
				return out
			}
		}
	}
	return out
}

func qualityFromFeedback(feedback string, isCorrect bool) Quality {
	lowered := strings.ToLower(feedback)
	has := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(lowered, t) {
				return true
			}
		}
		return false
	}
	if isCorrect {
		switch {
		case has("excellent", "comprehensive", "thorough", "strong"):
			return QualityExcellent
		case has("good", "sound", "appropriate"):
			return QualityGood
		}
		return QualityFair
	}
	if has("significant gap", "major error", "fundamental") {
		return QualityPoor
	}
	return QualityFair
}

var qualityScores = map[Quality]float64{
	QualityExcellent: 0.9,
	QualityGood:      0.75,
	QualityFair:      0.5,
	QualityPoor:      0.25,
}

// confidenceFor maps quality and correctness to a 0..100 score.
func confidenceFor(q Quality, isCorrect bool) int {
	score, ok := qualityScores[q]
	if !ok {
		score = 0.5
	}
	if isCorrect {
		score = math.Min(score+0.1, 1)
	} else {
		score = math.Max(score-0.1, 0)
	}
	return percent(score)
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

func formatFeedbackHTML(feedback string) string {
	html := "<div class=\"clinical-reasoning-analysis ai-generated\">\n" + strings.TrimSpace(feedback) + "\n</div>"
	html = boldMarkdown.ReplaceAllString(html, "<strong>$1</strong>")
	return italicMarkdown.ReplaceAllString(html, "<em>$1</em>")
}

func analysisFromFeedback(feedback string, isCorrect bool) Analysis {
	biases := detectBiases(feedback, isCorrect)
	quality := qualityFromFeedback(feedback, isCorrect)
	a := Analysis{
		SecondaryBias:  []Bias{},
		KnowledgeGaps:  extractPhrases(feedback, gapPatterns),
		Misconceptions: extractPhrases(feedback, misconceptionPatterns),
		Quality:        quality,
		Confidence:     confidenceFor(quality, isCorrect),
		Summary:        formatFeedbackHTML(feedback),
		Source:         SourceAI,
	}
	if len(biases) > 0 {
		a.PrimaryBias = biases[0]
		a.SecondaryBias = biases[1:]
	}
	return a
}
