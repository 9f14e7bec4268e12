package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	results []llm.Result
	errs    []error
	calls   [][]llm.Message
	opts    []llm.Options
}

func (s *scriptedGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	i := len(s.calls)
	s.calls = append(s.calls, messages)
	s.opts = append(s.opts, opts)
	var res llm.Result
	var err error
	if i < len(s.results) {
		res = s.results[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return res, err
}

func sampleInput(correct bool) Input {
	selected := "B"
	if correct {
		selected = "A"
	}
	return Input{
		Question: Question{
			ID:            "7",
			Stem:          "A 70-year-old with sudden aphasia. Next step?",
			Options:       map[string]string{"A": "Alteplase", "B": "Aspirin", "C": "Heparin", "D": "Observe"},
			CorrectLetter: "A",
			Subspecialty:  "Vascular Neurology",
		},
		SelectedAnswer: selected,
		Reasoning:      "I first thought of aspirin because it is common in stroke.",
		IsCorrect:      correct,
	}
}

func TestAnalyzeParsesGeneratedFeedback(t *testing.T) {
	feedback := "<p>You showed **anchoring** on antiplatelets. You should review the thrombolysis time window, " +
		"and there is a misconception that aspirin is first line in the hyperacute phase.</p>"
	gen := &scriptedGenerator{results: []llm.Result{{Kind: llm.ResultText, Text: feedback}}}

	a := NewAnalyzer(gen, 0, nil).Analyze(context.Background(), sampleInput(false))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, SourceAI, a.Source)
	assert.Equal(t, AnchoringBias, a.PrimaryBias)
	assert.Contains(t, a.SecondaryBias, Misconception)
	assert.Equal(t, []string{"the thrombolysis time window"}, a.KnowledgeGaps)
	assert.Equal(t, []string{"aspirin is first line in the hyperacute phase"}, a.Misconceptions)
	assert.Equal(t, QualityFair, a.Quality)
	assert.Equal(t, 40, a.Confidence)
	assert.Contains(t, a.Summary, "<strong>anchoring</strong>")
	assert.Contains(t, a.Summary, `class="clinical-reasoning-analysis ai-generated"`)
	assert.Equal(t, 1600, gen.opts[0].MaxOutputTokens)
}

func TestAnalyzeIncorrectWithoutNamedBiasIsKnowledgeGap(t *testing.T) {
	gen := &scriptedGenerator{results: []llm.Result{{Kind: llm.ResultText, Text: "<p>Compare the options carefully.</p>"}}}

	a := NewAnalyzer(gen, 0, nil).Analyze(context.Background(), sampleInput(false))
	assert.Equal(t, KnowledgeGap, a.PrimaryBias)
}

func TestAnalyzeRetriesMinimalPromptOnEmpty(t *testing.T) {
	gen := &scriptedGenerator{results: []llm.Result{
		{Kind: llm.ResultEmpty},
		{Kind: llm.ResultText, Text: "<p>Excellent and thorough reasoning.</p>"},
	}}

	a := NewAnalyzer(gen, 0, nil).Analyze(context.Background(), sampleInput(true))

	require.Len(t, gen.calls, 2)
	assert.True(t, gen.opts[1].UseFallback)
	assert.Equal(t, 900, gen.opts[1].MaxOutputTokens)
	assert.Contains(t, gen.calls[1][0].Content, "You are a neurologist educator. Return HTML only")
	assert.Equal(t, SourceAI, a.Source)
	assert.Equal(t, QualityExcellent, a.Quality)
	assert.Equal(t, 100, a.Confidence)
	assert.Empty(t, a.PrimaryBias)
}

func TestAnalyzeFallsBackToRules(t *testing.T) {
	tests := []struct {
		name string
		gen  *scriptedGenerator
	}{
		{"generator error", &scriptedGenerator{errs: []error{errors.New("boom")}}},
		{"empty twice", &scriptedGenerator{results: []llm.Result{{Kind: llm.ResultEmpty}, {Kind: llm.ResultEmpty}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.gen, 0, nil).Analyze(context.Background(), sampleInput(false))
			assert.Equal(t, SourceRuleBased, a.Source)
			assert.Contains(t, a.Summary, "Clinical Reasoning Analysis")
		})
	}

	a := NewAnalyzer(nil, 0, nil).Analyze(context.Background(), sampleInput(true))
	assert.Equal(t, SourceRuleBased, a.Source)
}

func TestRuleBased(t *testing.T) {
	a := RuleBased(sampleInput(false))

	assert.Equal(t, AnchoringBias, a.PrimaryBias)
	assert.Equal(t, []Bias{AvailabilityHeuristic}, a.SecondaryBias)
	assert.Equal(t, []string{
		"Limited reasoning depth for Vascular Neurology topic",
		"Missing pathophysiological understanding",
	}, a.KnowledgeGaps)
	assert.Empty(t, a.Misconceptions)
	assert.Equal(t, QualityFair, a.Quality)
	assert.Equal(t, 56, a.Confidence)
	assert.Contains(t, a.Summary, "the correct answer was <strong>A</strong>")
	assert.Contains(t, a.Summary, "Identified cognitive patterns: Anchoring Bias, Availability Heuristic")
}

func TestRuleBasedCorrectSkipsIncorrectOnlyBiases(t *testing.T) {
	in := sampleInput(true)
	in.Reasoning = "Clearly this is within the window and I am sure the mechanism is thrombotic occlusion of the MCA."

	a := RuleBased(in)
	assert.Empty(t, a.PrimaryBias)
	assert.Equal(t, []string{"Limited reasoning depth for Vascular Neurology topic"}, a.KnowledgeGaps)
	assert.Equal(t, QualityFair, a.Quality)
	assert.Contains(t, a.Summary, "Well done!")
}

func TestRuleBasedShortReasoningIsPoor(t *testing.T) {
	in := sampleInput(true)
	in.Reasoning = "Seems right."
	assert.Equal(t, QualityPoor, RuleBased(in).Quality)
}

func TestBuildSteps(t *testing.T) {
	steps := BuildSteps(Analysis{
		PrimaryBias:   AnchoringBias,
		SecondaryBias: []Bias{KnowledgeGap},
		KnowledgeGaps: []string{"stroke <windows>"},
		Summary:       "<p>summary</p>",
	})

	require.Len(t, steps, 3)
	assert.Equal(t, StepAnalysis, steps[0].Title)
	assert.Equal(t, "<p>summary</p>", steps[0].Content)
	assert.Equal(t, StepReview, steps[1].Title)
	assert.Contains(t, steps[1].Content, "<li>stroke &lt;windows&gt;</li>")
	assert.Equal(t, StepPattern, steps[2].Title)
	assert.Contains(t, steps[2].Content, "Focusing too early on one diagnosis")
	assert.Contains(t, steps[2].Content, "Missing key medical knowledge")

	assert.Len(t, BuildSteps(Analysis{Summary: "x"}), 1)
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder()
	assert.Equal(t, QualityAnalyzing, p.Quality)
	assert.Equal(t, 0, p.Confidence)
	assert.Len(t, BuildSteps(p), 1)
}
