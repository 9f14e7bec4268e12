package reasoning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	systemPrompt = `You are a board-certified neurologist and medical educator. Analyze one learner's reasoning on an MCQ and return a resident-friendly teaching note.

Ground rules
- Quote the learner's words and address them directly (second person).
- Be specific, supportive and clinically accurate.
- Name the cognitive bias(es) explicitly (anchoring, premature closure, availability, confirmation bias, overconfidence) and tie each to the learner's wording.
- Explain why the correct answer is better than the chosen one using neuroanatomy, pathophysiology and test characteristics.
- When the learner should revisit a topic, write "You should review <topic>." so the topic can be tracked.

Output HTML only, no preamble, using <p>, <ul>, <ol>, <li> and <strong>.`

	minimalSystemPrompt = "You are a neurologist educator. Return HTML only (no preamble). " +
		"Give a one-paragraph verdict, then 4-6 bullets with key distinguishers and teaching points. " +
		"Aim for 180-250 words."

	maxOutputTokens        = 1600
	minimalMaxOutputTokens = 900
)

type Analyzer struct {
	gen     llm.GenerationClient
	timeout time.Duration
	log     *logrus.Logger
}

func NewAnalyzer(gen llm.GenerationClient, timeout time.Duration, log *logrus.Logger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{gen: gen, timeout: timeout, log: log}
}

// Analyze asks the generator for teaching feedback on the learner's
// reasoning. Any failure or unusable output falls back to RuleBased, so
// Analyze always returns an analysis.
func (a *Analyzer) Analyze(ctx context.Context, in Input) Analysis {
	fields := logrus.Fields{"mcq_id": in.Question.ID, "correct": in.IsCorrect}
	if a.gen == nil {
		return a.fallback(in, fields, "generator not configured")
	}

	user := userPrompt(in)
	res, err := a.gen.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, llm.Options{
		MaxOutputTokens: maxOutputTokens,
		Temperature:     llm.Float32(0.2),
		TopP:            llm.Float32(0.9),
		Timeout:         a.timeout,
	})
	if err != nil {
		return a.fallback(in, fields, err.Error())
	}

	text, err := res.RequireText()
	if err != nil {
		a.log.WithFields(fields).Info("empty analysis, retrying with minimal teaching prompt")
		res, err = a.gen.Generate(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: minimalSystemPrompt},
			{Role: llm.RoleUser, Content: user},
		}, llm.Options{
			UseFallback:     true,
			MaxOutputTokens: minimalMaxOutputTokens,
			Temperature:     llm.Float32(0.2),
			TopP:            llm.Float32(0.9),
			Timeout:         a.timeout,
		})
		if err != nil {
			return a.fallback(in, fields, err.Error())
		}
		if text, err = res.RequireText(); err != nil {
			return a.fallback(in, fields, "empty analysis after retry")
		}
	}

	metrics.ReasoningAnalyses.WithLabelValues(SourceAI).Inc()
	return analysisFromFeedback(text, in.IsCorrect)
}

func (a *Analyzer) fallback(in Input, fields logrus.Fields, reason string) Analysis {
	a.log.WithFields(fields).WithField("reason", reason).Warn("using rule-based reasoning analysis")
	metrics.ReasoningAnalyses.WithLabelValues(SourceRuleBased).Inc()
	return RuleBased(in)
}

func userPrompt(in Input) string {
	q := in.Question
	status := "Incorrect"
	if in.IsCorrect {
		status = "Correct"
	}

	letters := make([]string, 0, len(q.Options))
	for k := range q.Options {
		letters = append(letters, k)
	}
	sort.Strings(letters)
	var options strings.Builder
	for _, l := range letters {
		fmt.Fprintf(&options, "%s: %s\n", l, q.Options[l])
	}

	var b strings.Builder
	b.WriteString("MCQ\n")
	fmt.Fprintf(&b, "- Question: %s\n", strings.TrimSpace(q.Stem))
	fmt.Fprintf(&b, "- Options:\n%s", options.String())
	fmt.Fprintf(&b, "- Correct Answer: %s: %s\n", q.CorrectLetter, q.Options[q.CorrectLetter])
	fmt.Fprintf(&b, "- Learner's Selected Answer: %s: %s\n", in.SelectedAnswer, q.Options[in.SelectedAnswer])
	fmt.Fprintf(&b, "- Answer Status: %s\n\n", status)
	if q.CorrectLetter != in.SelectedAnswer {
		fmt.Fprintf(&b, "Compare %q with %q: key distinguishing clinical features, differentiating test findings and why the presentation points to the correct option.\n\n",
			q.Options[q.CorrectLetter], q.Options[in.SelectedAnswer])
	} else {
		b.WriteString("Explain why the selected answer beats the other options: specific features, common mimics and red flags for alternatives.\n\n")
	}
	fmt.Fprintf(&b, "LearnerReasoning (verbatim):\n%q\n", strings.TrimSpace(in.Reasoning))
	if e := strings.TrimSpace(q.Explanation); e != "" {
		fmt.Fprintf(&b, "\nReference explanation:\n%s\n", e)
	}
	return b.String()
}
