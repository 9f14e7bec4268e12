package aiedit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 3
	PolicyRetryIssue   = "Prompt was rejected by safety filters; retrying with sanitized context."
	defaultFeedback    = "The previous draft was rejected because:\n%s\nProduce a new revision that resolves every item. Do not reuse earlier phrasing."
)

var ErrPolicyRejected = errors.New("we couldn't process this request")

type ValidationExhaustedError struct {
	Job    string
	Issues []string
}

func (e *ValidationExhaustedError) Error() string {
	if len(e.Issues) == 0 {
		return "AI edit failed validation: unknown error"
	}
	return "AI edit failed validation: " + strings.Join(e.Issues, "; ")
}

// Attempt is the state a prompt is built from.
type Attempt struct {
	Number    int
	Sanitized bool
	Issues    []string
}

type Job[T any] struct {
	Name string
	// Build returns the base prompt; feedback for Attempt.Issues is appended by the loop.
	Build func(Attempt) ([]llm.Message, llm.Options)
	// Accept turns a decoded payload into a value, or reports why it was rejected.
	Accept func(payload map[string]any) (T, []string)
	// Feedback is a format string with one %s for the bulleted issues.
	Feedback string
	Log      *logrus.Logger
}

// RunWithRetries drives a generation job until its output validates or attempts run out.
// A policy rejection earns one sanitized retry that does not count as an attempt.
func RunWithRetries[T any](ctx context.Context, gen llm.GenerationClient, job Job[T], maxAttempts int) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	log := job.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	state := Attempt{Number: 1}
	for state.Number <= maxAttempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		messages, opts := job.Build(state)
		if len(state.Issues) > 0 {
			messages = append(messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: feedbackMessage(job.Feedback, state.Issues),
			})
		}

		fields := logrus.Fields{"job": job.Name, "attempt": state.Number, "max_attempts": maxAttempts, "sanitized": state.Sanitized}

		res, err := gen.Generate(ctx, messages, opts)
		if err != nil {
			var policy *llm.PolicyRejectionError
			var malformed *llm.MalformedOutputError
			switch {
			case errors.As(err, &policy):
				metrics.AIEditAttempts.WithLabelValues(job.Name, "policy").Inc()
				if state.Sanitized {
					log.WithFields(fields).Warn("sanitized prompt rejected again by content policy")
					return zero, fmt.Errorf("%w: %v", ErrPolicyRejected, err)
				}
				log.WithFields(fields).Info("retrying with sanitized prompt")
				state.Sanitized = true
				state.Issues = []string{PolicyRetryIssue}
				continue
			case errors.As(err, &malformed):
				metrics.AIEditAttempts.WithLabelValues(job.Name, "malformed").Inc()
				state.Issues = []string{invalidJSONIssue(malformed.Raw)}
				state.Number++
				continue
			default:
				metrics.AIEditAttempts.WithLabelValues(job.Name, "error").Inc()
				return zero, err
			}
		}

		if res.Kind != llm.ResultJSON || res.JSON == nil {
			metrics.AIEditAttempts.WithLabelValues(job.Name, "malformed").Inc()
			state.Issues = []string{invalidJSONIssue(res.Text)}
			state.Number++
			continue
		}

		value, issues := job.Accept(res.JSON)
		if len(issues) == 0 {
			metrics.AIEditAttempts.WithLabelValues(job.Name, "accepted").Inc()
			log.WithFields(fields).Info("ai edit accepted")
			return value, nil
		}

		metrics.AIEditAttempts.WithLabelValues(job.Name, "rejected").Inc()
		log.WithFields(fields).WithField("issues", strings.Join(issues, "; ")).Warn("ai edit failed validation")
		state.Issues = issues
		state.Number++
	}

	return zero, &ValidationExhaustedError{Job: job.Name, Issues: state.Issues}
}

func feedbackMessage(template string, issues []string) string {
	if template == "" {
		template = defaultFeedback
	}
	return fmt.Sprintf(template, bulletList(issues))
}

func invalidJSONIssue(raw string) string {
	return "Model did not return valid JSON. Raw output: " + (&llm.MalformedOutputError{Raw: raw}).Snippet()
}
