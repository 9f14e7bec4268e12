package aiedit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	result llm.Result
	err    error
}

type fakeGenerator struct {
	responses []fakeResponse
	calls     [][]llm.Message
	opts      []llm.Options
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	f.calls = append(f.calls, messages)
	f.opts = append(f.opts, opts)
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.result, r.err
}

func jsonResult(obj map[string]any) fakeResponse {
	return fakeResponse{result: llm.Result{Kind: llm.ResultJSON, JSON: obj}}
}

func echoJob(accept func(map[string]any) (string, []string)) Job[string] {
	return Job[string]{
		Name: "test",
		Build: func(a Attempt) ([]llm.Message, llm.Options) {
			content := "original"
			if a.Sanitized {
				content = "sanitized"
			}
			return []llm.Message{{Role: llm.RoleUser, Content: content}}, llm.Options{}
		},
		Accept: accept,
	}
}

func TestRunWithRetriesAcceptsFirstValid(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{jsonResult(map[string]any{"v": "ok"})}}
	job := echoJob(func(p map[string]any) (string, []string) { return p["v"].(string), nil })

	got, err := RunWithRetries(context.Background(), gen, job, 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, gen.calls, 1)
}

func TestRunWithRetriesIsBounded(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{jsonResult(map[string]any{"v": "bad"})}}
	job := echoJob(func(p map[string]any) (string, []string) { return "", []string{"still bad"} })

	_, err := RunWithRetries(context.Background(), gen, job, 3)

	var exhausted *ValidationExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, []string{"still bad"}, exhausted.Issues)
	assert.Len(t, gen.calls, 3)
}

func TestRunWithRetriesFeedsIssuesBack(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		jsonResult(map[string]any{"v": "bad"}),
		jsonResult(map[string]any{"v": "good"}),
	}}
	job := echoJob(func(p map[string]any) (string, []string) {
		if p["v"] == "bad" {
			return "", []string{"Option C duplicates option D."}
		}
		return p["v"].(string), nil
	})

	got, err := RunWithRetries(context.Background(), gen, job, 3)
	require.NoError(t, err)
	assert.Equal(t, "good", got)
	require.Len(t, gen.calls, 2)

	assert.Len(t, gen.calls[0], 1)
	last := gen.calls[1][len(gen.calls[1])-1]
	assert.Equal(t, llm.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "The previous draft was rejected because:\n- Option C duplicates option D.")
}

func TestRunWithRetriesSanitizesOnceOnPolicyRejection(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: &llm.PolicyRejectionError{Message: "flagged"}},
		jsonResult(map[string]any{"v": "bad"}),
	}}
	job := echoJob(func(p map[string]any) (string, []string) { return "", []string{"nope"} })

	_, err := RunWithRetries(context.Background(), gen, job, 3)

	var exhausted *ValidationExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Len(t, gen.calls, 4, "sanitize retry must not consume an attempt")
	assert.Equal(t, "original", gen.calls[0][0].Content)
	for _, call := range gen.calls[1:] {
		assert.Equal(t, "sanitized", call[0].Content)
	}
	assert.Contains(t, gen.calls[1][1].Content, PolicyRetryIssue)
}

func TestRunWithRetriesSecondPolicyRejectionIsFinal(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{err: &llm.PolicyRejectionError{Message: "flagged"}}}}
	job := echoJob(func(p map[string]any) (string, []string) { return "", nil })

	_, err := RunWithRetries(context.Background(), gen, job, 3)
	assert.ErrorIs(t, err, ErrPolicyRejected)
	assert.Len(t, gen.calls, 2)
}

func TestRunWithRetriesTurnsMalformedOutputIntoIssue(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: &llm.MalformedOutputError{Raw: "Sorry, here is prose"}},
		{result: llm.Result{Kind: llm.ResultEmpty}},
		jsonResult(map[string]any{"v": "fine"}),
	}}
	job := echoJob(func(p map[string]any) (string, []string) { return p["v"].(string), nil })

	got, err := RunWithRetries(context.Background(), gen, job, 3)
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	require.Len(t, gen.calls, 3)
	assert.Contains(t, gen.calls[1][1].Content, "Model did not return valid JSON. Raw output: Sorry, here is prose")
	assert.Contains(t, gen.calls[2][1].Content, "Raw output: [empty]")
}

func TestRunWithRetriesSurfacesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{err: &llm.TransientBackendError{StatusCode: 503, Err: errors.New("down")}}}}
	job := echoJob(func(p map[string]any) (string, []string) { return "", nil })

	_, err := RunWithRetries(context.Background(), gen, job, 3)
	var transient *llm.TransientBackendError
	assert.True(t, errors.As(err, &transient))
	assert.Len(t, gen.calls, 1)
}

func TestValidationExhaustedErrorMessage(t *testing.T) {
	err := &ValidationExhaustedError{Issues: []string{"one", "two"}}
	assert.True(t, strings.HasSuffix(err.Error(), "one; two"))
}
