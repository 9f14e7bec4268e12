package aiedit

import (
	"context"
	"errors"
	"testing"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestion() Question {
	return Question{
		ID:   "42",
		Stem: originalStem,
		Options: map[string]string{
			"A": "Intravenous alteplase",
			"B": "Aspirin 300 mg orally",
			"C": "",
			"D": "",
		},
		CorrectLetter: "A",
		Explanation:   "Thrombolysis within the window is indicated.",
		Subspecialty:  "Vascular Neurology",
	}
}

func TestFillMissingOptionsRetriesOnDuplicateCandidates(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		jsonResult(map[string]any{"C": "Intravenous heparin infusion", "D": "Intravenous heparin infusion"}),
		jsonResult(map[string]any{"C": "Intravenous heparin infusion", "D": "Urgent carotid endarterectomy"}),
	}}
	editor := NewEditor(gen, 3, nil)
	q := sampleQuestion()

	got, err := editor.FillMissingOptions(context.Background(), q, "")
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)

	assert.Equal(t, q.Options["A"], got["A"])
	assert.Equal(t, q.Options["B"], got["B"])
	assert.Equal(t, "Intravenous heparin infusion", got["C"])
	assert.Equal(t, "Urgent carotid endarterectomy", got["D"])

	feedback := gen.calls[1][len(gen.calls[1])-1].Content
	assert.Contains(t, feedback, "Option D duplicates option C.")
	assert.Contains(t, feedback, "Return ONLY the requested option keys")

	schema := gen.opts[0].JSONSchema
	require.NotNil(t, schema)
	assert.Equal(t, []string{"C", "D"}, schema.Definition["required"])
	assert.Equal(t, 400, gen.opts[0].MaxOutputTokens)
}

func TestFillMissingOptionsNoGapsSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{}
	q := sampleQuestion()
	q.Options["C"] = "Intravenous heparin infusion"
	q.Options["D"] = "Urgent carotid endarterectomy"

	got, err := NewEditor(gen, 3, nil).FillMissingOptions(context.Background(), q, "")
	require.NoError(t, err)
	assert.Equal(t, q.Options, got)
	assert.Empty(t, gen.calls)
}

func TestEditStemSanitizesAfterPolicyRejection(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: &llm.PolicyRejectionError{Message: "Invalid prompt"}},
		jsonResult(map[string]any{"stem": revisedStem}),
	}}
	q := sampleQuestion()
	q.Stem = originalStem + " <script>"

	got, err := NewEditor(gen, 3, nil).EditStem(context.Background(), q, "Make it more detailed")
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)

	assert.Equal(t, revisedStem, got.Text)
	assert.Less(t, Similarity(Normalize(q.Stem), Normalize(got.Text)), SimilarityThreshold)

	assert.Contains(t, gen.calls[0][1].Content, "<script>")
	assert.NotContains(t, gen.calls[1][1].Content, "<script>")
	assert.Contains(t, gen.calls[1][0].Content, "sanitized context")
	require.NotNil(t, gen.opts[0].Temperature)
	assert.InDelta(t, 0.35, *gen.opts[0].Temperature, 0.0001)
}

func TestEditStemWithOptionsAppendsLabelledChoices(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		jsonResult(map[string]any{
			"stem": revisedStem,
			"options": map[string]any{
				"A": "Intravenous alteplase",
				"B": "Aspirin 300 mg orally",
				"C": "Intravenous heparin infusion",
				"D": "Urgent carotid endarterectomy",
			},
		}),
	}}

	got, err := NewEditor(gen, 3, nil).EditStem(context.Background(), sampleQuestion(), "Rewrite as multiple choice")
	require.NoError(t, err)
	assert.Contains(t, got.Text, "\n\nA) Intravenous alteplase\nB) Aspirin 300 mg orally")
	assert.Len(t, got.Options, 4)
	assert.InDelta(t, 0.45, *gen.opts[0].Temperature, 0.0001)
}

func TestEditStemExhaustsOnShortRewrites(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{jsonResult(map[string]any{"stem": "Too short."})}}

	_, err := NewEditor(gen, 3, nil).EditStem(context.Background(), sampleQuestion(), "")
	var exhausted *ValidationExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Len(t, gen.calls, 3)
	assert.Contains(t, exhausted.Issues, "Revised question has too few words (2); needs ≥ 45.")
}

func TestImproveAllOptionsKeepsCorrectText(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		jsonResult(map[string]any{
			"A": "IV alteplase 0.9 mg/kg now",
			"B": "Dual antiplatelet therapy",
			"C": "Intravenous heparin infusion",
			"D": "Urgent carotid endarterectomy",
		}),
	}}
	q := sampleQuestion()

	got, err := NewEditor(gen, 3, nil).ImproveAllOptions(context.Background(), q, "avoid eponyms")
	require.NoError(t, err)
	assert.Equal(t, "Intravenous alteplase", got["A"])
	assert.Equal(t, "Dual antiplatelet therapy", got["B"])
	assert.Contains(t, gen.calls[0][1].Content, "# FORBIDDEN TERMS\n- eponyms")
}

func TestImproveAllOptionsRejectsLeakedCorrectAnswer(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		jsonResult(map[string]any{
			"A": "Intravenous alteplase",
			"B": "intravenous   alteplase",
			"C": "Intravenous heparin infusion",
			"D": "Urgent carotid endarterectomy",
		}),
		jsonResult(map[string]any{
			"A": "Intravenous alteplase",
			"B": "Dual antiplatelet therapy",
			"C": "Intravenous heparin infusion",
			"D": "Urgent carotid endarterectomy",
		}),
	}}

	got, err := NewEditor(gen, 3, nil).ImproveAllOptions(context.Background(), sampleQuestion(), "")
	require.NoError(t, err)
	assert.Len(t, gen.calls, 2)
	assert.Equal(t, "Dual antiplatelet therapy", got["B"])
	assert.Contains(t, gen.calls[1][2].Content, "Option B matches the correct answer text.")
}
