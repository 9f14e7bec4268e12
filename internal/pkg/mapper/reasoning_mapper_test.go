package mapper

import (
	"testing"

	dbEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertReasoningSession(t *testing.T) {
	s := &dbEntity.ReasoningSession{
		PrimaryBias:     "anchoring_bias",
		SecondaryBiases: dbEntity.JSONStrings([]string{"premature_closure"}),
		KnowledgeGaps:   dbEntity.JSONStrings([]string{"lateral medullary blood supply"}),
		Quality:         "fair",
		Confidence:      55,
		Summary:         "Anchored on the first finding.",
	}
	require.NoError(t, s.SetSteps([]dbEntity.GuidanceStep{
		{Title: "Analysis", Content: "<p>Review the vascular territory.</p>"},
		{Title: "Areas for Review", Content: "<ul><li>PICA</li></ul>"},
	}))

	analysis := ConvertToReasoningAnalysis(s)
	assert.Equal(t, "anchoring_bias", analysis.PrimaryBias)
	assert.Equal(t, []string{"premature_closure"}, analysis.SecondaryBiases)
	assert.Equal(t, []string{"lateral medullary blood supply"}, analysis.KnowledgeGaps)
	assert.Equal(t, 55, analysis.Confidence)

	steps, err := ConvertToGuidanceSteps(s)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Areas for Review", steps[1].Title)
}

func TestConvertToGuidanceStepsEmpty(t *testing.T) {
	steps, err := ConvertToGuidanceSteps(&dbEntity.ReasoningSession{})
	require.NoError(t, err)
	assert.Empty(t, steps)
}
