package aiedit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const revisedStem = "A 62-year-old right-handed man with hypertension and atrial fibrillation presents to the emergency " +
	"department ninety minutes after his wife noticed sudden difficulty finding words and weakness of his right arm " +
	"during breakfast. He is not anticoagulated. On examination he has a nonfluent aphasia, right lower facial weakness " +
	"and a pronator drift of the right arm with preserved sensation. Blood glucose is normal and non-contrast CT of the " +
	"head shows no hemorrhage. Which of the following is the most appropriate next step in management?"

const originalStem = "Old man with sudden aphasia and right arm weakness. CT negative. Next step?"

func TestValidateOptionsDuplicatesAreSymmetric(t *testing.T) {
	text := "Intravenous heparin infusion"
	variants := []map[string]string{
		{"C": text, "D": "  intravenous   HEPARIN infusion "},
		{"C": "  intravenous   HEPARIN infusion ", "D": text},
	}

	for _, generated := range variants {
		issues := ValidateOptions(generated, OptionConstraints{Expected: []string{"C", "D"}})
		assert.Contains(t, issues, "Option D duplicates option C.")
	}
}

func TestValidateOptionsDuplicateOfExisting(t *testing.T) {
	issues := ValidateOptions(
		map[string]string{"C": "Aspirin 300 mg orally"},
		OptionConstraints{
			Expected: []string{"C"},
			Existing: map[string]string{"B": "aspirin 300 mg   orally"},
		},
	)
	assert.Equal(t, []string{"Option C duplicates existing option B."}, issues)
}

func TestValidateOptionsSameLetterExistingIsNotDuplicate(t *testing.T) {
	issues := ValidateOptions(
		map[string]string{"A": "Intravenous alteplase", "B": "Mechanical thrombectomy only", "C": "Oral aspirin loading dose", "D": "Observation with repeat imaging"},
		OptionConstraints{
			Expected:      optionLetters,
			Existing:      map[string]string{"A": "Intravenous alteplase"},
			CorrectLetter: "A",
			CorrectText:   "Intravenous alteplase",
		},
	)
	assert.Empty(t, issues)
}

func TestValidateOptionsRejectsCorrectAnswerLeak(t *testing.T) {
	issues := ValidateOptions(
		map[string]string{"C": "INTRAVENOUS alteplase", "D": "Observation with repeat imaging"},
		OptionConstraints{
			Expected:      []string{"C", "D"},
			CorrectLetter: "A",
			CorrectText:   "Intravenous alteplase",
		},
	)
	assert.Contains(t, issues, "Option C matches the correct answer text.")
}

func TestValidateOptionsKeysLengthAndForbidden(t *testing.T) {
	issues := ValidateOptions(
		map[string]string{"C": "Short", "E": "Something unexpected here", "D": ""},
		OptionConstraints{
			Expected:  []string{"C", "D", "B"},
			Forbidden: []string{"unexpected"},
		},
	)
	assert.Equal(t, []string{
		"Missing option keys: B",
		"Unexpected option keys returned: E",
		"Option C is too short to be credible.",
		"Option D is empty.",
		"Option E includes forbidden terms: unexpected",
	}, issues)
}

func TestValidateStemAccepts(t *testing.T) {
	issues := ValidateStem(revisedStem, StemConstraints{Original: originalStem})
	assert.Empty(t, issues)
	assert.Less(t, Similarity(Normalize(originalStem), Normalize(revisedStem)), SimilarityThreshold)
}

func TestValidateStemRejections(t *testing.T) {
	tests := []struct {
		name    string
		revised string
		c       StemConstraints
		want    string
	}{
		{name: "empty", revised: "   ", c: StemConstraints{Original: originalStem}, want: "AI returned an empty question."},
		{name: "identical", revised: strings.ToUpper(revisedStem), c: StemConstraints{Original: revisedStem}, want: "Revised question is identical to the original."},
		{name: "too short", revised: "A brief stem.", c: StemConstraints{Original: originalStem}, want: "Revised question is too short (13 chars); needs ≥ 220."},
		{name: "too few words", revised: "A brief stem.", c: StemConstraints{Original: originalStem}, want: "Revised question has too few words (3); needs ≥ 45."},
		{name: "labelled options in stem mode", revised: revisedStem + "\nA) Alteplase", c: StemConstraints{Original: originalStem}, want: "Question stem mode should not include labelled answer options."},
		{name: "missing options", revised: revisedStem, c: StemConstraints{Original: originalStem, WantsOptions: true}, want: "Multiple-choice request requires exactly four answer options (A-D)."},
		{name: "short labelled option", revised: revisedStem + "\n\nA) Alteplase\nB) Aspirin loading\nC) Tpa\nD) Observation", c: StemConstraints{Original: originalStem, WantsOptions: true}, want: "Option C is too short to be plausible."},
		{name: "prohibited term", revised: revisedStem, c: StemConstraints{Original: originalStem, Forbidden: []string{"atrial fibrillation"}}, want: "Question includes prohibited terms: atrial fibrillation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, ValidateStem(tt.revised, tt.c), tt.want)
		})
	}
}

func TestValidateStemTooSimilar(t *testing.T) {
	tweaked := strings.Replace(revisedStem, "ninety", "ninety-five", 1)
	issues := ValidateStem(tweaked, StemConstraints{Original: revisedStem})
	if assert.Len(t, issues, 1) {
		assert.True(t, strings.HasPrefix(issues[0], "Revised question is too similar to the original (similarity 0.9"))
	}
}
