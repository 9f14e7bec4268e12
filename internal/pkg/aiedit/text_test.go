package aiedit

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForPolicy(t *testing.T) {
	got := SanitizeForPolicy("Patient <b>shot</b> himself!!  GCS 7/15 @ scene", 800)
	assert.Equal(t, "Patient b shot b himself GCS 7 15 scene", got)

	assert.Len(t, SanitizeForPolicy(strings.Repeat("a", 900), 800), 800)
	assert.Equal(t, "", SanitizeForPolicy("", 800))
}

func TestPrepareInstructions(t *testing.T) {
	got := PrepareInstructions("  Make it harder\r\n\r\n\x01 avoid   eponyms \n")
	assert.Equal(t, "Make it harder\navoid eponyms", got)

	long := strings.Repeat("word ", 300)
	prepared := PrepareInstructions(long)
	assert.LessOrEqual(t, len(prepared), InstructionLimit)
	assert.True(t, strings.HasSuffix(prepared, "word"))

	accented := PrepareInstructions(strings.Repeat("é", InstructionLimit+100))
	assert.True(t, utf8.ValidString(accented))
	assert.Equal(t, InstructionLimit, utf8.RuneCountInString(accented))
}

func TestNormalizeAndWordCount(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  A \n B\tc "))
	assert.Equal(t, 5, WordCount("A 62-year-old man"))
}

func TestExtractOptionLabels(t *testing.T) {
	text := "Stem here.\n\nA) First choice\nB. Second choice\nc: third\nD- fourth"
	got := ExtractOptionLabels(text)
	assert.Equal(t, map[string]string{
		"A": "First choice",
		"B": "Second choice",
		"C": "third",
		"D": "fourth",
	}, got)

	assert.Empty(t, ExtractOptionLabels("A 45-year-old woman with diplopia."))
}

func TestWantsOptions(t *testing.T) {
	assert.True(t, WantsOptions("Convert to multiple-choice please"))
	assert.True(t, WantsOptions("add answer choices"))
	assert.True(t, WantsOptions("Include options"))
	assert.False(t, WantsOptions("make the vignette longer"))
}

func TestExtractForbiddenTerms(t *testing.T) {
	tests := []struct {
		name         string
		instructions string
		want         []string
	}{
		{
			name:         "do not mention list",
			instructions: "Do not mention MRI/angiography or lumbar puncture.",
			want:         []string{"angiography", "lumbar puncture", "mri"},
		},
		{
			name:         "avoid and without",
			instructions: "Avoid eponyms; write it without referencing the stem",
			want:         []string{"eponyms", "the stem"},
		},
		{
			name:         "excluded pronouns and short fragments",
			instructions: "Never mention it. Do not include ab",
			want:         []string{},
		},
		{
			name:         "empty",
			instructions: "",
			want:         nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractForbiddenTerms(tt.instructions))
		})
	}
}

func TestFormatOptions(t *testing.T) {
	got := FormatOptions(map[string]string{"B": "two", "A": "one"})
	assert.Equal(t, "A) one\nB) two", got)
}
