package aiedit

import (
	"context"
	"fmt"
	"strings"

	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/sirupsen/logrus"
)

// Question is the editable content of an MCQ.
type Question struct {
	ID            string
	Stem          string
	Options       map[string]string
	CorrectLetter string
	Explanation   string
	Subspecialty  string
}

type StemRevision struct {
	Text    string
	Stem    string
	Options map[string]string
}

type Editor struct {
	gen         llm.GenerationClient
	maxAttempts int
	log         *logrus.Logger
}

func NewEditor(gen llm.GenerationClient, maxAttempts int, log *logrus.Logger) *Editor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Editor{gen: gen, maxAttempts: maxAttempts, log: log}
}

const stemSystemPrompt = "You are a board-certified neurologist and medical educator. " +
	"Rewrite MCQ vignettes to improve clarity, structure, and educational value while preserving the diagnosis. " +
	"Follow the JSON schema provided by the developer exactly. " +
	"Never contradict the original answer."

var stemRequirements = []string{
	"Preserve the exact clinical intent, key findings, and difficulty level tested by the original question.",
	"Write a polished neurology board-style vignette with rich clinical detail.",
	"Follow a logical flow: demographics, chief concern, timeline/course, pertinent examination and investigations.",
	fmt.Sprintf("Meet or exceed %d words AND %d characters.", StemMinWords, StemMinChars),
	"Do not mention the editing process or that this is a rewritten stem.",
	"Do not reveal or hint at the correct answer.",
	"Keep the stem concise (at most 180 words) and include only clinical details that are necessary for answering the question.",
	"Improve clarity and organization without inventing new clinical data; only rephrase or polish what is already implied by the original stem.",
	"Avoid internal contradictions and keep all demographic details, exam findings, and timelines self-consistent with the source question.",
	"Embed critical findings among neutral details so the examinee must synthesize the scenario.",
}

// EditStem rewrites the question stem, optionally with four fresh labelled options.
func (e *Editor) EditStem(ctx context.Context, q Question, instructions string) (StemRevision, error) {
	prepared := PrepareInstructions(instructions)
	forbidden := ExtractForbiddenTerms(prepared)
	wantsOptions := WantsOptions(prepared)
	optionsText := FormatOptions(q.Options)
	correct := strings.TrimSpace(q.CorrectLetter)

	schema := stemSchema(wantsOptions)
	temperature := float32(0.35)
	if wantsOptions {
		temperature = 0.45
	}

	job := Job[StemRevision]{
		Name: "stem",
		Log:  e.log,
		Build: func(a Attempt) ([]llm.Message, llm.Options) {
			requirements := append([]string{}, stemRequirements...)
			if wantsOptions {
				requirements = append(requirements, "Return four mutually exclusive answer choices labelled A) through D) that remain compatible with the same correct diagnosis, and ensure the stem clearly leads to a single best option.")
			}
			if len(forbidden) > 0 {
				requirements = append(requirements, "Avoid every forbidden phrase exactly as listed.")
			}

			stem, options, userPrefs := q.Stem, optionsText, prepared
			system := stemSystemPrompt
			if a.Sanitized {
				requirements = append(requirements, "The original stem content was sanitized for policy compliance; rely on neurologic board exam conventions without mentioning this notice.")
				stem = orDefault(SanitizeForPolicy(q.Stem, 700), "Clinical details were removed for safety review. Preserve the underlying concept while producing a compliant vignette.")
				options = orDefault(SanitizeForPolicy(optionsText, 700), "Answer choices are withheld for policy compliance. Ensure the stem still leads to a single best answer.")
				userPrefs = SanitizeForPolicy(prepared, InstructionLimit)
				system += "\nThe original request triggered safety filters; work with sanitized context and never reference the moderation event."
			}

			sections := []string{
				"# ORIGINAL QUESTION STEM",
				orDefault(stem, "No question text provided."),
				"\n## EXISTING ANSWER OPTIONS",
				orDefault(options, "No answer choices available."),
				"\n## CORRECT ANSWER (REFERENCE ONLY): " + orDefault(correct, "Unknown"),
				"\n## REVISION REQUIREMENTS",
				bulletList(requirements),
			}
			if userPrefs != "" {
				sections = append(sections, "\n## USER PREFERENCES\n"+userPrefs)
			}
			if len(forbidden) > 0 {
				sections = append(sections, "\n## FORBIDDEN TERMS\n"+bulletList(forbidden))
			}

			return []llm.Message{
					{Role: llm.RoleSystem, Content: system},
					{Role: llm.RoleUser, Content: strings.Join(sections, "\n")},
				}, llm.Options{
					MaxOutputTokens: 2000,
					Temperature:     llm.Float32(temperature),
					TopP:            llm.Float32(0.9),
					JSONSchema:      &llm.Schema{Name: "mcq_question_revision", Definition: schema},
				}
		},
		Accept: func(payload map[string]any) (StemRevision, []string) {
			stem := strings.TrimSpace(stringValue(payload["stem"]))
			if stem == "" {
				return StemRevision{}, []string{"JSON schema output missing 'stem' content."}
			}

			revision := StemRevision{Stem: stem, Text: stem}
			if wantsOptions {
				raw, ok := payload["options"].(map[string]any)
				if !ok {
					return StemRevision{}, []string{"JSON schema output missing object 'options' with keys A-D."}
				}
				revision.Options = make(map[string]string, len(optionLetters))
				var missing []string
				for _, letter := range optionLetters {
					text := strings.TrimSpace(stringValue(raw[letter]))
					if text == "" {
						missing = append(missing, letter)
					}
					revision.Options[letter] = text
				}
				if len(missing) > 0 {
					return StemRevision{}, []string{"Missing text for options: " + strings.Join(missing, ", ")}
				}
				revision.Text = strings.TrimRight(stem, " \t\n") + "\n\n" + FormatOptions(revision.Options)
			}

			issues := ValidateStem(revision.Text, StemConstraints{
				Original:     q.Stem,
				WantsOptions: wantsOptions,
				Forbidden:    forbidden,
			})
			return revision, issues
		},
	}

	return RunWithRetries(ctx, e.gen, job, e.maxAttempts)
}

const missingSystemPrompt = "You are a USMLE neurology item writer. " +
	"Generate only the missing distractor options specified by the user while leaving existing options untouched. " +
	"Follow the JSON schema provided."

var missingRequirements = []string{
	"Generate only the missing options listed above.",
	"Each distractor must be clinically plausible but ultimately incorrect.",
	"Match the tone, length, and complexity of the existing options.",
	"Target common neurology board exam misconceptions.",
	"Avoid revealing or contradicting the correct answer.",
}

// FillMissingOptions generates only the empty letters among A to D. Filled options are returned unchanged.
func (e *Editor) FillMissingOptions(ctx context.Context, q Question, instructions string) (map[string]string, error) {
	existing := make(map[string]string)
	var missing []string
	for _, letter := range optionLetters {
		if text := strings.TrimSpace(q.Options[letter]); text != "" {
			existing[letter] = text
		} else {
			missing = append(missing, letter)
		}
	}
	if len(missing) == 0 {
		return copyOptions(q.Options), nil
	}

	prepared := PrepareInstructions(instructions)
	forbidden := ExtractForbiddenTerms(prepared)
	existingLines := FormatOptions(existing)
	explanation := truncate(q.Explanation, 600)
	subspecialty := orDefault(q.Subspecialty, "General Neurology")

	job := Job[map[string]string]{
		Name:     "missing_options",
		Log:      e.log,
		Feedback: "Previous attempt was rejected because:\n%s\nReturn ONLY the requested option keys with improved distractors.",
		Build: func(a Attempt) ([]llm.Message, llm.Options) {
			requirements := append([]string{}, missingRequirements...)
			stem, locked, explain, userPrefs := q.Stem, orDefault(existingLines, "No existing distractors."), explanation, prepared
			system := missingSystemPrompt
			if a.Sanitized {
				requirements = append(requirements, "The stem and locked options were sanitized for policy compliance; produce exam-appropriate distractors without mentioning the sanitization event.")
				stem = orDefault(SanitizeForPolicy(q.Stem, 600), "Clinical stem redacted for policy compliance. Use typical neurology board style when crafting distractors.")
				locked = orDefault(SanitizeForPolicy(existingLines, 600), "Existing distractors withheld for policy compliance. Maintain parity with professional exam tone.")
				explain = SanitizeForPolicy(explanation, 600)
				userPrefs = SanitizeForPolicy(prepared, InstructionLimit)
				system += "\nYou are operating on sanitized context due to safety filters; avoid referencing the removal of details."
			}

			sections := []string{
				"# QUESTION STEM",
				stem,
				"\n# EXISTING OPTIONS (LOCKED)",
				locked,
				"\n# OPTIONS TO GENERATE",
				strings.Join(missing, ", "),
				"\n# CORRECT ANSWER (REFERENCE ONLY): " + q.CorrectLetter,
				"\n# SUBSPECIALTY: " + subspecialty,
				"\n# REQUIREMENTS",
				bulletList(requirements),
			}
			if q.Explanation != "" {
				sections = append(sections, "\n# CONTEXT FROM EXPLANATION (TRUNCATED)\n"+explain)
			}
			if userPrefs != "" {
				sections = append(sections, "\n# USER CUSTOM INSTRUCTIONS\n"+userPrefs)
			}
			if len(forbidden) > 0 {
				sections = append(sections, "\n# FORBIDDEN TERMS\n"+bulletList(forbidden))
			}

			return []llm.Message{
					{Role: llm.RoleSystem, Content: system},
					{Role: llm.RoleUser, Content: strings.Join(sections, "\n")},
				}, llm.Options{
					MaxOutputTokens: 400,
					Temperature:     llm.Float32(0.55),
					TopP:            llm.Float32(0.9),
					JSONSchema:      &llm.Schema{Name: "mcq_missing_options", Definition: optionsSchema(missing)},
				}
		},
		Accept: func(payload map[string]any) (map[string]string, []string) {
			candidate := make(map[string]string, len(missing))
			for _, letter := range missing {
				candidate[letter] = strings.TrimSpace(stringValue(payload[letter]))
			}
			issues := ValidateOptions(candidate, OptionConstraints{
				Expected:      missing,
				Existing:      existing,
				CorrectLetter: q.CorrectLetter,
				CorrectText:   q.Options[q.CorrectLetter],
				Forbidden:     forbidden,
			})
			if len(issues) > 0 {
				return nil, issues
			}
			final := copyOptions(q.Options)
			for letter, text := range candidate {
				final[letter] = text
			}
			return final, nil
		},
	}

	return RunWithRetries(ctx, e.gen, job, e.maxAttempts)
}

const improveSystemPrompt = "You are a neurology board-exam content specialist. " +
	"Refine MCQ answer choices so incorrect distractors are educational and clinically grounded while the correct answer remains untouched. " +
	"Follow the JSON schema supplied by the developer."

var improveRequirements = []string{
	"Keep the correct answer text exactly the same (aside from correcting obvious typos).",
	"Upgrade every incorrect option into a high-quality USMLE-style distractor that is plausible but ultimately wrong.",
	"Ensure each distractor highlights a distinct misconception or differential diagnosis.",
	"Maintain comparable length, tone, and specificity across options.",
	"Avoid reiterating the same idea in multiple choices.",
}

// ImproveAllOptions rewrites the distractors. The correct option always keeps its original text.
func (e *Editor) ImproveAllOptions(ctx context.Context, q Question, instructions string) (map[string]string, error) {
	prepared := PrepareInstructions(instructions)
	forbidden := ExtractForbiddenTerms(prepared)
	correctText := strings.TrimSpace(q.Options[q.CorrectLetter])
	lines := make([]string, 0, len(optionLetters))
	for _, letter := range optionLetters {
		lines = append(lines, letter+") "+q.Options[letter])
	}
	currentLines := strings.Join(lines, "\n")
	explanation := truncate(q.Explanation, 600)
	subspecialty := orDefault(q.Subspecialty, "General Neurology")

	existing := map[string]string{}
	if correctText != "" {
		existing[q.CorrectLetter] = correctText
	}

	job := Job[map[string]string]{
		Name:     "all_options",
		Log:      e.log,
		Feedback: "Previous attempt failed because:\n%s\nReturn options A-D as strings, keeping the correct answer text unchanged.",
		Build: func(a Attempt) ([]llm.Message, llm.Options) {
			requirements := append([]string{}, improveRequirements...)
			stem, current, explain, userPrefs := q.Stem, currentLines, explanation, prepared
			system := improveSystemPrompt
			if a.Sanitized {
				requirements = append(requirements, "Original question context was sanitized for policy compliance; produce balanced distractors without acknowledging the sanitization.")
				stem = orDefault(SanitizeForPolicy(q.Stem, 600), "Question stem redacted for policy compliance. Maintain neurologic focus while updating distractors.")
				current = orDefault(SanitizeForPolicy(currentLines, 600), "Existing options withheld for safety review. Match board-style tone and length.")
				explain = SanitizeForPolicy(explanation, 600)
				userPrefs = SanitizeForPolicy(prepared, InstructionLimit)
				system += "\nYou are working with sanitized content; do not mention that sanitization occurred."
			}

			sections := []string{
				"# QUESTION STEM",
				stem,
				"\n# CURRENT OPTIONS",
				current,
				"\n# CORRECT ANSWER IDENTIFIER: " + q.CorrectLetter,
				"\n# TASK",
				bulletList(requirements),
			}
			if q.Explanation != "" {
				sections = append(sections, "\n# EXPLANATION CONTEXT (TRUNCATED)\n"+explain)
			}
			sections = append(sections, "\n# SUBSPECIALTY: "+subspecialty)
			if userPrefs != "" {
				sections = append(sections, "\n# USER CUSTOM INSTRUCTIONS\n"+userPrefs)
			}
			if len(forbidden) > 0 {
				sections = append(sections, "\n# FORBIDDEN TERMS\n"+bulletList(forbidden))
			}

			return []llm.Message{
					{Role: llm.RoleSystem, Content: system},
					{Role: llm.RoleUser, Content: strings.Join(sections, "\n")},
				}, llm.Options{
					MaxOutputTokens: 600,
					Temperature:     llm.Float32(0.6),
					TopP:            llm.Float32(0.9),
					JSONSchema:      &llm.Schema{Name: "mcq_option_improvement", Definition: optionsSchema(optionLetters)},
				}
		},
		Accept: func(payload map[string]any) (map[string]string, []string) {
			candidate := make(map[string]string, len(optionLetters))
			for _, letter := range optionLetters {
				candidate[letter] = strings.TrimSpace(stringValue(payload[letter]))
			}
			issues := ValidateOptions(candidate, OptionConstraints{
				Expected:      optionLetters,
				Existing:      existing,
				CorrectLetter: q.CorrectLetter,
				CorrectText:   correctText,
				Forbidden:     forbidden,
			})
			if len(issues) > 0 {
				return nil, issues
			}
			if correctText != "" {
				if _, ok := candidate[q.CorrectLetter]; ok {
					candidate[q.CorrectLetter] = correctText
				}
			}
			return candidate, nil
		},
	}

	return RunWithRetries(ctx, e.gen, job, e.maxAttempts)
}

func stemSchema(wantsOptions bool) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"stem": map[string]any{"type": "string", "minLength": 120},
		},
		"required": []string{"stem"},
	}
	if wantsOptions {
		schema["properties"].(map[string]any)["options"] = optionsSchema(optionLetters)
		schema["required"] = []string{"stem", "options"}
	}
	return schema
}

func optionsSchema(letters []string) map[string]any {
	properties := make(map[string]any, len(letters))
	for _, letter := range letters {
		properties[letter] = map[string]any{"type": "string", "minLength": OptionMinLength}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
		"required":             letters,
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func copyOptions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
