package usecase

import (
	"fmt"
	"strings"

	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
)

const caseSystemPromptTemplate = "You are an expert neurologist presenting a case in %s to a neurology resident as a live teaching case. " +
	"Craft an immersive, internally consistent case and respond as a supportive attending. Follow these rules:\n" +
	"- Keep the tone collegial and succinct.\n" +
	"- Start every case with only the chief complaint in one to two sentences. Do not give history, examination findings, investigations or the diagnosis until the learner asks.\n" +
	"- When the patient speaks, USE PATIENT-FRIENDLY LANGUAGE rather than medical terminology.\n" +
	"- Never reveal the final diagnosis until the learner explicitly asks to conclude.\n" +
	"- Treat short commands such as 'proceed to investigations' as stage transitions and supply only the information relevant to that stage.\n" +
	"- When the learner requests specific information, provide it immediately and invent plausible details that fit the case.\n" +
	"- Avoid ending targeted replies with questions like 'What would you like to do next?'.\n" +
	"- Use Markdown for structure.\n" +
	"Context: specialty=%s; difficulty=%s.\n"

const caseLaunchInstruction = "Start a new neurology teaching case. Present only the chief complaint in one to two sentences, " +
	"avoid giving history, examination, investigations, red flags or diagnoses. After the chief complaint, " +
	"invite the learner to begin history-taking."

const screeningInstruction = "The learner is moving to the examination. Perform a SCREENING neurological examination of this patient " +
	"covering mental status, cranial nerves, motor, reflexes, sensation, coordination and gait. Report findings consistent with the case " +
	"in a compact Markdown list. Do not interpret the findings and do not reveal the diagnosis."

const (
	screeningHeader   = "### Screening neurological examination"
	screeningFooter   = "*This is a screening examination. Specific abnormalities would require targeted testing.*"
	screeningContinue = "Ask for any targeted examination you need, or proceed when you are ready to localize the lesion."
	screeningFinding  = "screening_neurological_exam"
)

const (
	resumeDefaultMessage = "I have the case ready. How would you like to proceed?"
	resumeNotice         = "Resumed your saved case."
)

// maxAvoidedCases is how many skipped presentations a launch instruction lists.
const maxAvoidedCases = 5

func buildCaseSystemPrompt(specialty, difficulty, customRequest string, mcq *internalEntity.MCQ) string {
	prompt := fmt.Sprintf(caseSystemPromptTemplate, specialty, specialty, difficulty)
	if customRequest != "" {
		prompt += "\nLearner request: " + strings.TrimSpace(customRequest) + "\n"
	}
	if mcq != nil {
		prompt += "\nThis case must align with the following MCQ context. Use it verbatim for consistency with the learner's prior question.\n" +
			"MCQ prompt: " + strings.TrimSpace(mcq.QuestionText) + "\n" +
			"Correct answer: " + mcq.CorrectText() + "\n"
	}
	return prompt
}

func buildLaunchInstruction(mcq *internalEntity.MCQ, avoid []internalEntity.SkippedCase) string {
	instruction := caseLaunchInstruction
	if mcq != nil {
		instruction += " Ensure the eventual history and findings remain consistent with the supplied MCQ context."
	}
	if len(avoid) > maxAvoidedCases {
		avoid = avoid[len(avoid)-maxAvoidedCases:]
	}
	var lines []string
	for i := len(avoid) - 1; i >= 0; i-- {
		if c := strings.TrimSpace(avoid[i].ChiefComplaint); c != "" {
			lines = append(lines, fmt.Sprintf("- %s (%s)", c, avoid[i].Specialty))
		}
	}
	if len(lines) > 0 {
		instruction += "\nThe learner recently skipped these presentations. Choose a clearly different one:\n" + strings.Join(lines, "\n")
	}
	return instruction
}

// forceDirective makes the tutor answer the current request instead of
// redirecting it.
func forceDirective(instruction, request string) string {
	directive := "IMPORTANT: Respond to the learner's request now. " + instruction +
		" Do not redirect, stall, or conclude with a question."
	if trimmed := strings.TrimSpace(request); trimmed != "" {
		r := []rune(trimmed)
		if len(r) > 400 {
			r = r[:400]
		}
		directive += " Learner request to honour:\n" + string(r)
	}
	return directive
}

func gateReply(group string, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Before moving on, these critical %s elements have not been covered yet:\n", group)
	for _, m := range missing {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString("\nPlease address them before proceeding.")
	return b.String()
}

func screeningReply(text string) string {
	return screeningHeader + "\n\n" + strings.TrimSpace(text) + "\n\n" + screeningFooter + "\n\n" + screeningContinue
}

// chiefComplaint takes the first non-empty line of the opening message.
func chiefComplaint(opening string) string {
	for _, line := range strings.Split(opening, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "#*> "))
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > 240 {
			r = r[:240]
		}
		return string(r)
	}
	return ""
}

func normalizeDifficulty(d string) string {
	switch d = strings.ToLower(strings.TrimSpace(d)); d {
	case internalEntity.DifficultyEasy, internalEntity.DifficultyModerate, internalEntity.DifficultyHard, internalEntity.DifficultyRandom:
		return d
	}
	return internalEntity.DifficultyRandom
}

func normalizeSpecialty(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "general neurology"
	}
	return s
}
