package phase

import "strings"

// Phase is a step of the case conversation. Phases are ordered; a higher
// ordinal means the learner is further along the case.
type Phase string

const (
	Intro                  Phase = "INTRO"
	HistoryTaking          Phase = "HISTORY_TAKING"
	HistoryFeedback        Phase = "HISTORY_FEEDBACK"
	Examination            Phase = "EXAMINATION"
	ExaminationFeedback    Phase = "EXAMINATION_FEEDBACK"
	LocalizationPrompt     Phase = "LOCALIZATION_PROMPT"
	LocalizationFeedback   Phase = "LOCALIZATION_FEEDBACK"
	Localization           Phase = "LOCALIZATION"
	InvestigationsPrompt   Phase = "INVESTIGATIONS_PROMPT"
	InvestigationsFeedback Phase = "INVESTIGATIONS_FEEDBACK"
	Investigations         Phase = "INVESTIGATIONS"
	DifferentialPrompt     Phase = "DIFFERENTIAL_PROMPT"
	DifferentialFeedback   Phase = "DIFFERENTIAL_FEEDBACK"
	DifferentialDiagnosis  Phase = "DIFFERENTIAL_DIAGNOSIS"
	ManagementPrompt       Phase = "MANAGEMENT_PROMPT"
	ManagementFeedback     Phase = "MANAGEMENT_FEEDBACK"
	Management             Phase = "MANAGEMENT"
	Conclusion             Phase = "CONCLUSION"
	Followup               Phase = "FOLLOWUP"
)

var order = []Phase{
	Intro,
	HistoryTaking,
	HistoryFeedback,
	Examination,
	ExaminationFeedback,
	LocalizationPrompt,
	LocalizationFeedback,
	Localization,
	InvestigationsPrompt,
	InvestigationsFeedback,
	Investigations,
	DifferentialPrompt,
	DifferentialFeedback,
	DifferentialDiagnosis,
	ManagementPrompt,
	ManagementFeedback,
	Management,
	Conclusion,
	Followup,
}

var ordinals = func() map[Phase]int {
	m := make(map[Phase]int, len(order))
	for i, p := range order {
		m[p] = i
	}
	return m
}()

// reasoning stages: prompt -> feedback -> settled
var triads = map[string][3]Phase{
	"LOCALIZATION":   {LocalizationPrompt, LocalizationFeedback, Localization},
	"INVESTIGATIONS": {InvestigationsPrompt, InvestigationsFeedback, Investigations},
	"DIFFERENTIAL":   {DifferentialPrompt, DifferentialFeedback, DifferentialDiagnosis},
	"MANAGEMENT":     {ManagementPrompt, ManagementFeedback, Management},
}

// All returns every phase in conversation order.
func All() []Phase {
	out := make([]Phase, len(order))
	copy(out, order)
	return out
}

// Parse maps a stored phase name back to a Phase. Unknown or empty values
// map to Intro.
func Parse(s string) Phase {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ordinals[p]; ok {
		return p
	}
	return Intro
}

func (p Phase) String() string { return string(p) }

// Ordinal is the position of p in conversation order, -1 when unknown.
func (p Phase) Ordinal() int {
	if i, ok := ordinals[p]; ok {
		return i
	}
	return -1
}

func (p Phase) Valid() bool { return p.Ordinal() >= 0 }

// Before reports whether p comes strictly earlier than other.
func (p Phase) Before(other Phase) bool { return p.Ordinal() < other.Ordinal() }

// Max returns the later of the two phases.
func Max(a, b Phase) Phase {
	if a.Ordinal() >= b.Ordinal() {
		return a
	}
	return b
}

// Stage returns the reasoning stage a prompt/feedback/settled phase belongs
// to, or "" for phases outside those triads.
func (p Phase) Stage() string {
	for stage, t := range triads {
		if p == t[0] || p == t[1] || p == t[2] {
			return stage
		}
	}
	return ""
}

func (p Phase) IsPrompt() bool {
	t, ok := triads[p.Stage()]
	return ok && t[0] == p
}

func (p Phase) IsFeedback() bool {
	if p == HistoryFeedback || p == ExaminationFeedback {
		return true
	}
	t, ok := triads[p.Stage()]
	return ok && t[1] == p
}

// FeedbackOf returns the feedback phase for a reasoning stage prompt.
func (p Phase) FeedbackOf() (Phase, bool) {
	t, ok := triads[p.Stage()]
	if !ok {
		return p, false
	}
	return t[1], true
}

// Settle is the phase a free-form message moves the conversation into.
// Prompt and feedback phases settle into their stage, INTRO into history
// taking and CONCLUSION into follow-up. Other phases stay put.
func (p Phase) Settle() Phase {
	switch p {
	case Intro:
		return HistoryTaking
	case Conclusion:
		return Followup
	}
	if t, ok := triads[p.Stage()]; ok {
		return t[2]
	}
	return p
}

// InHistoryGroup reports whether p is still in history gathering.
func (p Phase) InHistoryGroup() bool {
	return p == Intro || p == HistoryTaking || p == HistoryFeedback
}

// InExaminationGroup reports whether p is still in examination gathering.
func (p Phase) InExaminationGroup() bool {
	return p == Examination || p == ExaminationFeedback
}

// Gathering returns the phase a feedback gate returns to once the missing
// items are supplied.
func (p Phase) Gathering() Phase {
	switch p {
	case HistoryFeedback:
		return HistoryTaking
	case ExaminationFeedback:
		return Examination
	}
	return p
}
