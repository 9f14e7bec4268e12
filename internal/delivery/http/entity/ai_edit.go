package entity

type AIEditRequest struct {
	Instructions string `json:"instructions" validate:"omitempty,max=4000"`
}

type AIEditResponse struct {
	MCQID        uint              `json:"mcq_id"`
	Target       string            `json:"target"` // stem, missing-options, all-options
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
	Changed      []string          `json:"changed,omitempty"`
}
