package entity

// Request untuk memulai analisis penalaran
type StartReasoningRequest struct {
	MCQID          uint   `json:"mcq_id" validate:"required,gt=0"`
	SelectedAnswer string `json:"selected_answer" validate:"required,max=5"`
	Reasoning      string `json:"reasoning" validate:"required,min=10,max=5000"`
	IsCorrect      bool   `json:"is_correct"`
}

type GuidanceStep struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Question string `json:"question,omitempty"`
	Evidence string `json:"evidence,omitempty"`
	Action   string `json:"action,omitempty"`
}

type ReasoningAnalysis struct {
	PrimaryBias      string   `json:"primary_bias"`
	SecondaryBiases  []string `json:"secondary_biases"`
	KnowledgeGaps    []string `json:"knowledge_gaps"`
	Misconceptions   []string `json:"misconceptions"`
	ReasoningQuality string   `json:"reasoning_quality"`
	Confidence       int      `json:"confidence"`
	Summary          string   `json:"summary,omitempty"`
}

type StartReasoningResponse struct {
	Status     string            `json:"status"`
	SessionID  string            `json:"session_id"`
	JobID      string            `json:"job_id,omitempty"`
	Analysis   ReasoningAnalysis `json:"analysis"`
	FirstStep  *GuidanceStep     `json:"first_step,omitempty"`
	TotalSteps int               `json:"total_steps"`
}

type AdvanceStepResponse struct {
	Step        GuidanceStep `json:"step"`
	StepNumber  int          `json:"step_number"`
	TotalSteps  int          `json:"total_steps"`
	HasNextStep bool         `json:"has_next_step"`
	IsCompleted bool         `json:"is_completed"`
	Message     string       `json:"message,omitempty"`
}

// Request untuk feedback sesi penalaran
type ReasoningFeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,oneof=helpful somewhat_helpful not_helpful"`
	Comments string `json:"comments" validate:"omitempty"`
}

type ReasoningStatusResponse struct {
	Status    string             `json:"status"`
	SessionID string             `json:"session_id"`
	Analysis  *ReasoningAnalysis `json:"analysis,omitempty"`
	Steps     []GuidanceStep     `json:"steps,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Ringkasan sesi gagal untuk admin
type FailedSessionSummary struct {
	WindowHours  int                `json:"window_hours"`
	StatusCounts map[string]int64   `json:"status_counts"`
	Failed       []FailedSessionRow `json:"failed"`
}

type FailedSessionRow struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	MCQID        uint   `json:"mcq_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	CreatedAt    string `json:"created_at"`
}
