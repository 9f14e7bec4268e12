package entity

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReasoningStatusAnalyzing  = "analyzing"
	ReasoningStatusProcessing = "processing"
	ReasoningStatusReady      = "ready"
	ReasoningStatusError      = "error"
	ReasoningStatusFailed     = "failed"

	FeedbackHelpful         = "helpful"
	FeedbackSomewhatHelpful = "somewhat_helpful"
	FeedbackNotHelpful      = "not_helpful"
)

type GuidanceStep struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Question string `json:"question,omitempty"`
	Evidence string `json:"evidence,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ReasoningSession - Sesi analisis penalaran klinis untuk satu jawaban MCQ
type ReasoningSession struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	SessionID        string         `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	UserID           string         `gorm:"size:100;not null;index" json:"user_id"`
	MCQID            uint           `gorm:"not null;index" json:"mcq_id"`
	SelectedAnswer   string         `gorm:"size:5;not null" json:"selected_answer"`
	IsCorrect        bool           `gorm:"not null" json:"is_correct"`
	Reasoning        string         `gorm:"type:text;not null" json:"reasoning"`
	PrimaryBias      string         `gorm:"size:50" json:"primary_bias"`
	SecondaryBiases  datatypes.JSON `json:"secondary_biases"`
	KnowledgeGaps    datatypes.JSON `json:"knowledge_gaps"`
	Misconceptions   datatypes.JSON `json:"misconceptions"`
	Quality          string         `gorm:"size:20" json:"reasoning_quality"` // poor, fair, good, excellent, analyzing
	Confidence       int            `json:"confidence"`                       // 0..100
	Summary          string         `gorm:"type:text" json:"summary"`
	GuidanceSteps    datatypes.JSON `json:"guidance_steps"`
	CurrentStep      int            `gorm:"not null;default:0" json:"current_step"`
	Status           string         `gorm:"size:20;not null;index" json:"status"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	JobID            string         `gorm:"size:64;index" json:"job_id,omitempty"`
	Feedback         string         `gorm:"size:30" json:"feedback,omitempty"` // helpful, somewhat_helpful, not_helpful
	FeedbackComments string         `gorm:"type:text" json:"feedback_comments,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ReasoningSession) TableName() string {
	return "reasoning_sessions"
}

func (s *ReasoningSession) Steps() ([]GuidanceStep, error) {
	var steps []GuidanceStep
	if len(s.GuidanceSteps) == 0 {
		return steps, nil
	}
	err := json.Unmarshal(s.GuidanceSteps, &steps)
	return steps, err
}

func (s *ReasoningSession) SetSteps(steps []GuidanceStep) error {
	raw, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	s.GuidanceSteps = datatypes.JSON(raw)
	return nil
}

// JSONStrings encodes a string list for a JSON column, never as null.
func JSONStrings(list []string) datatypes.JSON {
	if list == nil {
		list = []string{}
	}
	raw, _ := json.Marshal(list)
	return datatypes.JSON(raw)
}

func DecodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
