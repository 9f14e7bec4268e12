package entity

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DifficultyEasy     = "easy"
	DifficultyModerate = "moderate"
	DifficultyHard     = "hard"
	DifficultyRandom   = "random"

	OriginFreeform = "freeform"
	OriginMCQ      = "mcq"

	// MaxTranscriptMessages is the number of most recent messages kept on a
	// session.
	MaxTranscriptMessages = 50
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CaseData - Payload kasus yang sedang berjalan
type CaseData struct {
	Condition             string            `json:"condition,omitempty"`
	Age                   int               `json:"age,omitempty"`
	Gender                string            `json:"gender,omitempty"`
	ChiefComplaint        string            `json:"chief_complaint,omitempty"`
	HistoryFindings       []string          `json:"history_findings,omitempty"`
	ExamFindings          []string          `json:"examination_findings,omitempty"`
	InvestigationFindings []string          `json:"investigation_findings,omitempty"`
	Differential          []string          `json:"differential,omitempty"`
	ManagementPlan        string            `json:"management_plan,omitempty"`
	CriticalHistoryMissed []string          `json:"critical_history_missed"`
	CriticalExamMissed    []string          `json:"critical_exam_missed"`
	HistoryCollected      []string          `json:"history_collected,omitempty"`
	ExamCollected         []string          `json:"exam_collected,omitempty"`
	Contributions         map[string]string `json:"contributions,omitempty"` // learner answers per stage

	Specialty         string `json:"specialty"`
	Difficulty        string `json:"difficulty"`
	CustomRequest     string `json:"custom_request,omitempty"`
	Origin            string `json:"origin"` // freeform, mcq
	SystemPrompt      string `json:"system_prompt"`
	SourceMCQID       *uint  `json:"source_mcq_id,omitempty"`
	CaseHash          string `json:"case_hash,omitempty"`
	ScreeningExamDone bool   `json:"screening_exam_done"`
}

// CaseSession - Sesi percakapan kasus per user
type CaseSession struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	SessionID       string         `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	UserID          string         `gorm:"size:100;not null;index" json:"user_id"`
	Specialty       string         `gorm:"size:100" json:"specialty"`
	Difficulty      string         `gorm:"size:20" json:"difficulty"` // easy, moderate, hard, random
	Phase           string         `gorm:"size:40;not null" json:"phase"`
	CaseData        datatypes.JSON `json:"case_data"`
	Messages        datatypes.JSON `json:"messages"`                  // [{role, content}]
	SourceMCQID     *uint          `gorm:"index" json:"source_mcq_id"` // fixed at creation
	Completed       bool           `gorm:"not null;default:false" json:"completed"`
	LastActivity    time.Time      `gorm:"index" json:"last_activity"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	AutoDeleteAfter *time.Time     `gorm:"index" json:"auto_delete_after,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CaseSession) TableName() string {
	return "case_sessions"
}

func (s *CaseSession) Payload() (CaseData, error) {
	var d CaseData
	if len(s.CaseData) == 0 {
		return d, nil
	}
	err := json.Unmarshal(s.CaseData, &d)
	return d, err
}

func (s *CaseSession) SetPayload(d CaseData) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	s.CaseData = datatypes.JSON(raw)
	return nil
}

func (s *CaseSession) Transcript() ([]Message, error) {
	var msgs []Message
	if len(s.Messages) == 0 {
		return msgs, nil
	}
	err := json.Unmarshal(s.Messages, &msgs)
	return msgs, err
}

// SetTranscript stores the most recent MaxTranscriptMessages messages.
func (s *CaseSession) SetTranscript(msgs []Message) error {
	msgs = TrimTranscript(msgs)
	if msgs == nil {
		msgs = []Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	s.Messages = datatypes.JSON(raw)
	return nil
}

func TrimTranscript(msgs []Message) []Message {
	if len(msgs) > MaxTranscriptMessages {
		return msgs[len(msgs)-MaxTranscriptMessages:]
	}
	return msgs
}

// SkippedCase - Kasus yang dilewati user
type SkippedCase struct {
	CaseHash       string    `json:"case_hash"`
	ChiefComplaint string    `json:"chief_complaint"`
	Specialty      string    `json:"specialty"`
	SkippedAt      time.Time `json:"skipped_at"`
}

// MaxSkippedCases is the number of skipped cases remembered per user.
const MaxSkippedCases = 20

// UserCaseHistory - Riwayat kasus per user
type UserCaseHistory struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	UserID       string         `gorm:"uniqueIndex;size:100;not null" json:"user_id"`
	SkippedCases datatypes.JSON `json:"skipped_cases"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (UserCaseHistory) TableName() string {
	return "user_case_histories"
}

func (h *UserCaseHistory) Skipped() ([]SkippedCase, error) {
	var out []SkippedCase
	if len(h.SkippedCases) == 0 {
		return out, nil
	}
	err := json.Unmarshal(h.SkippedCases, &out)
	return out, err
}

// AddSkipped appends a skipped case, keeping the MaxSkippedCases most recent.
func (h *UserCaseHistory) AddSkipped(c SkippedCase) error {
	list, err := h.Skipped()
	if err != nil {
		return err
	}
	list = append(list, c)
	if len(list) > MaxSkippedCases {
		list = list[len(list)-MaxSkippedCases:]
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	h.SkippedCases = datatypes.JSON(raw)
	return nil
}
