package entity

// Request untuk memulai kasus baru
type StartCaseRequest struct {
	Specialty     string `json:"specialty" validate:"omitempty,max=100"`
	Difficulty    string `json:"difficulty" validate:"omitempty,oneof=easy moderate hard random"`
	CustomRequest string `json:"custom_request" validate:"omitempty,max=1000"`
	MCQID         *uint  `json:"mcq_id" validate:"omitempty,gt=0"`
}

type StartCaseResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Phase     string `json:"phase"`
	Reused    bool   `json:"reused,omitempty"`
}

// Request untuk mengirim pesan dalam sesi kasus
type SendTurnRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type TurnResponse struct {
	Message  string   `json:"message"`
	Phase    string   `json:"phase"`
	Missing  []string `json:"missing,omitempty"`
	Complete bool     `json:"completed,omitempty"`
}

type ResumeCaseResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Phase     string `json:"phase"`
	Notice    string `json:"notice"`
}
