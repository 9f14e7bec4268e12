package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// JobRun - Catatan job background yang tahan restart
type JobRun struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	OwnerUserID string         `gorm:"size:100;not null;index" json:"owner_user_id"`
	JobType     string         `gorm:"size:50;not null;index" json:"job_type"`
	Status      string         `gorm:"size:20;not null;index" json:"status"` // queued, running, succeeded, failed
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"index" json:"heartbeat_at,omitempty"`
	Payload     datatypes.JSON `json:"payload"`
	Result      datatypes.JSON `json:"result,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }
