package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrJobNotFound = errors.New("job not found")

type JobStatus struct {
	ID      string          `json:"job_id"`
	JobType string          `json:"job_type"`
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Queue is the producer side of the job queue.
type Queue interface {
	Enqueue(ctx context.Context, jobType, ownerID string, payload any) (string, error)
	Status(ctx context.Context, id, ownerID string) (*JobStatus, error)
}

type GormQueue struct {
	db  *gorm.DB
	log *logrus.Logger
	now func() time.Time
}

func NewGormQueue(db *gorm.DB, log *logrus.Logger) *GormQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GormQueue{db: db, log: log, now: time.Now}
}

func (q *GormQueue) Enqueue(ctx context.Context, jobType, ownerID string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	job := entity.JobRun{
		ID:          uuid.NewString(),
		OwnerUserID: ownerID,
		JobType:     jobType,
		Status:      entity.JobStatusQueued,
		Payload:     datatypes.JSON(raw),
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	q.log.WithFields(logrus.Fields{"job_id": job.ID, "job_type": jobType}).Debug("job enqueued")
	return job.ID, nil
}

// Status returns a job owned by ownerID. Jobs of other owners are reported
// as not found.
func (q *GormQueue) Status(ctx context.Context, id, ownerID string) (*JobStatus, error) {
	var job entity.JobRun
	err := q.db.WithContext(ctx).Where("id = ? AND owner_user_id = ?", id, ownerID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	st := &JobStatus{ID: job.ID, JobType: job.JobType, Status: job.Status, Error: job.Error}
	if len(job.Result) > 0 {
		st.Result = json.RawMessage(job.Result)
	}
	return st, nil
}

// Claim marks the oldest runnable job as running and returns it, or nil
// when nothing is runnable. Running jobs whose heartbeat is older than
// stale are picked up again while they have attempts left.
func (q *GormQueue) Claim(ctx context.Context, maxAttempts int, stale time.Duration) (*entity.JobRun, error) {
	now := q.now()
	var claimed *entity.JobRun
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var job entity.JobRun
		err := query.
			Where("status = ? OR (status = ? AND attempts < ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)",
				entity.JobStatusQueued, entity.JobStatusRunning, maxAttempts, now.Add(-stale)).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Model(&entity.JobRun{}).
			Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
			Updates(map[string]any{
				"status":       entity.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = entity.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

func (q *GormQueue) Complete(ctx context.Context, id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	return q.update(ctx, id, map[string]any{
		"status": entity.JobStatusSucceeded,
		"result": datatypes.JSON(raw),
		"error":  "",
	})
}

func (q *GormQueue) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return q.update(ctx, id, map[string]any{
		"status": entity.JobStatusFailed,
		"error":  msg,
	})
}

func (q *GormQueue) Heartbeat(ctx context.Context, id string) error {
	return q.update(ctx, id, map[string]any{"heartbeat_at": q.now()})
}

func (q *GormQueue) update(ctx context.Context, id string, fields map[string]any) error {
	if err := q.db.WithContext(ctx).Model(&entity.JobRun{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}
