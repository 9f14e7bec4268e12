package repository

import (
	"errors"
	"time"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"gorm.io/gorm"
)

type (
	ReasoningRepository interface {
		Create(db *gorm.DB, session *entity.ReasoningSession) error
		Save(db *gorm.DB, session *entity.ReasoningSession) error
		GetForUser(db *gorm.DB, sessionID, userID string) (*entity.ReasoningSession, error)
		GetBySessionID(db *gorm.DB, sessionID string) (*entity.ReasoningSession, error)
		FindFailedSince(db *gorm.DB, since time.Time, limit int) ([]entity.ReasoningSession, error)
		CountByStatusSince(db *gorm.DB, since time.Time) (map[string]int64, error)
	}

	reasoningRepository struct {
		db *gorm.DB
	}
)

func NewReasoningRepository(db *gorm.DB) ReasoningRepository {
	return &reasoningRepository{db: db}
}

func (r *reasoningRepository) Create(db *gorm.DB, session *entity.ReasoningSession) error {
	if db == nil {
		db = r.db
	}
	return db.Create(session).Error
}

func (r *reasoningRepository) Save(db *gorm.DB, session *entity.ReasoningSession) error {
	if db == nil {
		db = r.db
	}
	return db.Save(session).Error
}

func (r *reasoningRepository) GetForUser(db *gorm.DB, sessionID, userID string) (*entity.ReasoningSession, error) {
	if db == nil {
		db = r.db
	}
	var session entity.ReasoningSession
	err := db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetBySessionID is used by background jobs, which run without a caller identity.
func (r *reasoningRepository) GetBySessionID(db *gorm.DB, sessionID string) (*entity.ReasoningSession, error) {
	if db == nil {
		db = r.db
	}
	var session entity.ReasoningSession
	err := db.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *reasoningRepository) FindFailedSince(db *gorm.DB, since time.Time, limit int) ([]entity.ReasoningSession, error) {
	if db == nil {
		db = r.db
	}
	var sessions []entity.ReasoningSession
	err := db.Where("status IN ? AND created_at >= ?",
		[]string{entity.ReasoningStatusFailed, entity.ReasoningStatusError}, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *reasoningRepository) CountByStatusSince(db *gorm.DB, since time.Time) (map[string]int64, error) {
	if db == nil {
		db = r.db
	}
	var rows []struct {
		Status string
		Total  int64
	}
	err := db.Model(&entity.ReasoningSession{}).
		Select("status, COUNT(*) AS total").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
