package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"gorm.io/gorm"
)

// ErrSessionNotFound covers both a missing session and one owned by another user.
var ErrSessionNotFound = errors.New("session not found")

type (
	CaseSessionRepository interface {
		Create(db *gorm.DB, session *entity.CaseSession) error
		GetForUser(db *gorm.DB, sessionID, userID string) (*entity.CaseSession, error)
		SaveTranscript(db *gorm.DB, session *entity.CaseSession, messages []entity.Message, payload entity.CaseData, phase string) error
		ReplaceConversation(db *gorm.DB, session *entity.CaseSession, messages []entity.Message, payload entity.CaseData, phase, specialty, difficulty string) error
		MarkCompleted(db *gorm.DB, session *entity.CaseSession, retention time.Duration) error
		FindLatestForMCQ(db *gorm.DB, userID string, mcqID uint, since time.Time) (*entity.CaseSession, error)
		PurgeExpired(db *gorm.DB, now time.Time, inactivity, grace time.Duration) (int64, error)
	}

	caseSessionRepository struct {
		db  *gorm.DB
		now func() time.Time
	}
)

func NewCaseSessionRepository(db *gorm.DB) CaseSessionRepository {
	return &caseSessionRepository{db: db, now: time.Now}
}

func (r *caseSessionRepository) Create(db *gorm.DB, session *entity.CaseSession) error {
	if db == nil {
		db = r.db
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = r.now()
	}
	return db.Create(session).Error
}

func (r *caseSessionRepository) GetForUser(db *gorm.DB, sessionID, userID string) (*entity.CaseSession, error) {
	if db == nil {
		db = r.db
	}
	var session entity.CaseSession
	err := db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveTranscript writes the transcript tail, payload and phase of a turn in one
// owner-filtered update.
func (r *caseSessionRepository) SaveTranscript(db *gorm.DB, session *entity.CaseSession, messages []entity.Message, payload entity.CaseData, phase string) error {
	if db == nil {
		db = r.db
	}
	next := *session
	if err := next.SetTranscript(messages); err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := next.SetPayload(payload); err != nil {
		return fmt.Errorf("encode case data: %w", err)
	}
	next.Phase = phase
	next.LastActivity = r.now()

	res := db.Model(&entity.CaseSession{}).
		Where("session_id = ? AND user_id = ?", session.SessionID, session.UserID).
		Updates(map[string]any{
			"messages":      next.Messages,
			"case_data":     next.CaseData,
			"phase":         next.Phase,
			"last_activity": next.LastActivity,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	*session = next
	return nil
}

// ReplaceConversation starts a fresh case on an existing session. The session
// id and source MCQ are kept. Empty specialty or difficulty keep the current
// value.
func (r *caseSessionRepository) ReplaceConversation(db *gorm.DB, session *entity.CaseSession, messages []entity.Message, payload entity.CaseData, phase, specialty, difficulty string) error {
	if db == nil {
		db = r.db
	}
	now := r.now()
	next := *session
	if err := next.SetTranscript(messages); err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := next.SetPayload(payload); err != nil {
		return fmt.Errorf("encode case data: %w", err)
	}
	if specialty != "" {
		next.Specialty = specialty
	}
	if difficulty != "" {
		next.Difficulty = difficulty
	}
	next.Phase = phase
	next.Completed = false
	next.CompletedAt = nil
	next.AutoDeleteAfter = nil
	next.CreatedAt = now
	next.LastActivity = now

	res := db.Model(&entity.CaseSession{}).
		Where("session_id = ? AND user_id = ?", session.SessionID, session.UserID).
		Updates(map[string]any{
			"messages":          next.Messages,
			"case_data":         next.CaseData,
			"phase":             next.Phase,
			"specialty":         next.Specialty,
			"difficulty":        next.Difficulty,
			"completed":         false,
			"completed_at":      nil,
			"auto_delete_after": nil,
			"created_at":        now,
			"last_activity":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	*session = next
	return nil
}

func (r *caseSessionRepository) MarkCompleted(db *gorm.DB, session *entity.CaseSession, retention time.Duration) error {
	if db == nil {
		db = r.db
	}
	now := r.now()
	deleteAfter := now.Add(retention)
	res := db.Model(&entity.CaseSession{}).
		Where("session_id = ? AND user_id = ?", session.SessionID, session.UserID).
		Updates(map[string]any{
			"completed":         true,
			"completed_at":      now,
			"auto_delete_after": deleteAfter,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	session.Completed = true
	session.CompletedAt = &now
	session.AutoDeleteAfter = &deleteAfter
	return nil
}

// FindLatestForMCQ returns the newest session the user started from an MCQ
// since the given time, or nil.
func (r *caseSessionRepository) FindLatestForMCQ(db *gorm.DB, userID string, mcqID uint, since time.Time) (*entity.CaseSession, error) {
	if db == nil {
		db = r.db
	}
	var session entity.CaseSession
	err := db.Where("user_id = ? AND source_mcq_id = ? AND created_at >= ?", userID, mcqID, since).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// PurgeExpired soft-deletes completed sessions past auto_delete_after and
// sessions idle longer than inactivity plus grace.
func (r *caseSessionRepository) PurgeExpired(db *gorm.DB, now time.Time, inactivity, grace time.Duration) (int64, error) {
	if db == nil {
		db = r.db
	}
	idleBefore := now.Add(-(inactivity + grace))
	res := db.Where("(completed = ? AND auto_delete_after IS NOT NULL AND auto_delete_after <= ?) OR last_activity < ?",
		true, now, idleBefore).
		Delete(&entity.CaseSession{})
	return res.RowsAffected, res.Error
}
