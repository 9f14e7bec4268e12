package repository

import (
	"errors"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"gorm.io/gorm"
)

type (
	UserCaseHistoryRepository interface {
		Get(db *gorm.DB, userID string) (*entity.UserCaseHistory, error)
		AddSkipped(db *gorm.DB, userID string, skipped entity.SkippedCase) error
	}

	userCaseHistoryRepository struct {
		db *gorm.DB
	}
)

func NewUserCaseHistoryRepository(db *gorm.DB) UserCaseHistoryRepository {
	return &userCaseHistoryRepository{db: db}
}

// Get returns the user's history, or an empty one when none is stored yet.
func (r *userCaseHistoryRepository) Get(db *gorm.DB, userID string) (*entity.UserCaseHistory, error) {
	if db == nil {
		db = r.db
	}
	var history entity.UserCaseHistory
	err := db.Where("user_id = ?", userID).First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entity.UserCaseHistory{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}

func (r *userCaseHistoryRepository) AddSkipped(db *gorm.DB, userID string, skipped entity.SkippedCase) error {
	if db == nil {
		db = r.db
	}
	return db.Transaction(func(tx *gorm.DB) error {
		history, err := r.Get(tx, userID)
		if err != nil {
			return err
		}
		if err := history.AddSkipped(skipped); err != nil {
			return err
		}
		return tx.Save(history).Error
	})
}
