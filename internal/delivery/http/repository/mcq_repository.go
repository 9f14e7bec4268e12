package repository

import (
	"errors"
	"fmt"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"gorm.io/gorm"
)

var ErrMCQNotFound = errors.New("mcq not found")

type (
	MCQRepository interface {
		Create(db *gorm.DB, mcq *entity.MCQ) error
		Get(db *gorm.DB, id uint) (*entity.MCQ, error)
		Count(db *gorm.DB) (int64, error)
		UpdateStem(db *gorm.DB, id uint, stem string) error
		UpdateStemAndOptions(db *gorm.DB, id uint, stem string, options map[string]string) error
		UpdateOptions(db *gorm.DB, id uint, options map[string]string) error
	}

	mcqRepository struct {
		db *gorm.DB
	}
)

func NewMCQRepository(db *gorm.DB) MCQRepository {
	return &mcqRepository{db: db}
}

func (r *mcqRepository) Create(db *gorm.DB, mcq *entity.MCQ) error {
	if db == nil {
		db = r.db
	}
	return db.Create(mcq).Error
}

func (r *mcqRepository) Get(db *gorm.DB, id uint) (*entity.MCQ, error) {
	if db == nil {
		db = r.db
	}
	var mcq entity.MCQ
	err := db.First(&mcq, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMCQNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mcq, nil
}

func (r *mcqRepository) Count(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&entity.MCQ{}).Count(&count).Error
	return count, err
}

func (r *mcqRepository) UpdateStem(db *gorm.DB, id uint, stem string) error {
	return r.update(db, id, map[string]any{"question_text": stem})
}

func (r *mcqRepository) UpdateStemAndOptions(db *gorm.DB, id uint, stem string, options map[string]string) error {
	var m entity.MCQ
	if err := m.SetOptions(options); err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	return r.update(db, id, map[string]any{"question_text": stem, "options": m.Options})
}

func (r *mcqRepository) UpdateOptions(db *gorm.DB, id uint, options map[string]string) error {
	var m entity.MCQ
	if err := m.SetOptions(options); err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	return r.update(db, id, map[string]any{"options": m.Options})
}

func (r *mcqRepository) update(db *gorm.DB, id uint, fields map[string]any) error {
	if db == nil {
		db = r.db
	}
	res := db.Model(&entity.MCQ{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMCQNotFound
	}
	return nil
}
