package database

import (
	"github.com/evandrarf/neurocase-be/internal/entity"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entity.MCQ{},
		&entity.CaseSession{},
		&entity.UserCaseHistory{},
		&entity.ReasoningSession{},
		&entity.JobRun{},
	)
	return err
}
