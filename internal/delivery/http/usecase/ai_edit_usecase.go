package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/aiedit"
	"github.com/evandrarf/neurocase-be/internal/pkg/cache"
	"github.com/evandrarf/neurocase-be/internal/pkg/event"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	EditTargetStem           = "stem"
	EditTargetMissingOptions = "missing-options"
	EditTargetAllOptions     = "all-options"
)

type AIEditUsecase interface {
	EditStem(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error)
	FillMissingOptions(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error)
	ImproveAllOptions(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error)
}

type AIEditConfig struct {
	DB      *gorm.DB
	MCQs    repository.MCQRepository
	Editor  *aiedit.Editor
	Cache   cache.Store
	Events  event.Publisher
	Log     *logrus.Logger
	LockTTL time.Duration
	Timeout time.Duration
}

type aiEditUsecase struct {
	cfg AIEditConfig
}

func NewAIEditUsecase(cfg AIEditConfig) AIEditUsecase {
	if cfg.Events == nil {
		cfg.Events = event.NopPublisher{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 180 * time.Second
	}
	return &aiEditUsecase{cfg: cfg}
}

func (u *aiEditUsecase) EditStem(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
	return u.run(ctx, userID, mcqID, EditTargetStem, func(ctx context.Context, mcq *internalEntity.MCQ) ([]string, error) {
		revision, err := u.cfg.Editor.EditStem(ctx, editQuestion(mcq), req.Instructions)
		if err != nil {
			return nil, err
		}
		if revision.Options == nil {
			if err := u.cfg.MCQs.UpdateStem(u.db(ctx), mcq.ID, revision.Stem); err != nil {
				return nil, err
			}
			mcq.QuestionText = revision.Stem
			return []string{EditTargetStem}, nil
		}

		changed := append([]string{EditTargetStem}, changedLetters(mcq.OptionMap(), revision.Options)...)
		if err := u.cfg.MCQs.UpdateStemAndOptions(u.db(ctx), mcq.ID, revision.Stem, revision.Options); err != nil {
			return nil, err
		}
		mcq.QuestionText = revision.Stem
		return changed, mcq.SetOptions(revision.Options)
	})
}

func (u *aiEditUsecase) FillMissingOptions(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
	return u.run(ctx, userID, mcqID, EditTargetMissingOptions, func(ctx context.Context, mcq *internalEntity.MCQ) ([]string, error) {
		if len(aiedit.MissingLetters(mcq.OptionMap())) == 0 {
			return nil, ErrNothingToFill
		}
		return u.replaceOptions(ctx, mcq, u.cfg.Editor.FillMissingOptions, req.Instructions)
	})
}

func (u *aiEditUsecase) ImproveAllOptions(ctx context.Context, userID string, mcqID uint, req entity.AIEditRequest) (*entity.AIEditResponse, error) {
	return u.run(ctx, userID, mcqID, EditTargetAllOptions, func(ctx context.Context, mcq *internalEntity.MCQ) ([]string, error) {
		return u.replaceOptions(ctx, mcq, u.cfg.Editor.ImproveAllOptions, req.Instructions)
	})
}

type optionsEdit func(ctx context.Context, q aiedit.Question, instructions string) (map[string]string, error)

func (u *aiEditUsecase) replaceOptions(ctx context.Context, mcq *internalEntity.MCQ, edit optionsEdit, instructions string) ([]string, error) {
	before := mcq.OptionMap()
	options, err := edit(ctx, editQuestion(mcq), instructions)
	if err != nil {
		return nil, err
	}
	changed := changedLetters(before, options)
	if len(changed) == 0 {
		return changed, nil
	}
	if err := u.cfg.MCQs.UpdateOptions(u.db(ctx), mcq.ID, options); err != nil {
		return nil, err
	}
	return changed, mcq.SetOptions(options)
}

// run loads the question under the per-user edit lock and applies edit.
// The question is written only by edit and only after validation passed.
func (u *aiEditUsecase) run(ctx context.Context, userID string, mcqID uint, target string, edit func(context.Context, *internalEntity.MCQ) ([]string, error)) (*entity.AIEditResponse, error) {
	mcq, err := u.cfg.MCQs.Get(u.db(ctx), mcqID)
	if err != nil {
		return nil, err
	}

	key := cache.AIEditLockKey(mcqID, userID)
	acquired, err := u.cfg.Cache.Add(ctx, key, time.Now().Unix(), u.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire edit lock: %w", err)
	}
	if !acquired {
		return nil, ErrEditInProgress
	}
	defer func() {
		if err := u.cfg.Cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			u.cfg.Log.WithError(err).WithField("key", key).Warn("release edit lock failed")
		}
	}()

	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}

	fields := logrus.Fields{"mcq_id": mcqID, "user_id": userID, "target": target}
	changed, err := edit(ctx, mcq)
	if err != nil {
		u.cfg.Log.WithFields(fields).WithError(err).Warn("ai edit not applied")
		return nil, err
	}
	u.cfg.Log.WithFields(fields).WithField("changed", changed).Info("ai edit applied")

	if len(changed) > 0 {
		e := event.New(event.AIEditApplied, userID, map[string]any{
			"mcq_id":  mcqID,
			"target":  target,
			"changed": changed,
		})
		if err := u.cfg.Events.Publish(ctx, e); err != nil {
			u.cfg.Log.WithError(err).WithField("event", e.Type).Warn("publish event failed")
		}
	}

	return &entity.AIEditResponse{
		MCQID:        mcq.ID,
		Target:       target,
		QuestionText: mcq.QuestionText,
		Options:      mcq.OptionMap(),
		Changed:      changed,
	}, nil
}

func (u *aiEditUsecase) db(ctx context.Context) *gorm.DB {
	if u.cfg.DB == nil {
		return nil
	}
	return u.cfg.DB.WithContext(ctx)
}

func editQuestion(mcq *internalEntity.MCQ) aiedit.Question {
	return aiedit.Question{
		ID:            strconv.FormatUint(uint64(mcq.ID), 10),
		Stem:          mcq.QuestionText,
		Options:       mcq.OptionMap(),
		CorrectLetter: mcq.CorrectLetter(),
		Explanation:   mcq.Explanation,
		Subspecialty:  mcq.Subspecialty,
	}
}

func changedLetters(before, after map[string]string) []string {
	changed := []string{}
	for letter, text := range after {
		if before[letter] != text {
			changed = append(changed, letter)
		}
	}
	sort.Strings(changed)
	return changed
}
