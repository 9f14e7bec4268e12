package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/event"
	"github.com/evandrarf/neurocase-be/internal/pkg/jobqueue"
	"github.com/evandrarf/neurocase-be/internal/pkg/mapper"
	"github.com/evandrarf/neurocase-be/internal/pkg/reasoning"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReasoningJobType is the job queue type for background analyses.
const ReasoningJobType = "reasoning_analysis"

const (
	minReasoningLength  = 10
	maxFeedbackComments = 2000
	lastStepMessage     = "Already at the last step"
)

type ReasoningUsecase interface {
	Start(ctx context.Context, userID string, req entity.StartReasoningRequest) (*entity.StartReasoningResponse, error)
	Advance(ctx context.Context, userID, sessionID string) (*entity.AdvanceStepResponse, error)
	SubmitFeedback(ctx context.Context, userID, sessionID string, req entity.ReasoningFeedbackRequest) error
	Status(ctx context.Context, userID, sessionID string) (*entity.ReasoningStatusResponse, error)
	FailedSessions(ctx context.Context, hours, limit int) (*entity.FailedSessionSummary, error)
	RunJob(ctx context.Context, job *internalEntity.JobRun) (any, error)
}

type ReasoningConfig struct {
	DB       *gorm.DB
	Sessions repository.ReasoningRepository
	MCQs     repository.MCQRepository
	Analyzer *reasoning.Analyzer
	Queue    jobqueue.Queue
	Events   event.Publisher
	Log      *logrus.Logger

	// Inline runs the analysis inside the request instead of the job queue.
	Inline bool
}

type reasoningUsecase struct {
	cfg ReasoningConfig
	now func() time.Time
}

func NewReasoningUsecase(cfg ReasoningConfig) ReasoningUsecase {
	if cfg.Events == nil {
		cfg.Events = event.NopPublisher{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Queue == nil {
		cfg.Inline = true
	}
	return &reasoningUsecase{cfg: cfg, now: time.Now}
}

type reasoningJobPayload struct {
	SessionID string `json:"session_id"`
}

func (u *reasoningUsecase) Start(ctx context.Context, userID string, req entity.StartReasoningRequest) (*entity.StartReasoningResponse, error) {
	text := strings.TrimSpace(req.Reasoning)
	if utf8.RuneCountInString(text) < minReasoningLength {
		return nil, ErrReasoningTooShort
	}
	mcq, err := u.cfg.MCQs.Get(nil, req.MCQID)
	if err != nil {
		return nil, err
	}

	session := &internalEntity.ReasoningSession{
		SessionID:       newSessionID(),
		UserID:          userID,
		MCQID:           mcq.ID,
		SelectedAnswer:  strings.ToUpper(strings.TrimSpace(req.SelectedAnswer)),
		IsCorrect:       req.IsCorrect,
		Reasoning:       text,
		SecondaryBiases: internalEntity.JSONStrings(nil),
		KnowledgeGaps:   internalEntity.JSONStrings(nil),
		Misconceptions:  internalEntity.JSONStrings(nil),
		Status:          internalEntity.ReasoningStatusAnalyzing,
	}
	if err := u.cfg.Sessions.Create(nil, session); err != nil {
		return nil, err
	}
	fields := logrus.Fields{"session_id": session.SessionID, "mcq_id": mcq.ID, "user_id": userID}

	if u.cfg.Inline {
		u.cfg.Log.WithFields(fields).Info("running reasoning analysis inline")
		analysis := u.cfg.Analyzer.Analyze(ctx, reasoningInput(mcq, session))
		steps := reasoning.BuildSteps(analysis)
		if err := u.store(session, analysis, steps, internalEntity.ReasoningStatusReady); err != nil {
			return nil, u.markError(session, fields, err)
		}
		u.publishReady(ctx, session)
		return readyResponse(session, analysis, steps), nil
	}

	u.cfg.Log.WithFields(fields).Info("queueing background reasoning analysis")
	jobID, err := u.cfg.Queue.Enqueue(ctx, ReasoningJobType, userID, reasoningJobPayload{SessionID: session.SessionID})
	if err != nil {
		return nil, u.markError(session, fields, err)
	}
	session.JobID = jobID
	session.Status = internalEntity.ReasoningStatusProcessing
	if err := u.cfg.Sessions.Save(nil, session); err != nil {
		return nil, u.markError(session, fields, err)
	}

	placeholder := reasoning.Placeholder()
	return &entity.StartReasoningResponse{
		Status:     internalEntity.ReasoningStatusProcessing,
		SessionID:  session.SessionID,
		JobID:      jobID,
		Analysis:   toAnalysisDTO(placeholder),
		TotalSteps: 1,
	}, nil
}

// RunJob is the job queue handler for ReasoningJobType.
func (u *reasoningUsecase) RunJob(ctx context.Context, job *internalEntity.JobRun) (any, error) {
	var payload reasoningJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode reasoning job payload: %w", err)
	}
	session, err := u.cfg.Sessions.GetBySessionID(nil, payload.SessionID)
	if err != nil {
		return nil, err
	}
	result := map[string]string{"session_id": session.SessionID, "status": internalEntity.ReasoningStatusReady}
	if session.Status == internalEntity.ReasoningStatusReady {
		return result, nil
	}

	fields := logrus.Fields{"session_id": session.SessionID, "job_id": job.ID, "attempt": job.Attempts}
	mcq, err := u.cfg.MCQs.Get(nil, session.MCQID)
	if err != nil {
		u.markFailed(session, fields, err)
		return nil, err
	}
	analysis := u.cfg.Analyzer.Analyze(ctx, reasoningInput(mcq, session))
	if err := u.store(session, analysis, reasoning.BuildSteps(analysis), internalEntity.ReasoningStatusReady); err != nil {
		u.markFailed(session, fields, err)
		return nil, err
	}
	u.cfg.Log.WithFields(fields).Info("background reasoning analysis ready")
	u.publishReady(ctx, session)
	return result, nil
}

func (u *reasoningUsecase) Advance(ctx context.Context, userID, sessionID string) (*entity.AdvanceStepResponse, error) {
	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return nil, err
	}
	steps, err := mapper.ConvertToGuidanceSteps(session)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrGuidanceNotAvailable
	}

	last := len(steps) - 1
	if session.CurrentStep >= last {
		return &entity.AdvanceStepResponse{
			Step:        steps[last],
			StepNumber:  last,
			TotalSteps:  len(steps),
			IsCompleted: true,
			Message:     lastStepMessage,
		}, nil
	}

	session.CurrentStep++
	if err := u.cfg.Sessions.Save(nil, session); err != nil {
		return nil, err
	}
	return &entity.AdvanceStepResponse{
		Step:        steps[session.CurrentStep],
		StepNumber:  session.CurrentStep,
		TotalSteps:  len(steps),
		HasNextStep: session.CurrentStep < last,
		IsCompleted: session.CurrentStep >= last,
	}, nil
}

func (u *reasoningUsecase) SubmitFeedback(ctx context.Context, userID, sessionID string, req entity.ReasoningFeedbackRequest) error {
	feedback := strings.TrimSpace(req.Feedback)
	switch feedback {
	case internalEntity.FeedbackHelpful, internalEntity.FeedbackSomewhatHelpful, internalEntity.FeedbackNotHelpful:
	default:
		return ErrInvalidFeedback
	}

	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return err
	}
	now := u.now()
	session.Feedback = feedback
	session.FeedbackComments = truncateRunes(strings.TrimSpace(req.Comments), maxFeedbackComments)
	session.CompletedAt = &now
	if err := u.cfg.Sessions.Save(nil, session); err != nil {
		return err
	}
	u.cfg.Log.WithFields(logrus.Fields{"session_id": sessionID, "feedback": feedback}).Info("captured reasoning feedback")
	return nil
}

func (u *reasoningUsecase) Status(ctx context.Context, userID, sessionID string) (*entity.ReasoningStatusResponse, error) {
	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case internalEntity.ReasoningStatusReady:
		return u.readyStatus(session)

	case internalEntity.ReasoningStatusFailed:
		fields := logrus.Fields{"session_id": session.SessionID, "previous_error": session.ErrorMessage}
		mcq, err := u.cfg.MCQs.Get(nil, session.MCQID)
		if err == nil {
			analysis := u.cfg.Analyzer.Analyze(ctx, reasoningInput(mcq, session))
			err = u.store(session, analysis, reasoning.BuildSteps(analysis), internalEntity.ReasoningStatusReady)
		}
		if err != nil {
			u.cfg.Log.WithFields(fields).WithError(err).Error("inline fallback after failed analysis failed")
			return &entity.ReasoningStatusResponse{
				Status:    internalEntity.ReasoningStatusFailed,
				SessionID: session.SessionID,
				Error:     firstNonEmpty(session.ErrorMessage, "Analysis failed"),
			}, nil
		}
		u.cfg.Log.WithFields(fields).Info("failed analysis recovered inline")
		u.publishReady(ctx, session)
		return u.readyStatus(session)

	case internalEntity.ReasoningStatusAnalyzing, internalEntity.ReasoningStatusProcessing:
		return &entity.ReasoningStatusResponse{
			Status:    internalEntity.ReasoningStatusProcessing,
			SessionID: session.SessionID,
		}, nil
	}

	return &entity.ReasoningStatusResponse{
		Status:    internalEntity.ReasoningStatusError,
		SessionID: session.SessionID,
		Error:     "Unexpected session status: " + session.Status,
	}, nil
}

func (u *reasoningUsecase) FailedSessions(ctx context.Context, hours, limit int) (*entity.FailedSessionSummary, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 10
	}
	since := u.now().Add(-time.Duration(hours) * time.Hour)

	db := u.cfg.DB
	if db != nil {
		db = db.WithContext(ctx)
	}
	counts, err := u.cfg.Sessions.CountByStatusSince(db, since)
	if err != nil {
		return nil, err
	}
	failed, err := u.cfg.Sessions.FindFailedSince(db, since, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]entity.FailedSessionRow, 0, len(failed))
	for _, s := range failed {
		rows = append(rows, entity.FailedSessionRow{
			SessionID:    s.SessionID,
			UserID:       s.UserID,
			MCQID:        s.MCQID,
			Status:       s.Status,
			ErrorMessage: s.ErrorMessage,
			CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &entity.FailedSessionSummary{WindowHours: hours, StatusCounts: counts, Failed: rows}, nil
}

func (u *reasoningUsecase) store(session *internalEntity.ReasoningSession, a reasoning.Analysis, steps []reasoning.Step, status string) error {
	secondary := make([]string, len(a.SecondaryBias))
	for i, b := range a.SecondaryBias {
		secondary[i] = string(b)
	}
	stored := make([]internalEntity.GuidanceStep, len(steps))
	for i, s := range steps {
		stored[i] = internalEntity.GuidanceStep(s)
	}

	next := *session
	if err := next.SetSteps(stored); err != nil {
		return fmt.Errorf("encode guidance: %w", err)
	}
	next.PrimaryBias = string(a.PrimaryBias)
	next.SecondaryBiases = internalEntity.JSONStrings(secondary)
	next.KnowledgeGaps = internalEntity.JSONStrings(a.KnowledgeGaps)
	next.Misconceptions = internalEntity.JSONStrings(a.Misconceptions)
	next.Quality = string(a.Quality)
	next.Confidence = a.Confidence
	next.Summary = a.Summary
	next.CurrentStep = 0
	next.Status = status
	next.ErrorMessage = ""
	if err := u.cfg.Sessions.Save(nil, &next); err != nil {
		return err
	}
	*session = next
	return nil
}

func (u *reasoningUsecase) markError(session *internalEntity.ReasoningSession, fields logrus.Fields, cause error) error {
	u.cfg.Log.WithFields(fields).WithError(cause).Error("reasoning analysis failed")
	session.Status = internalEntity.ReasoningStatusError
	session.ErrorMessage = cause.Error()
	if err := u.cfg.Sessions.Save(nil, session); err != nil {
		u.cfg.Log.WithFields(fields).WithError(err).Warn("could not record reasoning session error")
	}
	return fmt.Errorf("%w: %w", ErrAnalysisFailed, cause)
}

func (u *reasoningUsecase) markFailed(session *internalEntity.ReasoningSession, fields logrus.Fields, cause error) {
	u.cfg.Log.WithFields(fields).WithError(cause).Error("background reasoning analysis failed")
	session.Status = internalEntity.ReasoningStatusFailed
	session.ErrorMessage = cause.Error()
	if err := u.cfg.Sessions.Save(nil, session); err != nil {
		u.cfg.Log.WithFields(fields).WithError(err).Warn("could not record reasoning session failure")
	}
}

func (u *reasoningUsecase) readyStatus(session *internalEntity.ReasoningSession) (*entity.ReasoningStatusResponse, error) {
	steps, err := mapper.ConvertToGuidanceSteps(session)
	if err != nil {
		return nil, err
	}
	analysis := mapper.ConvertToReasoningAnalysis(session)
	return &entity.ReasoningStatusResponse{
		Status:    internalEntity.ReasoningStatusReady,
		SessionID: session.SessionID,
		Analysis:  &analysis,
		Steps:     steps,
	}, nil
}

func (u *reasoningUsecase) publishReady(ctx context.Context, session *internalEntity.ReasoningSession) {
	e := event.New(event.ReasoningReady, session.UserID, map[string]any{
		"session_id": session.SessionID,
		"mcq_id":     session.MCQID,
		"quality":    session.Quality,
	})
	if err := u.cfg.Events.Publish(ctx, e); err != nil {
		u.cfg.Log.WithError(err).WithField("event", e.Type).Warn("publish event failed")
	}
}

func readyResponse(session *internalEntity.ReasoningSession, a reasoning.Analysis, steps []reasoning.Step) *entity.StartReasoningResponse {
	resp := &entity.StartReasoningResponse{
		Status:     internalEntity.ReasoningStatusReady,
		SessionID:  session.SessionID,
		Analysis:   toAnalysisDTO(a),
		TotalSteps: len(steps),
	}
	if len(steps) > 0 {
		first := entity.GuidanceStep(steps[0])
		resp.FirstStep = &first
	}
	return resp
}

func reasoningInput(mcq *internalEntity.MCQ, session *internalEntity.ReasoningSession) reasoning.Input {
	return reasoning.Input{
		Question: reasoning.Question{
			ID:            strconv.FormatUint(uint64(mcq.ID), 10),
			Stem:          mcq.QuestionText,
			Options:       mcq.OptionMap(),
			CorrectLetter: mcq.CorrectLetter(),
			Explanation:   mcq.Explanation,
			Subspecialty:  mcq.Subspecialty,
		},
		SelectedAnswer: session.SelectedAnswer,
		Reasoning:      session.Reasoning,
		IsCorrect:      session.IsCorrect,
	}
}

func toAnalysisDTO(a reasoning.Analysis) entity.ReasoningAnalysis {
	secondary := make([]string, len(a.SecondaryBias))
	for i, b := range a.SecondaryBias {
		secondary[i] = string(b)
	}
	return entity.ReasoningAnalysis{
		PrimaryBias:      string(a.PrimaryBias),
		SecondaryBiases:  secondary,
		KnowledgeGaps:    nonNil(a.KnowledgeGaps),
		Misconceptions:   nonNil(a.Misconceptions),
		ReasoningQuality: string(a.Quality),
		Confidence:       a.Confidence,
		Summary:          a.Summary,
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
