package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/cache"
	"github.com/evandrarf/neurocase-be/internal/pkg/event"
	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/metrics"
	"github.com/evandrarf/neurocase-be/internal/pkg/phase"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type CaseUsecase interface {
	Start(ctx context.Context, userID string, req entity.StartCaseRequest) (*entity.StartCaseResponse, error)
	SendTurn(ctx context.Context, userID, sessionID, message string) (*entity.TurnResponse, error)
	Skip(ctx context.Context, userID, sessionID string) (*entity.StartCaseResponse, error)
	Resume(ctx context.Context, userID, sessionID string) (*entity.ResumeCaseResponse, error)
}

type CaseConfig struct {
	DB        *gorm.DB
	Generator llm.GenerationClient
	Sessions  repository.CaseSessionRepository
	MCQs      repository.MCQRepository
	History   repository.UserCaseHistoryRepository
	Cache     cache.Store
	Events    event.Publisher
	Stages    *phase.Table
	Critical  phase.CriticalTable
	Log       *logrus.Logger

	HistoryWindow int
	MaxTokens     int
	Timeout       time.Duration
	Retention     time.Duration
	LockTTL       time.Duration
	LockWait      time.Duration
}

type caseUsecase struct {
	cfg    CaseConfig
	flight singleflight.Group
	now    func() time.Time
}

func NewCaseUsecase(cfg CaseConfig) CaseUsecase {
	if cfg.Stages == nil {
		cfg.Stages = phase.DefaultTable()
	}
	if cfg.Events == nil {
		cfg.Events = event.NopPublisher{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 12
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 700
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 120 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 3 * time.Second
	}
	return &caseUsecase{cfg: cfg, now: time.Now}
}

// caseSeed is what a new case is generated from.
type caseSeed struct {
	Specialty     string
	Difficulty    string
	CustomRequest string
	MCQ           *internalEntity.MCQ
	Avoid         []internalEntity.SkippedCase
}

func (u *caseUsecase) Start(ctx context.Context, userID string, req entity.StartCaseRequest) (*entity.StartCaseResponse, error) {
	seed := caseSeed{
		Specialty:     normalizeSpecialty(req.Specialty),
		Difficulty:    normalizeDifficulty(req.Difficulty),
		CustomRequest: strings.TrimSpace(req.CustomRequest),
	}
	if req.MCQID != nil {
		return u.startFromMCQ(ctx, userID, *req.MCQID, seed, strings.TrimSpace(req.Specialty) == "")
	}

	avoid, err := u.skippedCases(userID)
	if err != nil {
		return nil, err
	}
	seed.Avoid = avoid
	return u.createSession(ctx, userID, seed)
}

func (u *caseUsecase) startFromMCQ(ctx context.Context, userID string, mcqID uint, seed caseSeed, useMCQSpecialty bool) (*entity.StartCaseResponse, error) {
	mcq, err := u.cfg.MCQs.Get(nil, mcqID)
	if err != nil {
		return nil, err
	}
	seed.MCQ = mcq
	if useMCQSpecialty && strings.TrimSpace(mcq.Subspecialty) != "" {
		seed.Specialty = mcq.Subspecialty
	}

	key := cache.CaseConversionLockKey(mcqID, userID)
	v, err, _ := u.flight.Do(key, func() (any, error) {
		acquired, err := u.cfg.Cache.Add(ctx, key, u.now().Unix(), u.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire conversion lock: %w", err)
		}
		if !acquired {
			return u.awaitConversion(ctx, userID, mcqID)
		}
		defer func() {
			if err := u.cfg.Cache.Delete(context.WithoutCancel(ctx), key); err != nil {
				u.cfg.Log.WithError(err).WithField("key", key).Warn("release conversion lock failed")
			}
		}()
		return u.createSession(ctx, userID, seed)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.StartCaseResponse), nil
}

// awaitConversion waits for a conversion running elsewhere and reuses its
// session.
func (u *caseUsecase) awaitConversion(ctx context.Context, userID string, mcqID uint) (*entity.StartCaseResponse, error) {
	since := u.now().Add(-u.cfg.LockTTL)
	deadline := time.NewTimer(u.cfg.LockWait)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		session, err := u.cfg.Sessions.FindLatestForMCQ(nil, userID, mcqID, since)
		if err != nil {
			return nil, err
		}
		if session != nil {
			transcript, err := session.Transcript()
			if err != nil {
				return nil, fmt.Errorf("decode transcript: %w", err)
			}
			return &entity.StartCaseResponse{
				SessionID: session.SessionID,
				Message:   lastAssistant(transcript, resumeDefaultMessage),
				Phase:     phase.Parse(session.Phase).String(),
				Reused:    true,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrConversionInProgress
		case <-tick.C:
		}
	}
}

func (u *caseUsecase) createSession(ctx context.Context, userID string, seed caseSeed) (*entity.StartCaseResponse, error) {
	payload, transcript, start, err := u.newCase(ctx, seed)
	if err != nil {
		return nil, err
	}

	session := &internalEntity.CaseSession{
		SessionID:   newSessionID(),
		UserID:      userID,
		Specialty:   seed.Specialty,
		Difficulty:  seed.Difficulty,
		Phase:       start.String(),
		SourceMCQID: payload.SourceMCQID,
	}
	if err := session.SetPayload(payload); err != nil {
		return nil, fmt.Errorf("encode case data: %w", err)
	}
	if err := session.SetTranscript(transcript); err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	if err := u.cfg.Sessions.Create(nil, session); err != nil {
		return nil, fmt.Errorf("create case session: %w", err)
	}

	u.cfg.Log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"user_id":    userID,
		"specialty":  seed.Specialty,
		"origin":     payload.Origin,
	}).Info("case session started")

	return &entity.StartCaseResponse{
		SessionID: session.SessionID,
		Message:   transcript[len(transcript)-1].Content,
		Phase:     start.String(),
	}, nil
}

// newCase generates the opening of a case. Nothing is stored.
func (u *caseUsecase) newCase(ctx context.Context, seed caseSeed) (internalEntity.CaseData, []internalEntity.Message, phase.Phase, error) {
	systemPrompt := buildCaseSystemPrompt(seed.Specialty, seed.Difficulty, seed.CustomRequest, seed.MCQ)
	instruction := buildLaunchInstruction(seed.MCQ, seed.Avoid)

	opening, err := u.reply(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: instruction},
		{Role: llm.RoleSystem, Content: forceDirective("Provide a concise chief complaint only, then invite the learner to begin their history-taking.", "")},
	})
	if err != nil {
		return internalEntity.CaseData{}, nil, "", err
	}

	complaint := chiefComplaint(opening)
	payload := internalEntity.CaseData{
		ChiefComplaint:        complaint,
		CriticalHistoryMissed: []string{},
		CriticalExamMissed:    []string{},
		Specialty:             seed.Specialty,
		Difficulty:            seed.Difficulty,
		CustomRequest:         seed.CustomRequest,
		Origin:                internalEntity.OriginFreeform,
		SystemPrompt:          systemPrompt,
		CaseHash:              caseHash(seed.Specialty, complaint),
	}
	start := phase.Intro
	if seed.MCQ != nil {
		id := seed.MCQ.ID
		payload.Origin = internalEntity.OriginMCQ
		payload.SourceMCQID = &id
		start = phase.DifferentialPrompt
	}
	return payload, []internalEntity.Message{{Role: llm.RoleAssistant, Content: opening}}, start, nil
}

func (u *caseUsecase) SendTurn(ctx context.Context, userID, sessionID, message string) (*entity.TurnResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return nil, err
	}
	payload, err := session.Payload()
	if err != nil {
		return nil, fmt.Errorf("decode case data: %w", err)
	}
	transcript, err := session.Transcript()
	if err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if payload.SystemPrompt == "" {
		return nil, errors.New("session is missing its system prompt")
	}

	current := phase.Parse(session.Phase)
	critical := u.cfg.Critical.For(payload.Specialty)
	mentionedHistory := phase.Mentioned(message, critical.History)
	mentionedExam := phase.Mentioned(message, critical.Examination)
	payload.HistoryCollected = phase.Merge(payload.HistoryCollected, mentionedHistory...)
	payload.ExamCollected = phase.Merge(payload.ExamCollected, mentionedExam...)

	// supplying a missing item from a gate returns to the gathering phase
	base := current
	switch {
	case current == phase.HistoryFeedback && overlaps(mentionedHistory, payload.CriticalHistoryMissed):
		base = current.Gathering()
		payload.CriticalHistoryMissed = nonNil(phase.Missing(critical.History, payload.HistoryCollected))
	case current == phase.ExaminationFeedback && overlaps(mentionedExam, payload.CriticalExamMissed):
		base = current.Gathering()
		payload.CriticalExamMissed = nonNil(phase.Missing(critical.Examination, payload.ExamCollected))
	}

	cmd, targeted := u.cfg.Stages.Classify(message)
	fields := logrus.Fields{"session_id": session.SessionID, "phase": current}

	if targeted {
		if gate, missing := gateFor(base, cmd.Phase(), critical, payload); len(missing) > 0 {
			if gate == phase.HistoryFeedback {
				payload.CriticalHistoryMissed = missing
			} else {
				payload.CriticalExamMissed = missing
			}
			group := "history"
			if gate == phase.ExaminationFeedback {
				group = "examination"
			}
			reply := gateReply(group, missing)
			u.cfg.Log.WithFields(fields).WithField("missing", missing).Info("phase advance gated on critical elements")
			return u.commit(ctx, session, transcript, payload, message, reply, gate, "gated", missing)
		}
	}

	var (
		next     phase.Phase
		mode     string
		messages []llm.Message
	)
	// in a prompt phase, free text or an answer on the same stage is the learner's own attempt
	contributed := base.IsPrompt() &&
		(!targeted || cmd.Phase().Stage() == base.Stage() || (cmd.Contribution && !base.Before(cmd.Phase())))
	switch {
	case contributed:
		next, _ = base.FeedbackOf()
		mode = "contribution"
		stage, _ := u.cfg.Stages.StageFor(base)
		payload.Contributions = withContribution(payload.Contributions, base.Stage(), message)
		messages = u.historyMessages(payload.SystemPrompt+"\n\nCURRENT REQUEST:\n"+forceDirective(stage.FeedbackInstruction, message), transcript, message)
	case targeted:
		next = phase.Max(base, cmd.Phase())
		mode = "targeted"
		if cmd.Contribution && cmd.Phase().IsFeedback() {
			payload.Contributions = withContribution(payload.Contributions, cmd.Stage.Name, message)
		}
		messages = []llm.Message{
			{Role: llm.RoleSystem, Content: payload.SystemPrompt + "\n\nCURRENT REQUEST:\n" + forceDirective(cmd.Instruction(), message)},
			{Role: llm.RoleUser, Content: message},
		}
	default:
		next = base.Settle()
		mode = "free"
		messages = u.historyMessages(payload.SystemPrompt+"\n\n"+u.cfg.Stages.DefaultInstruction, transcript, message)
	}

	if next == phase.Examination && !payload.ScreeningExamDone {
		mode = "screening"
		messages = []llm.Message{
			{Role: llm.RoleSystem, Content: payload.SystemPrompt},
			{Role: llm.RoleSystem, Content: screeningInstruction},
			{Role: llm.RoleUser, Content: message},
		}
	}

	reply, err := u.reply(ctx, messages)
	if err != nil {
		u.cfg.Log.WithFields(fields).WithError(err).Error("case turn generation failed")
		return nil, err
	}
	if mode == "screening" {
		reply = screeningReply(reply)
		payload.ScreeningExamDone = true
		payload.ExamFindings = append(payload.ExamFindings, screeningFinding)
	}
	return u.commit(ctx, session, transcript, payload, message, reply, next, mode, nil)
}

// commit appends the exchange and stores the turn. Reaching the conclusion
// also completes the session in the same transaction.
func (u *caseUsecase) commit(ctx context.Context, session *internalEntity.CaseSession, transcript []internalEntity.Message, payload internalEntity.CaseData, message, reply string, next phase.Phase, mode string, missing []string) (*entity.TurnResponse, error) {
	transcript = append(transcript,
		internalEntity.Message{Role: llm.RoleUser, Content: message},
		internalEntity.Message{Role: llm.RoleAssistant, Content: reply},
	)
	completing := !next.Before(phase.Conclusion) && !session.Completed

	err := u.cfg.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := u.cfg.Sessions.SaveTranscript(tx, session, transcript, payload, next.String()); err != nil {
			return fmt.Errorf("save case turn: %w", err)
		}
		if completing {
			if err := u.cfg.Sessions.MarkCompleted(tx, session, u.cfg.Retention); err != nil {
				return fmt.Errorf("complete case session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CaseTurns.WithLabelValues(mode).Inc()

	if completing {
		u.publish(ctx, event.New(event.CaseCompleted, session.UserID, map[string]any{
			"session_id": session.SessionID,
			"specialty":  payload.Specialty,
			"case_hash":  payload.CaseHash,
		}))
	}

	return &entity.TurnResponse{
		Message:  reply,
		Phase:    next.String(),
		Missing:  missing,
		Complete: session.Completed,
	}, nil
}

func (u *caseUsecase) Skip(ctx context.Context, userID, sessionID string) (*entity.StartCaseResponse, error) {
	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return nil, err
	}
	old, err := session.Payload()
	if err != nil {
		return nil, fmt.Errorf("decode case data: %w", err)
	}

	skipped := internalEntity.SkippedCase{
		CaseHash:       old.CaseHash,
		ChiefComplaint: old.ChiefComplaint,
		Specialty:      old.Specialty,
		SkippedAt:      u.now().UTC(),
	}
	avoid, err := u.skippedCases(userID)
	if err != nil {
		return nil, err
	}

	seed := caseSeed{
		Specialty:     normalizeSpecialty(firstNonEmpty(old.Specialty, session.Specialty)),
		Difficulty:    normalizeDifficulty(firstNonEmpty(old.Difficulty, session.Difficulty)),
		CustomRequest: old.CustomRequest,
		Avoid:         append(avoid, skipped),
	}
	if session.SourceMCQID != nil {
		mcq, err := u.cfg.MCQs.Get(nil, *session.SourceMCQID)
		if err != nil {
			return nil, err
		}
		seed.MCQ = mcq
	}

	payload, transcript, start, err := u.newCase(ctx, seed)
	if err != nil {
		return nil, err
	}
	// the source question is fixed at creation
	payload.SourceMCQID = session.SourceMCQID

	err = u.cfg.DB.Transaction(func(tx *gorm.DB) error {
		if err := u.cfg.Sessions.ReplaceConversation(tx, session, transcript, payload, start.String(), seed.Specialty, seed.Difficulty); err != nil {
			return err
		}
		return u.cfg.History.AddSkipped(tx, userID, skipped)
	})
	if err != nil {
		return nil, fmt.Errorf("skip case: %w", err)
	}

	u.publish(ctx, event.New(event.CaseSkipped, userID, map[string]any{
		"session_id": session.SessionID,
		"case_hash":  skipped.CaseHash,
	}))
	return &entity.StartCaseResponse{
		SessionID: session.SessionID,
		Message:   transcript[len(transcript)-1].Content,
		Phase:     start.String(),
	}, nil
}

func (u *caseUsecase) Resume(ctx context.Context, userID, sessionID string) (*entity.ResumeCaseResponse, error) {
	session, err := u.cfg.Sessions.GetForUser(nil, sessionID, userID)
	if err != nil {
		return nil, err
	}
	transcript, err := session.Transcript()
	if err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	payload, err := session.Payload()
	if err != nil {
		return nil, fmt.Errorf("decode case data: %w", err)
	}
	if err := u.cfg.Sessions.SaveTranscript(nil, session, transcript, payload, session.Phase); err != nil {
		return nil, fmt.Errorf("touch case session: %w", err)
	}
	return &entity.ResumeCaseResponse{
		SessionID: session.SessionID,
		Message:   lastAssistant(transcript, resumeDefaultMessage),
		Phase:     phase.Parse(session.Phase).String(),
		Notice:    resumeNotice,
	}, nil
}

// reply makes one generation call and retries once on the fallback model
// when the content comes back empty.
func (u *caseUsecase) reply(ctx context.Context, messages []llm.Message) (string, error) {
	opts := llm.Options{
		MaxOutputTokens: u.cfg.MaxTokens,
		Temperature:     llm.Float32(0.7),
		Timeout:         u.cfg.Timeout,
	}
	res, err := u.cfg.Generator.Generate(ctx, messages, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if text, err := res.RequireText(); err == nil {
		return text, nil
	}

	u.cfg.Log.WithField("model", res.Model).Warn("case tutor returned empty content, retrying on fallback model")
	opts.UseFallback = true
	res, err = u.cfg.Generator.Generate(ctx, messages, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	text, err := res.RequireText()
	if err != nil {
		return "", ErrTutorUnavailable
	}
	return text, nil
}

func (u *caseUsecase) historyMessages(system string, transcript []internalEntity.Message, message string) []llm.Message {
	window := transcript
	if len(window) > u.cfg.HistoryWindow {
		window = window[len(window)-u.cfg.HistoryWindow:]
	}
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range window {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

func (u *caseUsecase) skippedCases(userID string) ([]internalEntity.SkippedCase, error) {
	history, err := u.cfg.History.Get(nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load case history: %w", err)
	}
	skipped, err := history.Skipped()
	if err != nil {
		return nil, fmt.Errorf("decode skipped cases: %w", err)
	}
	return skipped, nil
}

func (u *caseUsecase) publish(ctx context.Context, e event.Event) {
	if err := u.cfg.Events.Publish(ctx, e); err != nil {
		u.cfg.Log.WithError(err).WithField("event", e.Type).Warn("publish event failed")
	}
}

// gateFor returns the feedback gate and the missing critical items when a
// move from "from" to "to" leaves a gathering group incomplete.
func gateFor(from, to phase.Phase, critical phase.CriticalSet, payload internalEntity.CaseData) (phase.Phase, []string) {
	if from.InHistoryGroup() && !to.Before(phase.Examination) {
		if missing := phase.Missing(critical.History, payload.HistoryCollected); len(missing) > 0 {
			return phase.HistoryFeedback, missing
		}
	}
	if from.Before(phase.LocalizationPrompt) && !to.Before(phase.LocalizationPrompt) {
		if missing := phase.Missing(critical.Examination, payload.ExamCollected); len(missing) > 0 {
			return phase.ExaminationFeedback, missing
		}
	}
	return from, nil
}

func withContribution(m map[string]string, stage, message string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	m[stage] = message
	return m
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func lastAssistant(transcript []internalEntity.Message, fallback string) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == llm.RoleAssistant && strings.TrimSpace(transcript[i].Content) != "" {
			return transcript[i].Content
		}
	}
	return fallback
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func caseHash(specialty, complaint string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(specialty + "|" + complaint)))
	return hex.EncodeToString(sum[:8])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
