package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/event"
	"github.com/evandrarf/neurocase-be/internal/pkg/jobqueue"
	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/evandrarf/neurocase-be/internal/pkg/reasoning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const teachingFeedback = "<p>You showed anchoring on the first finding and did not weigh the sensory signs.</p>" +
	"<p>You should review the blood supply of the lateral medulla.</p>"

type reasoningFixture struct {
	db       *gorm.DB
	gen      *fakeGenerator
	sessions repository.ReasoningRepository
	mcq      *internalEntity.MCQ
	queue    *jobqueue.GormQueue
	events   *event.Recorder
	uc       ReasoningUsecase
}

func newReasoningFixture(t *testing.T, inline bool) *reasoningFixture {
	t.Helper()
	db := openTestDB(t)
	f := &reasoningFixture{
		db:       db,
		gen:      &fakeGenerator{respond: func(int, []llm.Message, llm.Options) (llm.Result, error) { return textResult(teachingFeedback), nil }},
		sessions: repository.NewReasoningRepository(db),
		queue:    jobqueue.NewGormQueue(db, quietLogger()),
		events:   &event.Recorder{},
	}
	mcqs := repository.NewMCQRepository(db)
	f.mcq = createMCQ(t, mcqs)
	f.uc = NewReasoningUsecase(ReasoningConfig{
		DB:       db,
		Sessions: f.sessions,
		MCQs:     mcqs,
		Analyzer: reasoning.NewAnalyzer(f.gen, time.Second, quietLogger()),
		Queue:    f.queue,
		Events:   f.events,
		Log:      quietLogger(),
		Inline:   inline,
	})
	return f
}

func (f *reasoningFixture) start(t *testing.T, userID string) *entity.StartReasoningResponse {
	t.Helper()
	resp, err := f.uc.Start(context.Background(), userID, entity.StartReasoningRequest{
		MCQID:          f.mcq.ID,
		SelectedAnswer: "a",
		Reasoning:      "Right-sided weakness made me think of the right hemisphere straight away.",
		IsCorrect:      false,
	})
	require.NoError(t, err)
	return resp
}

func TestReasoningInlineAnalysis(t *testing.T) {
	f := newReasoningFixture(t, true)

	resp := f.start(t, "u1")
	assert.Equal(t, internalEntity.ReasoningStatusReady, resp.Status)
	assert.Equal(t, 3, resp.TotalSteps)
	require.NotNil(t, resp.FirstStep)
	assert.Equal(t, reasoning.StepAnalysis, resp.FirstStep.Title)
	assert.Equal(t, string(reasoning.AnchoringBias), resp.Analysis.PrimaryBias)
	assert.Equal(t, []string{"the blood supply of the lateral medulla"}, resp.Analysis.KnowledgeGaps)
	assert.Equal(t, 1, f.gen.Calls())

	stored, err := f.sessions.GetForUser(nil, resp.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusReady, stored.Status)
	assert.Equal(t, "A", stored.SelectedAnswer)
	steps, err := stored.Steps()
	require.NoError(t, err)
	assert.Len(t, steps, 3)
	assert.Equal(t, []event.Type{event.ReasoningReady}, f.events.Types())
}

func TestReasoningRejectsShortInput(t *testing.T) {
	f := newReasoningFixture(t, true)

	_, err := f.uc.Start(context.Background(), "u1", entity.StartReasoningRequest{
		MCQID: f.mcq.ID, SelectedAnswer: "A", Reasoning: "  too short ",
	})
	assert.ErrorIs(t, err, ErrReasoningTooShort)

	var count int64
	require.NoError(t, f.db.Model(&internalEntity.ReasoningSession{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.gen.Calls())
}

func TestReasoningFallsBackToRulesWhenGeneratorFails(t *testing.T) {
	f := newReasoningFixture(t, true)
	f.gen.respond = func(int, []llm.Message, llm.Options) (llm.Result, error) {
		return llm.Result{}, &llm.TransientBackendError{StatusCode: 503, Err: errors.New("unavailable")}
	}

	resp := f.start(t, "u1")
	assert.Equal(t, internalEntity.ReasoningStatusReady, resp.Status)
	assert.GreaterOrEqual(t, resp.TotalSteps, 1)
	assert.NotEmpty(t, resp.Analysis.Summary)
	assert.NotEqual(t, string(reasoning.QualityAnalyzing), resp.Analysis.ReasoningQuality)
}

func TestReasoningBackgroundJob(t *testing.T) {
	ctx := context.Background()
	f := newReasoningFixture(t, false)

	resp := f.start(t, "u1")
	assert.Equal(t, internalEntity.ReasoningStatusProcessing, resp.Status)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 1, resp.TotalSteps)
	assert.Equal(t, string(reasoning.QualityAnalyzing), resp.Analysis.ReasoningQuality)
	assert.Zero(t, resp.Analysis.Confidence)
	assert.Zero(t, f.gen.Calls())

	status, err := f.uc.Status(ctx, "u1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusProcessing, status.Status)

	_, err = f.uc.Advance(ctx, "u1", resp.SessionID)
	assert.ErrorIs(t, err, ErrGuidanceNotAvailable)

	registry := jobqueue.NewRegistry()
	registry.Register(ReasoningJobType, f.uc.RunJob)
	pool := jobqueue.NewPool(jobqueue.PoolConfig{Queue: f.queue, Registry: registry, Log: quietLogger()})
	require.True(t, pool.RunOnce(ctx))

	status, err = f.uc.Status(ctx, "u1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusReady, status.Status)
	require.NotNil(t, status.Analysis)
	assert.Equal(t, string(reasoning.AnchoringBias), status.Analysis.PrimaryBias)
	assert.Len(t, status.Steps, 3)

	job, err := f.queue.Status(ctx, resp.JobID, "u1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.JobStatusSucceeded, job.Status)
	assert.JSONEq(t, `{"session_id":"`+resp.SessionID+`","status":"ready"}`, string(job.Result))
	assert.Equal(t, []event.Type{event.ReasoningReady}, f.events.Types())
}

func TestReasoningAdvanceThroughSteps(t *testing.T) {
	ctx := context.Background()
	f := newReasoningFixture(t, true)
	resp := f.start(t, "u1")

	step, err := f.uc.Advance(ctx, "u1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, step.StepNumber)
	assert.Equal(t, reasoning.StepReview, step.Step.Title)
	assert.True(t, step.HasNextStep)
	assert.False(t, step.IsCompleted)

	step, err = f.uc.Advance(ctx, "u1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, step.StepNumber)
	assert.Equal(t, reasoning.StepPattern, step.Step.Title)
	assert.False(t, step.HasNextStep)
	assert.True(t, step.IsCompleted)

	step, err = f.uc.Advance(ctx, "u1", resp.SessionID)
	require.NoError(t, err)
	assert.True(t, step.IsCompleted)
	assert.Equal(t, "Already at the last step", step.Message)
	assert.Equal(t, 2, step.StepNumber)

	_, err = f.uc.Advance(ctx, "intruder", resp.SessionID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestReasoningFeedback(t *testing.T) {
	ctx := context.Background()
	f := newReasoningFixture(t, true)
	resp := f.start(t, "u1")

	err := f.uc.SubmitFeedback(ctx, "u1", resp.SessionID, entity.ReasoningFeedbackRequest{Feedback: "great"})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	comments := strings.Repeat("é", 2500)
	require.NoError(t, f.uc.SubmitFeedback(ctx, "u1", resp.SessionID, entity.ReasoningFeedbackRequest{
		Feedback: " helpful ",
		Comments: comments,
	}))

	stored, err := f.sessions.GetForUser(nil, resp.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.FeedbackHelpful, stored.Feedback)
	assert.Equal(t, 2000, len([]rune(stored.FeedbackComments)))
	assert.NotNil(t, stored.CompletedAt)
}

func TestReasoningStatusRecoversFailedSession(t *testing.T) {
	ctx := context.Background()
	f := newReasoningFixture(t, false)

	failed := &internalEntity.ReasoningSession{
		SessionID:      "failed-1",
		UserID:         "u1",
		MCQID:          f.mcq.ID,
		SelectedAnswer: "A",
		Reasoning:      "Weakness on the right so the right hemisphere is involved.",
		Status:         internalEntity.ReasoningStatusFailed,
		ErrorMessage:   "worker crashed",
	}
	require.NoError(t, f.sessions.Create(nil, failed))

	status, err := f.uc.Status(ctx, "u1", "failed-1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusReady, status.Status)
	assert.NotEmpty(t, status.Steps)
	assert.Equal(t, 1, f.gen.Calls())

	stored, err := f.sessions.GetForUser(nil, "failed-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusReady, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestReasoningStatusReportsUnexpectedState(t *testing.T) {
	f := newReasoningFixture(t, true)
	require.NoError(t, f.sessions.Create(nil, &internalEntity.ReasoningSession{
		SessionID:      "broken-1",
		UserID:         "u1",
		MCQID:          f.mcq.ID,
		SelectedAnswer: "A",
		Reasoning:      "Some earlier reasoning text.",
		Status:         internalEntity.ReasoningStatusError,
	}))

	status, err := f.uc.Status(context.Background(), "u1", "broken-1")
	require.NoError(t, err)
	assert.Equal(t, internalEntity.ReasoningStatusError, status.Status)
	assert.Equal(t, "Unexpected session status: error", status.Error)
}

func TestFailedSessionSummary(t *testing.T) {
	f := newReasoningFixture(t, true)
	for i, st := range []string{
		internalEntity.ReasoningStatusFailed,
		internalEntity.ReasoningStatusError,
		internalEntity.ReasoningStatusReady,
		internalEntity.ReasoningStatusReady,
	} {
		require.NoError(t, f.sessions.Create(nil, &internalEntity.ReasoningSession{
			SessionID:      "s" + string(rune('a'+i)),
			UserID:         "u1",
			MCQID:          f.mcq.ID,
			SelectedAnswer: "A",
			Reasoning:      "Reasoning long enough.",
			Status:         st,
			ErrorMessage:   "boom",
		}))
	}

	summary, err := f.uc.FailedSessions(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 24, summary.WindowHours)
	assert.Equal(t, int64(2), summary.StatusCounts[internalEntity.ReasoningStatusReady])
	assert.Equal(t, int64(1), summary.StatusCounts[internalEntity.ReasoningStatusFailed])
	assert.Len(t, summary.Failed, 2)
	for _, row := range summary.Failed {
		assert.Contains(t, []string{internalEntity.ReasoningStatusFailed, internalEntity.ReasoningStatusError}, row.Status)
		assert.NotEmpty(t, row.CreatedAt)
	}
}
