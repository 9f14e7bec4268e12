package usecase

import "errors"

var (
	ErrTutorUnavailable     = errors.New("AI returned empty content after multiple attempts.")
	ErrGenerationFailed     = errors.New("failed to generate case content")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrConversionInProgress = errors.New("a case for this question is already being prepared")
	ErrGuidanceNotAvailable = errors.New("guidance is not available for this session")
	ErrInvalidFeedback      = errors.New("feedback must be one of helpful, somewhat_helpful, not_helpful")
	ErrReasoningTooShort    = errors.New("reasoning must be at least 10 characters")
	ErrEditInProgress       = errors.New("an AI edit for this question is already running")
	ErrNothingToFill        = errors.New("question has no missing options")
	ErrAnalysisFailed       = errors.New("Analysis failed. Please try again.")
)
