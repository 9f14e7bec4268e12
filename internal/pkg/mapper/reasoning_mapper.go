package mapper

import (
	"fmt"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/entity"
	dbEntity "github.com/evandrarf/neurocase-be/internal/entity"
)

// ConvertToReasoningAnalysis - Convert stored session to analysis DTO
func ConvertToReasoningAnalysis(s *dbEntity.ReasoningSession) entity.ReasoningAnalysis {
	return entity.ReasoningAnalysis{
		PrimaryBias:      s.PrimaryBias,
		SecondaryBiases:  dbEntity.DecodeStrings(s.SecondaryBiases),
		KnowledgeGaps:    dbEntity.DecodeStrings(s.KnowledgeGaps),
		Misconceptions:   dbEntity.DecodeStrings(s.Misconceptions),
		ReasoningQuality: s.Quality,
		Confidence:       s.Confidence,
		Summary:          s.Summary,
	}
}

// ConvertToGuidanceSteps - Decode stored guidance steps
func ConvertToGuidanceSteps(s *dbEntity.ReasoningSession) ([]entity.GuidanceStep, error) {
	stored, err := s.Steps()
	if err != nil {
		return nil, fmt.Errorf("decode guidance: %w", err)
	}

	steps := make([]entity.GuidanceStep, len(stored))
	for i, step := range stored {
		steps[i] = entity.GuidanceStep(step)
	}
	return steps, nil
}
