package database

import (
	"fmt"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	"github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type sampleMCQ struct {
	Stem          string
	Options       map[string]string
	CorrectAnswer string
	Explanation   string
	Subspecialty  string
}

// SampleMCQData - Contoh soal untuk lingkungan lokal
var SampleMCQData = []sampleMCQ{
	{
		Stem: "A 67-year-old right-handed man with hypertension and atrial fibrillation develops sudden " +
			"difficulty speaking and right-sided weakness while eating breakfast. Examination shows a " +
			"nonfluent aphasia with preserved comprehension, right lower facial weakness and right arm " +
			"weakness greater than leg weakness. Occlusion of which artery best explains these findings?",
		Options: map[string]string{
			"A": "Right middle cerebral artery",
			"B": "Left middle cerebral artery, superior division",
			"C": "Left anterior cerebral artery",
			"D": "Basilar artery",
		},
		CorrectAnswer: "B",
		Explanation: "Nonfluent aphasia with face and arm predominant weakness localises to the dominant " +
			"frontal lobe, supplied by the superior division of the left middle cerebral artery.",
		Subspecialty: "Vascular neurology",
	},
	{
		Stem: "A 28-year-old woman reports painful loss of vision in the left eye over three days. Eye " +
			"movements worsen the pain. Visual acuity is 20/200 on the left with a relative afferent " +
			"pupillary defect and a normal fundus. Which investigation best predicts her long-term risk " +
			"of a demyelinating disease?",
		Options: map[string]string{
			"A": "Brain MRI with gadolinium",
			"B": "Visual evoked potentials",
			"C": "Serum aquaporin-4 antibody",
			"D": "Optical coherence tomography",
		},
		CorrectAnswer: "A",
		Explanation: "After a first episode of optic neuritis the number of brain white matter lesions on " +
			"MRI is the strongest predictor of conversion to multiple sclerosis.",
		Subspecialty: "Neuroimmunology",
	},
	{
		Stem: "A 55-year-old man has had progressive weakness of the right hand for eight months and now " +
			"trips over his left foot. Examination shows wasting of the hand muscles with fasciculations, " +
			"brisk reflexes in all limbs and an extensor plantar response on the left. Sensation is " +
			"normal. What is the most likely diagnosis?",
		Options: map[string]string{
			"A": "Cervical spondylotic myelopathy",
			"B": "Multifocal motor neuropathy",
			"C": "Amyotrophic lateral sclerosis",
			"D": "Inclusion body myositis",
		},
		CorrectAnswer: "C",
		Explanation: "Combined upper and lower motor neuron signs across regions with normal sensation " +
			"are characteristic of amyotrophic lateral sclerosis.",
		Subspecialty: "Neuromuscular",
	},
}

// SeedMCQs - Mengisi tabel mcqs jika masih kosong
func SeedMCQs(db *gorm.DB, log *logrus.Logger) error {
	repo := repository.NewMCQRepository(db)

	count, err := repo.Count(nil)
	if err != nil {
		return fmt.Errorf("failed to count mcqs: %w", err)
	}
	if count > 0 {
		log.Info("MCQ bank already seeded, skipping...")
		return nil
	}

	for i, sample := range SampleMCQData {
		mcq := entity.MCQ{
			QuestionText:  sample.Stem,
			CorrectAnswer: sample.CorrectAnswer,
			Explanation:   sample.Explanation,
			Subspecialty:  sample.Subspecialty,
		}
		if err := mcq.SetOptions(sample.Options); err != nil {
			return fmt.Errorf("failed to encode options for sample %d: %w", i, err)
		}
		if err := repo.Create(nil, &mcq); err != nil {
			return fmt.Errorf("failed to seed sample %d: %w", i, err)
		}
	}

	log.Infof("Successfully seeded %d MCQs", len(SampleMCQData))
	return nil
}
