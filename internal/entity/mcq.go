package entity

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MCQ - Soal pilihan ganda neurologi
type MCQ struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	QuestionText  string         `gorm:"type:text;not null" json:"question_text"`
	Options       datatypes.JSON `json:"options"`                             // {"A": "...", ...} or ["...", "..."]
	CorrectAnswer string         `gorm:"size:5;not null" json:"correct_answer"` // letter, A-D
	Explanation   string         `gorm:"type:text" json:"explanation"`
	Subspecialty  string         `gorm:"size:100;index" json:"subspecialty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MCQ) TableName() string {
	return "mcqs"
}

// OptionMap normalises the stored options to an upper-case letter -> text
// map. A JSON list is lettered A, B, C... in order.
func (m *MCQ) OptionMap() map[string]string {
	out := map[string]string{}
	if len(m.Options) == 0 {
		return out
	}

	var keyed map[string]string
	if err := json.Unmarshal(m.Options, &keyed); err == nil {
		for k, v := range keyed {
			out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		return out
	}

	var list []string
	if err := json.Unmarshal(m.Options, &list); err == nil {
		for i, v := range list {
			if i >= 26 {
				break
			}
			out[string(rune('A'+i))] = strings.TrimSpace(v)
		}
	}
	return out
}

// SetOptions stores options as a keyed map.
func (m *MCQ) SetOptions(options map[string]string) error {
	raw, err := json.Marshal(options)
	if err != nil {
		return err
	}
	m.Options = datatypes.JSON(raw)
	return nil
}

func (m *MCQ) CorrectLetter() string {
	return strings.ToUpper(strings.TrimSpace(m.CorrectAnswer))
}

func (m *MCQ) CorrectText() string {
	return m.OptionMap()[m.CorrectLetter()]
}

// OptionLetters returns the option letters in order.
func (m *MCQ) OptionLetters() []string {
	opts := m.OptionMap()
	letters := make([]string, 0, len(opts))
	for k := range opts {
		letters = append(letters, k)
	}
	sort.Strings(letters)
	return letters
}
