package phase

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// TableVersion is the stage table schema this package understands.
const TableVersion = 1

//go:embed stages.yaml
var defaultStages []byte

// Stage is one row of the stage keyword table.
type Stage struct {
	Name                string   `yaml:"name"`
	Target              Phase    `yaml:"target"`
	Feedback            Phase    `yaml:"feedback"`
	Keywords            []string `yaml:"keywords"`
	Instruction         string   `yaml:"instruction"`
	FeedbackInstruction string   `yaml:"feedback_instruction"`
}

// Table is the ordered stage keyword table. The first stage whose keywords
// match a message wins.
type Table struct {
	Version             int      `yaml:"version"`
	DefaultInstruction  string   `yaml:"default_instruction"`
	Stages              []Stage  `yaml:"stages"`
	ContributionMarkers []string `yaml:"contribution_markers"`
}

// Command is the outcome of classifying a learner message as a stage
// request.
type Command struct {
	Stage Stage
	// Contribution is set when the learner supplied their own answer
	// rather than asking the tutor for content.
	Contribution bool
}

// Phase is the phase the command moves the conversation to.
func (c Command) Phase() Phase {
	if c.Contribution && c.Stage.Feedback != "" {
		return c.Stage.Feedback
	}
	return c.Stage.Target
}

// Instruction is the stage directive sent with a targeted request.
func (c Command) Instruction() string {
	if c.Contribution && c.Stage.FeedbackInstruction != "" {
		return c.Stage.FeedbackInstruction
	}
	return c.Stage.Instruction
}

// ParseTable decodes and validates a stage table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse stage table: %w", err)
	}
	if t.Version != TableVersion {
		return nil, fmt.Errorf("unsupported stage table version %d", t.Version)
	}
	if len(t.Stages) == 0 {
		return nil, fmt.Errorf("stage table has no stages")
	}
	for i, s := range t.Stages {
		if s.Name == "" || !s.Target.Valid() {
			return nil, fmt.Errorf("stage %d has an invalid name or target %q", i, s.Target)
		}
		if s.Feedback != "" && !s.Feedback.Valid() {
			return nil, fmt.Errorf("stage %s has an invalid feedback phase %q", s.Name, s.Feedback)
		}
		if len(s.Keywords) == 0 {
			return nil, fmt.Errorf("stage %s has no keywords", s.Name)
		}
		for j, k := range s.Keywords {
			t.Stages[i].Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}
	for i, m := range t.ContributionMarkers {
		t.ContributionMarkers[i] = strings.ToLower(strings.TrimSpace(m))
	}
	return &t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the embedded stage table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultStages)
		if err != nil {
			panic(fmt.Errorf("embedded stage table: %w", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Classify returns the stage command carried by message, if any.
func (t *Table) Classify(message string) (Command, bool) {
	lowered := strings.ToLower(message)
	for _, s := range t.Stages {
		for _, k := range s.Keywords {
			if containsKeyword(lowered, k) {
				return Command{Stage: s, Contribution: t.IsContribution(lowered)}, true
			}
		}
	}
	return Command{}, false
}

// IsContribution reports whether message reads like the learner's own
// answer.
func (t *Table) IsContribution(message string) bool {
	lowered := strings.ToLower(message)
	for _, m := range t.ContributionMarkers {
		if containsKeyword(lowered, m) {
			return true
		}
	}
	return false
}

// StageFor returns the row whose target or feedback phase is p.
func (t *Table) StageFor(p Phase) (Stage, bool) {
	stage := p.Stage()
	for _, s := range t.Stages {
		if s.Target == p || s.Feedback == p || (stage != "" && s.Name == stage) {
			return s, true
		}
	}
	return Stage{}, false
}

// containsKeyword matches keyword at a word start. Short keywords must
// also end at a word boundary so "ct" does not fire inside "act".
func containsKeyword(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	short := len(keyword) <= 3
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], keyword)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(keyword)
		if boundaryBefore(text, start) && (!short || boundaryAfter(text, end)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
