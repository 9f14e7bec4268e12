package aiedit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	OptionMinLength     = 12
	StemMinChars        = 220
	StemMinWords        = 45
	SimilarityThreshold = 0.92
	labelledOptionMin   = 5
)

var optionLetters = []string{"A", "B", "C", "D"}

// MissingLetters lists the letters A to D whose option text is blank.
func MissingLetters(options map[string]string) []string {
	var missing []string
	for _, letter := range optionLetters {
		if strings.TrimSpace(options[letter]) == "" {
			missing = append(missing, letter)
		}
	}
	return missing
}

type OptionConstraints struct {
	Expected      []string
	Existing      map[string]string
	CorrectLetter string
	CorrectText   string
	Forbidden     []string
	MinLength     int
}

// ValidateOptions checks generated answer options. An empty result means the candidate passes.
func ValidateOptions(generated map[string]string, c OptionConstraints) []string {
	var issues []string
	minLength := c.MinLength
	if minLength <= 0 {
		minLength = OptionMinLength
	}

	expected := make(map[string]struct{}, len(c.Expected))
	for _, letter := range c.Expected {
		expected[strings.ToUpper(letter)] = struct{}{}
	}
	provided := make(map[string]struct{}, len(generated))
	for letter := range generated {
		provided[strings.ToUpper(letter)] = struct{}{}
	}

	if missing := difference(expected, provided); len(missing) > 0 {
		issues = append(issues, "Missing option keys: "+strings.Join(missing, ", "))
	}
	if unexpected := difference(provided, expected); len(unexpected) > 0 {
		issues = append(issues, "Unexpected option keys returned: "+strings.Join(unexpected, ", "))
	}

	existing := make(map[string]string, len(c.Existing))
	for _, letter := range sortedKeys(c.Existing) {
		if n := Normalize(c.Existing[letter]); n != "" {
			if _, taken := existing[n]; !taken {
				existing[n] = strings.ToUpper(letter)
			}
		}
	}

	correctLetter := strings.ToUpper(c.CorrectLetter)
	correctNormalized := Normalize(c.CorrectText)

	seen := make(map[string]string, len(generated))
	for _, key := range sortedKeys(generated) {
		letter := strings.ToUpper(key)
		candidate := strings.TrimSpace(generated[key])
		normalized := Normalize(candidate)

		if candidate == "" {
			issues = append(issues, fmt.Sprintf("Option %s is empty.", letter))
			continue
		}

		if len([]rune(candidate)) < minLength {
			issues = append(issues, fmt.Sprintf("Option %s is too short to be credible.", letter))
		}

		if other, dup := seen[normalized]; dup && other != letter {
			issues = append(issues, fmt.Sprintf("Option %s duplicates option %s.", letter, other))
		} else {
			seen[normalized] = letter
		}

		if match, ok := existing[normalized]; ok && match != letter {
			issues = append(issues, fmt.Sprintf("Option %s duplicates existing option %s.", letter, match))
		}

		if correctLetter != "" && letter != correctLetter && normalized == correctNormalized {
			issues = append(issues, fmt.Sprintf("Option %s matches the correct answer text.", letter))
		}

		if hits := detectForbiddenHits(candidate, c.Forbidden); len(hits) > 0 {
			issues = append(issues, fmt.Sprintf("Option %s includes forbidden terms: %s", letter, strings.Join(hits, ", ")))
		}
	}

	return issues
}

type StemConstraints struct {
	Original            string
	WantsOptions        bool
	Forbidden           []string
	MinChars            int
	MinWords            int
	SimilarityThreshold float64
}

// ValidateStem checks a rewritten question against the original.
func ValidateStem(revised string, c StemConstraints) []string {
	if c.MinChars <= 0 {
		c.MinChars = StemMinChars
	}
	if c.MinWords <= 0 {
		c.MinWords = StemMinWords
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = SimilarityThreshold
	}

	normalizedOriginal := Normalize(c.Original)
	normalizedRevised := Normalize(revised)
	if normalizedRevised == "" {
		return []string{"AI returned an empty question."}
	}

	var issues []string
	chars := len([]rune(strings.TrimSpace(revised)))
	words := WordCount(revised)

	if chars < c.MinChars {
		issues = append(issues, fmt.Sprintf("Revised question is too short (%d chars); needs ≥ %d.", chars, c.MinChars))
	}
	if words < c.MinWords {
		issues = append(issues, fmt.Sprintf("Revised question has too few words (%d); needs ≥ %d.", words, c.MinWords))
	}

	if normalizedOriginal != "" && normalizedOriginal == normalizedRevised {
		issues = append(issues, "Revised question is identical to the original.")
	} else if ratio := Similarity(normalizedOriginal, normalizedRevised); ratio >= c.SimilarityThreshold {
		issues = append(issues, fmt.Sprintf("Revised question is too similar to the original (similarity %.2f).", ratio))
	}

	labelled := ExtractOptionLabels(revised)
	if c.WantsOptions {
		if len(labelled) != len(optionLetters) {
			issues = append(issues, "Multiple-choice request requires exactly four answer options (A-D).")
		} else {
			for _, letter := range sortedKeys(labelled) {
				if len([]rune(labelled[letter])) < labelledOptionMin {
					issues = append(issues, fmt.Sprintf("Option %s is too short to be plausible.", letter))
				}
			}
		}
	} else if len(labelled) > 0 {
		issues = append(issues, "Question stem mode should not include labelled answer options.")
	}

	if hits := detectForbiddenHits(revised, c.Forbidden); len(hits) > 0 {
		issues = append(issues, "Question includes prohibited terms: "+strings.Join(hits, ", "))
	}

	return issues
}

// Similarity is the difflib ratio between two strings compared character by character.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
