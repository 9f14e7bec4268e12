package aiedit

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	InstructionLimit = 800
)

var (
	policyUnsafeChars  = regexp.MustCompile(`[^A-Za-z0-9.,;:()\-\s]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	controlChars       = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	wordPattern        = regexp.MustCompile(`\b\w+\b`)
	optionLabelPattern = regexp.MustCompile(`(?im)^\s*([A-D])[).:\-]\s*(.+)`)
	wantsOptionsRegex  = regexp.MustCompile(`\b(multiple[-\s]?choice|answer choices?|options?)\b`)
	forbiddenClean     = regexp.MustCompile(`[^a-z0-9\s/-]`)
	forbiddenSplit     = regexp.MustCompile(`,|/|;|\band\b|\bor\b`)

	forbiddenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)do not (?:mention|include|use|reference)\s+([^.;\n]+)`),
		regexp.MustCompile(`(?i)avoid\s+([^.;\n]+)`),
		regexp.MustCompile(`(?i)without (?:mentioning|including|referencing)\s+([^.;\n]+)`),
		regexp.MustCompile(`(?i)never (?:mention|include)\s+([^.;\n]+)`),
	}

	forbiddenExclude = map[string]struct{}{
		"question stem":  {},
		"stem":           {},
		"question":       {},
		"prompt":         {},
		"this question":  {},
		"it":             {},
		"them":           {},
		"that":           {},
		"these":          {},
		"any mention":    {},
		"any references": {},
	}
)

// SanitizeForPolicy keeps letters, digits and clinical punctuation only, collapsed and capped at limit bytes.
func SanitizeForPolicy(text string, limit int) string {
	if text == "" {
		return ""
	}
	cleaned := policyUnsafeChars.ReplaceAllString(text, " ")
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

// PrepareInstructions normalises editor instructions line by line and caps them without cutting a word when possible.
func PrepareInstructions(text string) string {
	if text == "" {
		return ""
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = controlChars.ReplaceAllString(normalized, " ")

	var lines []string
	for _, raw := range strings.Split(normalized, "\n") {
		line := strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}

	collapsed := strings.TrimSpace(strings.Join(lines, "\n"))
	runes := []rune(collapsed)
	if len(runes) <= InstructionLimit {
		return collapsed
	}

	// cut on a rune boundary, then back to the last word when it is not too far
	truncated := strings.TrimRight(string(runes[:InstructionLimit]), " \t\n")
	if idx := strings.LastIndex(truncated, " "); idx >= 0 && float64(utf8.RuneCountInString(truncated[:idx])) > InstructionLimit*0.6 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}

// Normalize lower-cases text and collapses whitespace.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")))
}

func WordCount(text string) int {
	return len(wordPattern.FindAllString(text, -1))
}

// ExtractOptionLabels finds lines labelled A) through D) (also "A.", "A -", "A:").
func ExtractOptionLabels(text string) map[string]string {
	options := make(map[string]string)
	for _, m := range optionLabelPattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[2])
		if body != "" {
			options[strings.ToUpper(m[1])] = body
		}
	}
	return options
}

func WantsOptions(instructions string) bool {
	return wantsOptionsRegex.MatchString(strings.ToLower(instructions))
}

// ExtractForbiddenTerms pulls the phrases an editor asked to keep out of generated content.
func ExtractForbiddenTerms(instructions string) []string {
	if instructions == "" {
		return nil
	}

	text := strings.ToLower(instructions)
	terms := make(map[string]struct{})
	for _, pattern := range forbiddenPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			clause := forbiddenClean.ReplaceAllString(m[1], " ")
			for _, fragment := range forbiddenSplit.Split(clause, -1) {
				cleaned := strings.TrimSpace(fragment)
				if cleaned == "" || len(cleaned) < 3 {
					continue
				}
				if _, skip := forbiddenExclude[cleaned]; skip {
					continue
				}
				terms[whitespaceRun.ReplaceAllString(cleaned, " ")] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(terms))
	for term := range terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

func detectForbiddenHits(text string, terms []string) []string {
	if text == "" || len(terms) == 0 {
		return nil
	}
	normalized := Normalize(text)
	seen := make(map[string]struct{})
	var hits []string
	for _, term := range terms {
		clean := Normalize(term)
		if clean == "" || !strings.Contains(normalized, clean) {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		hits = append(hits, clean)
	}
	sort.Strings(hits)
	return hits
}

// FormatOptions renders options as "A) text" lines in letter order.
func FormatOptions(options map[string]string) string {
	letters := sortedKeys(options)
	lines := make([]string, 0, len(letters))
	for _, letter := range letters {
		lines = append(lines, letter+") "+options[letter])
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
