package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first JSON object found in text.
// Markdown fences, control characters, leading chatter and trailing commas are tolerated.
func ExtractJSONObject(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(stripControlCharacters(text))
	cleaned = stripCodeFence(cleaned)
	if cleaned == "" {
		return nil, &MalformedOutputError{Raw: text}
	}

	if obj, ok := decodeObject(cleaned); ok {
		return obj, nil
	}

	for _, candidate := range findJSONCandidates(cleaned) {
		if obj, ok := decodeObject(candidate); ok {
			return obj, nil
		}
		relaxed := strings.NewReplacer(",}", "}", ",]", "]").Replace(candidate)
		if obj, ok := decodeObject(relaxed); ok {
			return obj, nil
		}
	}

	return nil, &MalformedOutputError{Raw: text}
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// findJSONCandidates returns every balanced top-level {...} block in s.
// Braces inside strings and escaped quotes are skipped.
func findJSONCandidates(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}

func stripControlCharacters(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
