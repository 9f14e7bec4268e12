package phase

import "strings"

// Element is a critical history or examination item a learner must cover
// before leaving the corresponding gathering phase.
type Element struct {
	Name    string   `mapstructure:"name" yaml:"name" json:"name"`
	Aliases []string `mapstructure:"aliases" yaml:"aliases" json:"aliases,omitempty"`
}

type CriticalSet struct {
	History     []Element `mapstructure:"history" yaml:"history" json:"history"`
	Examination []Element `mapstructure:"examination" yaml:"examination" json:"examination"`
}

// CriticalTable maps a specialty to its critical items. The "default" entry
// applies when a specialty has none of its own.
type CriticalTable map[string]CriticalSet

func (t CriticalTable) For(specialty string) CriticalSet {
	key := strings.ToLower(strings.TrimSpace(specialty))
	for k, v := range t {
		if strings.ToLower(k) == key {
			return v
		}
	}
	for k, v := range t {
		if strings.ToLower(k) == "default" {
			return v
		}
	}
	return CriticalSet{}
}

// Mentioned returns the names of the elements referenced in message by name
// or alias.
func Mentioned(message string, elements []Element) []string {
	lowered := strings.ToLower(message)
	var found []string
	for _, e := range elements {
		for _, term := range append([]string{e.Name}, e.Aliases...) {
			if containsKeyword(lowered, strings.ToLower(strings.TrimSpace(term))) {
				found = append(found, e.Name)
				break
			}
		}
	}
	return found
}

// Missing returns the element names not yet in collected, in table order.
func Missing(elements []Element, collected []string) []string {
	have := make(map[string]struct{}, len(collected))
	for _, c := range collected {
		have[strings.ToLower(c)] = struct{}{}
	}
	var missing []string
	for _, e := range elements {
		if _, ok := have[strings.ToLower(e.Name)]; !ok {
			missing = append(missing, e.Name)
		}
	}
	return missing
}

// Merge appends names to collected, skipping ones already present.
func Merge(collected []string, names ...string) []string {
	have := make(map[string]struct{}, len(collected))
	for _, c := range collected {
		have[strings.ToLower(c)] = struct{}{}
	}
	for _, n := range names {
		if _, ok := have[strings.ToLower(n)]; ok {
			continue
		}
		have[strings.ToLower(n)] = struct{}{}
		collected = append(collected, n)
	}
	return collected
}
