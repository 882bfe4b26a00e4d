package domain

import (
	"strings"
)

// TargetVocabulary is an ordered set of known strings, unique ignoring case.
type TargetVocabulary struct {
	entries []string
	folded  []string
}

// NewTargetVocabulary builds a vocabulary, trimming blanks and dropping duplicates.
func NewTargetVocabulary(terms ...string) TargetVocabulary {
	var v TargetVocabulary
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		v.entries = append(v.entries, t)
		v.folded = append(v.folded, key)
	}
	return v
}

// ParseVocabulary splits a semicolon or newline separated list.
// Commas are kept because entries such as "DOE, JANE A" contain them.
func ParseVocabulary(s string) TargetVocabulary {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	return NewTargetVocabulary(fields...)
}

// Entries returns a copy of the terms in insertion order.
func (v TargetVocabulary) Entries() []string {
	return append([]string(nil), v.entries...)
}

// Len returns the number of terms.
func (v TargetVocabulary) Len() int {
	return len(v.entries)
}

// Matches returns the terms contained in text, case-insensitively, in vocabulary order.
func (v TargetVocabulary) Matches(text string) []string {
	if text == "" || len(v.entries) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var hits []string
	for i, key := range v.folded {
		if strings.Contains(lower, key) {
			hits = append(hits, v.entries[i])
		}
	}
	return hits
}

// Join concatenates the terms with sep.
func (v TargetVocabulary) Join(sep string) string {
	return strings.Join(v.entries, sep)
}
