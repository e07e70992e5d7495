package catalog

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinTermLength is the shortest search term that yields results.
const DefaultMinTermLength = 2

// Searchable is a catalog record that can be matched by Search.
type Searchable interface {
	SearchText() (name, description string)
}

// Search returns the items whose name or description contains term, ignoring
// case. Name matches come first, then description-only matches; each group
// keeps catalog order. Terms shorter than minLen runes after trimming match
// nothing.
func Search[T Searchable](items []T, term string, minLen int) []T {
	term = strings.ToLower(strings.TrimSpace(term))
	if minLen < 1 {
		minLen = 1
	}
	if utf8.RuneCountInString(term) < minLen {
		return []T{}
	}

	var byName, byDescription []T
	for _, it := range items {
		name, description := it.SearchText()
		switch {
		case strings.Contains(strings.ToLower(name), term):
			byName = append(byName, it)
		case strings.Contains(strings.ToLower(description), term):
			byDescription = append(byDescription, it)
		}
	}
	return append(append([]T{}, byName...), byDescription...)
}
