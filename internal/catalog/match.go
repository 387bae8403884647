package catalog

import (
	"strings"
	"unicode"
)

// MatchStatus represents the status of a name resolution
type MatchStatus int

const (
	Matched MatchStatus = iota
	Ambiguous
	Unmatched
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Ambiguous:
		return "Ambiguous"
	case Unmatched:
		return "Unmatched"
	default:
		return "Unknown"
	}
}

// MatchResult contains the result of resolving a display name.
// Entry is set only when Status is Matched; Candidates only when Ambiguous.
type MatchResult[T any] struct {
	Status     MatchStatus
	Entry      T
	Candidates []T
}

func match[T any](index map[string][]T, name string) MatchResult[T] {
	key := normalize(name)
	if key == "" {
		return MatchResult[T]{Status: Unmatched}
	}
	found := index[key]
	switch len(found) {
	case 0:
		return MatchResult[T]{Status: Unmatched}
	case 1:
		return MatchResult[T]{Status: Matched, Entry: found[0]}
	default:
		return MatchResult[T]{Status: Ambiguous, Candidates: found}
	}
}

// normalize lowercases letters and digits and collapses everything else to single spaces,
// so "Oil  Filter" and "oil-filter" resolve to the same entry.
func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
