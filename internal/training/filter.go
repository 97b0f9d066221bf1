package training

import "strings"

// SourceFilter selects a class of record sources in List.
type SourceFilter string

const (
	FilterAll        SourceFilter = "all"
	FilterComparison SourceFilter = "comparison"
	FilterFeedback   SourceFilter = "feedback"
	FilterManual     SourceFilter = "manual"
)

// ParseSourceFilter accepts the filter names case-insensitively, plus the
// chat UI labels ("All Sources", "Comparison Only", ...). ok is false for
// anything else.
func ParseSourceFilter(s string) (SourceFilter, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.TrimSuffix(n, " only")
	switch n {
	case "", "all", "all sources":
		return FilterAll, true
	case "comparison":
		return FilterComparison, true
	case "feedback":
		return FilterFeedback, true
	case "manual":
		return FilterManual, true
	}
	return FilterAll, false
}

// Match reports whether a record with source passes f.
func (f SourceFilter) Match(source string) bool {
	switch f {
	case FilterComparison:
		return source == SourceComparison
	case FilterFeedback:
		return strings.HasPrefix(source, SourcePositiveFeedback) || strings.HasPrefix(source, SourceNegativeFeedback)
	case FilterManual:
		return source == SourceApp || source == SourceManual
	default:
		return true
	}
}
