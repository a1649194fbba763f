package migrate

import "sort"

// Caps for the human-readable summary; the report artifact always carries
// the full lists.
const (
	summaryUnmatchedCap = 20
	summaryErrorCap     = 10
)

// Stats is the per-run outcome accumulator. Each Run owns exactly one value
// and is the only code that updates it; transforms report their outcome and
// the run folds it in.
type Stats struct {
	Total           int `json:"total"`
	Succeeded       int `json:"succeeded"`
	Skipped         int `json:"skipped"`
	PatientNotFound int `json:"patient_not_found"`
	InvalidDate     int `json:"invalid_date"`
	Duplicate       int `json:"duplicate"`
	Errors          int `json:"errors"`

	// FieldWarnings counts values dropped per field after failing
	// validation on an otherwise accepted row.
	FieldWarnings map[string]int `json:"field_warnings,omitempty"`

	UnmatchedNames []string `json:"unmatched_names,omitempty"`
	ErrorMessages  []string `json:"error_messages,omitempty"`

	unmatchedSeen map[string]struct{}
}

func newStats(total int) Stats {
	return Stats{
		Total:         total,
		FieldWarnings: make(map[string]int),
		unmatchedSeen: make(map[string]struct{}),
	}
}

func (s *Stats) warn(field string) {
	s.FieldWarnings[field]++
}

func (s *Stats) addUnmatched(name string) {
	if _, ok := s.unmatchedSeen[name]; ok {
		return
	}
	s.unmatchedSeen[name] = struct{}{}
	s.UnmatchedNames = append(s.UnmatchedNames, name)
}

func (s *Stats) addError(msg string) {
	s.Errors++
	s.ErrorMessages = append(s.ErrorMessages, msg)
}

// WarningTotal sums dropped values across all fields.
func (s Stats) WarningTotal() int {
	total := 0
	for _, n := range s.FieldWarnings {
		total += n
	}
	return total
}

// SummaryUnmatched returns at most summaryUnmatchedCap names, sorted.
func (s Stats) SummaryUnmatched() []string {
	names := append([]string(nil), s.UnmatchedNames...)
	sort.Strings(names)
	if len(names) > summaryUnmatchedCap {
		names = names[:summaryUnmatchedCap]
	}
	return names
}

// SummaryErrors returns at most summaryErrorCap messages in arrival order.
func (s Stats) SummaryErrors() []string {
	msgs := s.ErrorMessages
	if len(msgs) > summaryErrorCap {
		msgs = msgs[:summaryErrorCap]
	}
	return append([]string(nil), msgs...)
}
