// Package match resolves free-text patient names against the canonical
// patient set through a deterministic multi-strategy cascade.
package match

import (
	"context"
	"strings"

	"github.com/gorgen-health/migrator/pkg/normalize"
)

// Strategy tags which cascade step produced a match, so callers and tests
// can assert the step, not just the final identifier.
type Strategy string

const (
	StrategyExact             Strategy = "exact"
	StrategySubstring         Strategy = "substring"
	StrategySurname           Strategy = "surname"
	StrategyAccentInsensitive Strategy = "accent-insensitive"
	StrategyNone              Strategy = "none"
)

// Candidate is the projection of a patient record the cascade compares
// against: just the identifier and the stored display name.
type Candidate struct {
	PatientCode string
	Name        string
}

// Match is the cascade outcome. A StrategyNone match carries no code.
type Match struct {
	PatientCode string
	StoredName  string
	Strategy    Strategy
}

func (m Match) Found() bool {
	return m.Strategy != StrategyNone
}

// CandidateSource answers the four query shapes the cascade needs, scoped
// to a tenant and to non-deleted records. A miss is (nil, nil); errors are
// storage failures only.
type CandidateSource interface {
	ExactName(ctx context.Context, name string) (*Candidate, error)
	NameContains(ctx context.Context, name string) (*Candidate, error)
	Surname(ctx context.Context, surname string, limit int) ([]Candidate, error)
	NameUnaccent(ctx context.Context, name string) (*Candidate, error)
}

const surnameCandidateCap = 5

type Resolver struct {
	src CandidateSource
}

func NewResolver(src CandidateSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve runs the cascade: exact, substring, surname-anchored, then
// accent-insensitive. Each strategy is attempted only when the previous one
// yields nothing. Identical inputs against an unchanged patient set always
// produce the same result.
func (r *Resolver) Resolve(ctx context.Context, name string) (Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Match{Strategy: StrategyNone}, nil
	}

	if c, err := r.src.ExactName(ctx, name); err != nil {
		return Match{}, err
	} else if c != nil {
		return Match{PatientCode: c.PatientCode, StoredName: c.Name, Strategy: StrategyExact}, nil
	}

	if c, err := r.src.NameContains(ctx, name); err != nil {
		return Match{}, err
	} else if c != nil {
		return Match{PatientCode: c.PatientCode, StoredName: c.Name, Strategy: StrategySubstring}, nil
	}

	if m, err := r.resolveBySurname(ctx, name); err != nil {
		return Match{}, err
	} else if m.Found() {
		return m, nil
	}

	if c, err := r.src.NameUnaccent(ctx, name); err != nil {
		return Match{}, err
	} else if c != nil {
		return Match{PatientCode: c.PatientCode, StoredName: c.Name, Strategy: StrategyAccentInsensitive}, nil
	}

	return Match{Strategy: StrategyNone}, nil
}

// resolveBySurname anchors on the input's last token. A single candidate
// wins outright; among several, the one whose normalized first token equals
// the input's wins; failing that the first candidate in the capped set is a
// documented best-effort tie-break, not a claim of identity.
func (r *Resolver) resolveBySurname(ctx context.Context, name string) (Match, error) {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return Match{Strategy: StrategyNone}, nil
	}
	anchor := tokens[len(tokens)-1]

	candidates, err := r.src.Surname(ctx, anchor, surnameCandidateCap)
	if err != nil {
		return Match{}, err
	}
	if len(candidates) == 0 {
		return Match{Strategy: StrategyNone}, nil
	}
	if len(candidates) == 1 {
		return Match{PatientCode: candidates[0].PatientCode, StoredName: candidates[0].Name, Strategy: StrategySurname}, nil
	}

	firstToken := normalize.Name(tokens[0])
	for _, c := range candidates {
		candidateTokens := strings.Fields(c.Name)
		if len(candidateTokens) == 0 {
			continue
		}
		if normalize.Name(candidateTokens[0]) == firstToken {
			return Match{PatientCode: c.PatientCode, StoredName: c.Name, Strategy: StrategySurname}, nil
		}
	}

	return Match{PatientCode: candidates[0].PatientCode, StoredName: candidates[0].Name, Strategy: StrategySurname}, nil
}
