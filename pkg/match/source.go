package match

import (
	"context"
	"errors"

	"github.com/gorgen-health/migrator/pkg/patient"
)

// RepositorySource adapts the patient repository to the cascade's candidate
// queries, fixing the tenant scope for the whole run.
type RepositorySource struct {
	repo     *patient.Repository
	tenantID int64
}

func NewRepositorySource(repo *patient.Repository, tenantID int64) *RepositorySource {
	return &RepositorySource{repo: repo, tenantID: tenantID}
}

func (s *RepositorySource) ExactName(ctx context.Context, name string) (*Candidate, error) {
	return asCandidate(s.repo.FindByNameExact(ctx, s.tenantID, name))
}

func (s *RepositorySource) NameContains(ctx context.Context, name string) (*Candidate, error) {
	return asCandidate(s.repo.FindByNameContains(ctx, s.tenantID, name))
}

func (s *RepositorySource) Surname(ctx context.Context, surname string, limit int) ([]Candidate, error) {
	recs, err := s.repo.FindBySurname(ctx, s.tenantID, surname, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(recs))
	for _, rec := range recs {
		candidates = append(candidates, Candidate{PatientCode: rec.PatientCode, Name: rec.Name})
	}
	return candidates, nil
}

func (s *RepositorySource) NameUnaccent(ctx context.Context, name string) (*Candidate, error) {
	return asCandidate(s.repo.FindByNameUnaccent(ctx, s.tenantID, name))
}

func asCandidate(rec *patient.PatientRecord, err error) (*Candidate, error) {
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Candidate{PatientCode: rec.PatientCode, Name: rec.Name}, nil
}
