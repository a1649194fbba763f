package ident

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gorgen-health/migrator/pkg/patient"
	"github.com/sirupsen/logrus"
)

// EncounterCodeStore is the storage surface the repair procedure needs.
// *patient.EncounterRepository satisfies it.
type EncounterCodeStore interface {
	CodeStore
	ListMalformedCodes(ctx context.Context, tenantID int64) ([]patient.EncounterRecord, error)
	UpdateCode(ctx context.Context, id int64, code string) error
}

// RepairResult counts what a repair pass did.
type RepairResult struct {
	Total    int
	Repaired int
	Skipped  int
	Errors   []string
}

// Repairer rewrites legacy encounter codes (bare YYYYNNNN, no hyphen) into
// the canonical <patientCode>-<year><seq:4> form. Re-running it is a no-op:
// repaired codes contain a hyphen and are never selected again.
type Repairer struct {
	store    EncounterCodeStore
	tenantID int64
	log      *logrus.Logger
}

func NewRepairer(store EncounterCodeStore, tenantID int64, log *logrus.Logger) *Repairer {
	return &Repairer{store: store, tenantID: tenantID, log: log}
}

var legacyCodePattern = regexp.MustCompile(`^(\d{4})(\d+)$`)

func (r *Repairer) Run(ctx context.Context) (RepairResult, error) {
	result := RepairResult{}

	malformed, err := r.store.ListMalformedCodes(ctx, r.tenantID)
	if err != nil {
		return result, fmt.Errorf("listing malformed encounter codes: %w", err)
	}
	result.Total = len(malformed)

	allocator := NewAllocator(r.store, r.tenantID)

	for _, enc := range malformed {
		if enc.PatientCode == "" {
			result.Skipped++
			r.log.WithField("code", enc.Code).Warn("encounter without linked patient, skipping repair")
			continue
		}

		rebuilt := rebuildCode(enc)

		free, err := allocator.FreeCode(ctx, rebuilt)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", enc.Code, err))
			continue
		}

		if err := r.store.UpdateCode(ctx, enc.ID, free); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", enc.Code, err))
			continue
		}

		result.Repaired++
		r.log.WithFields(logrus.Fields{
			"old": enc.Code,
			"new": free,
		}).Debug("encounter code repaired")
	}

	return result, nil
}

// rebuildCode extracts the embedded year and sequence from a legacy code.
// Non-numeric legacy codes fall back to sequence 0001 under the encounter's
// own year (or the current year when the encounter is undated).
func rebuildCode(enc patient.EncounterRecord) string {
	if m := legacyCodePattern.FindStringSubmatch(enc.Code); m != nil {
		seq := m[2]
		for len(seq) < 4 {
			seq = "0" + seq
		}
		return fmt.Sprintf("%s-%s%s", enc.PatientCode, m[1], seq)
	}

	year := time.Now().UTC().Year()
	if enc.Date != nil {
		year = enc.Date.Year()
	} else if enc.Year != nil {
		year = *enc.Year
	}
	return fmt.Sprintf("%s-%d0001", enc.PatientCode, year)
}
