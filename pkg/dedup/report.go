package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorgen-health/migrator/pkg/common/kafka"
	"github.com/gorgen-health/migrator/pkg/patient"
	"github.com/sirupsen/logrus"
)

// PatientLister is the slice of patient storage the audit needs.
type PatientLister interface {
	ListActive(ctx context.Context, tenantID int64) ([]patient.PatientRecord, error)
}

// Report is the audit artifact: every duplicate group found in one pass
// over the active patient set.
type Report struct {
	GeneratedAt     time.Time `json:"generated_at"`
	TenantID        int64     `json:"tenant_id"`
	PatientsScanned int       `json:"patients_scanned"`
	GroupCount      int       `json:"group_count"`
	PatientsGrouped int       `json:"patients_grouped"`
	Groups          []Group   `json:"groups"`
}

// Auditor runs the duplicate analysis over already-persisted patients. It
// reads only; the migration write path is unaffected.
type Auditor struct {
	patients PatientLister
	producer *kafka.Producer
	tenantID int64
	log      *logrus.Logger
}

func NewAuditor(patients PatientLister, producer *kafka.Producer, tenantID int64, log *logrus.Logger) *Auditor {
	return &Auditor{patients: patients, producer: producer, tenantID: tenantID, log: log}
}

func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	records, err := a.patients.ListActive(ctx, a.tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing active patients: %w", err)
	}

	groups := GroupDuplicates(records)

	grouped := make(map[string]struct{})
	for _, g := range groups {
		for _, m := range g.Members {
			grouped[m.PatientCode] = struct{}{}
		}
	}

	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		TenantID:        a.tenantID,
		PatientsScanned: len(records),
		GroupCount:      len(groups),
		PatientsGrouped: len(grouped),
		Groups:          groups,
	}

	a.log.WithFields(logrus.Fields{
		"patients": report.PatientsScanned,
		"groups":   report.GroupCount,
		"grouped":  report.PatientsGrouped,
	}).Info("duplicate analysis finished")

	if a.producer != nil {
		payload := map[string]interface{}{
			"tenant_id":        report.TenantID,
			"group_count":      report.GroupCount,
			"patients_grouped": report.PatientsGrouped,
		}
		if err := a.producer.PublishEvent(ctx, "duplicate-report", "migrator", payload); err != nil {
			a.log.WithError(err).Error("failed to publish duplicate report event")
		}
	}

	return report, nil
}

// WriteArtifact saves the full report as JSON for review.
func (r *Report) WriteArtifact(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
