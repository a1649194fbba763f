package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorgen-health/migrator/pkg/common/kafka"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report is the persisted record of one migration run.
type Report struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID   int64     `gorm:"column:tenant_id;index" json:"tenant_id"`
	RunType    string    `gorm:"column:run_type" json:"run_type"`
	Mode       string    `gorm:"column:mode" json:"mode"`
	StartedAt  time.Time `gorm:"column:started_at" json:"started_at"`
	FinishedAt time.Time `gorm:"column:finished_at" json:"finished_at"`

	Total           int `gorm:"column:total" json:"total"`
	Succeeded       int `gorm:"column:succeeded" json:"succeeded"`
	Skipped         int `gorm:"column:skipped" json:"skipped"`
	PatientNotFound int `gorm:"column:patient_not_found" json:"patient_not_found"`
	InvalidDate     int `gorm:"column:invalid_date" json:"invalid_date"`
	Duplicate       int `gorm:"column:duplicate" json:"duplicate"`
	Errors          int `gorm:"column:errors" json:"errors"`
	Warnings        int `gorm:"column:warnings" json:"warnings"`

	// Payload carries the full warning breakdown, unmatched names and
	// error messages.
	Payload datatypes.JSONMap `gorm:"column:payload;type:jsonb" json:"payload"`
}

func (Report) TableName() string {
	return "migration_reports"
}

// NewReport freezes one run's stats into a report row.
func NewReport(runType string, opts Options, stats Stats, startedAt time.Time) *Report {
	warnings := make(map[string]interface{}, len(stats.FieldWarnings))
	for field, n := range stats.FieldWarnings {
		warnings[field] = n
	}
	unmatched := make([]interface{}, len(stats.UnmatchedNames))
	for i, name := range stats.UnmatchedNames {
		unmatched[i] = name
	}
	errs := make([]interface{}, len(stats.ErrorMessages))
	for i, msg := range stats.ErrorMessages {
		errs[i] = msg
	}

	return &Report{
		ID:              uuid.New().String(),
		TenantID:        opts.TenantID,
		RunType:         runType,
		Mode:            opts.Mode(),
		StartedAt:       startedAt,
		FinishedAt:      time.Now().UTC(),
		Total:           stats.Total,
		Succeeded:       stats.Succeeded,
		Skipped:         stats.Skipped,
		PatientNotFound: stats.PatientNotFound,
		InvalidDate:     stats.InvalidDate,
		Duplicate:       stats.Duplicate,
		Errors:          stats.Errors,
		Warnings:        stats.WarningTotal(),
		Payload: datatypes.JSONMap{
			"field_warnings":  warnings,
			"unmatched_names": unmatched,
			"error_messages":  errs,
		},
	}
}

// WriteArtifact saves the full report as JSON for review.
func (r *Report) WriteArtifact(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Log prints the run summary the way operators read it after each batch.
func (r *Report) Log(stats Stats, log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"run_type":          r.RunType,
		"mode":              r.Mode,
		"total":             r.Total,
		"succeeded":         r.Succeeded,
		"skipped":           r.Skipped,
		"patient_not_found": r.PatientNotFound,
		"invalid_date":      r.InvalidDate,
		"duplicate":         r.Duplicate,
		"errors":            r.Errors,
		"warnings":          r.Warnings,
	}).Info("migration run finished")

	for _, name := range stats.SummaryUnmatched() {
		log.WithField("name", name).Warn("patient not found")
	}
	for _, msg := range stats.SummaryErrors() {
		log.Error(msg)
	}
}

// ReportRepository persists run reports.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Save(ctx context.Context, report *Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("saving migration report: %w", err)
	}
	return nil
}

// PublishReport emits the run summary event; the producer may be nil when
// the broker is not configured.
func PublishReport(ctx context.Context, producer *kafka.Producer, report *Report, log *logrus.Logger) {
	if producer == nil {
		return
	}
	payload := map[string]interface{}{
		"report_id": report.ID,
		"tenant_id": report.TenantID,
		"run_type":  report.RunType,
		"mode":      report.Mode,
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"errors":    report.Errors,
	}
	if err := producer.PublishEvent(ctx, "migration-report", "migrator", payload); err != nil {
		log.WithError(err).Error("failed to publish migration report event")
	}
}
