package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type EncounterRepository struct {
	db *gorm.DB
}

func NewEncounterRepository(db *gorm.DB) *EncounterRepository {
	return &EncounterRepository{db: db}
}

func (r *EncounterRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&EncounterRecord{})
}

func (r *EncounterRepository) CodeExists(ctx context.Context, tenantID int64, code string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&EncounterRecord{}).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		Count(&count)
	return count > 0, result.Error
}

// MaxCodeWithPrefix returns the lexicographically greatest encounter code
// for a prefix, or "" when none exists. The identifier allocator derives the
// next sequence from it.
func (r *EncounterRepository) MaxCodeWithPrefix(ctx context.Context, tenantID int64, prefix string) (string, error) {
	var rec EncounterRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code LIKE ?", tenantID, escapeLike(prefix)+"%").
		Order("code DESC").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return rec.Code, nil
}

// ListMalformedCodes returns encounters whose code lacks a hyphen, i.e.
// legacy YYYYNNNN codes that were imported before codes carried the patient
// prefix. Already-repaired codes contain a hyphen and are never returned,
// which is what makes the repair idempotent.
func (r *EncounterRepository) ListMalformedCodes(ctx context.Context, tenantID int64) ([]EncounterRecord, error) {
	var recs []EncounterRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code NOT LIKE ?", tenantID, "%-%").
		Order("id").
		Find(&recs)
	return recs, result.Error
}

func (r *EncounterRepository) UpdateCode(ctx context.Context, id int64, code string) error {
	return r.db.WithContext(ctx).Model(&EncounterRecord{}).
		Where("id = ?", id).
		Update("code", code).Error
}

// CreateBatch inserts one batch as a single transaction.
func (r *EncounterRepository) CreateBatch(ctx context.Context, recs []*EncounterRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, rec := range recs {
		rec.CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
