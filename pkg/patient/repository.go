package patient

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("patient not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PatientRecord{})
}

// FindByNameExact is the first matcher strategy: case-insensitive equality
// on the stored display name.
func (r *Repository) FindByNameExact(ctx context.Context, tenantID int64, name string) (*PatientRecord, error) {
	var rec PatientRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, name).
		Order("name, id").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

// FindByNameContains returns the first record whose stored name contains
// the input as a case-insensitive substring, or vice versa, under a stable
// name-then-age order so ties always break the same way. Input wildcards
// are escaped; a stray % in a source cell must not widen the match.
func (r *Repository) FindByNameContains(ctx context.Context, tenantID int64, name string) (*PatientRecord, error) {
	var rec PatientRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND (name ILIKE ? OR ? ILIKE '%' || name || '%')", tenantID, "%"+escapeLike(name)+"%", name).
		Order("name, id").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

// FindBySurname returns up to limit candidates whose stored name contains
// the anchor surname.
func (r *Repository) FindBySurname(ctx context.Context, tenantID int64, surname string, limit int) ([]PatientRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	var recs []PatientRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name ILIKE ?", tenantID, "%"+escapeLike(surname)+"%").
		Order("name, id").
		Limit(limit).
		Find(&recs)
	return recs, result.Error
}

// FindByNameUnaccent is the final matcher fallback: a store-level
// accent-insensitive substring comparison. Requires the unaccent extension
// on the target database.
func (r *Repository) FindByNameUnaccent(ctx context.Context, tenantID int64, name string) (*PatientRecord, error) {
	var rec PatientRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND unaccent(LOWER(name)) LIKE unaccent(LOWER(?))", tenantID, "%"+escapeLike(name)+"%").
		Order("name, id").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rec, nil
}

func (r *Repository) CodeExists(ctx context.Context, tenantID int64, patientCode string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&PatientRecord{}).
		Where("tenant_id = ? AND patient_code = ?", tenantID, patientCode).
		Count(&count)
	return count > 0, result.Error
}

// ListActive returns every non-deleted patient in tenant scope, ordered by
// name then age. Deduplication iterates this set.
func (r *Repository) ListActive(ctx context.Context, tenantID int64) ([]PatientRecord, error) {
	var recs []PatientRecord
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name, created_at").
		Find(&recs)
	return recs, result.Error
}

// CreateBatch inserts one batch as a single transaction.
func (r *Repository) CreateBatch(ctx context.Context, recs []*PatientRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, rec := range recs {
		rec.CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

// UpsertBatch inserts with on-conflict update on the tenant-scoped patient
// code, used by the corrective "update existing" run mode.
func (r *Repository) UpsertBatch(ctx context.Context, recs []*PatientRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, rec := range recs {
		rec.CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "patient_code"}},
		UpdateAll: true,
	}).Create(&recs).Error
}
