// Package migrate drives the batch migration runs: transform legacy
// spreadsheet rows, validate fields, resolve or assign identifiers and
// persist in batches. Each run produces a Stats value and a Report.
package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorgen-health/migrator/pkg/ident"
	"github.com/gorgen-health/migrator/pkg/normalize"
	"github.com/gorgen-health/migrator/pkg/patient"
	"github.com/gorgen-health/migrator/pkg/source"
	"github.com/gorgen-health/migrator/pkg/validate"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Column names of the legacy patient export. The spreadsheet schema is
// fixed; renamed columns are a source error, not a configuration knob.
const (
	colPatientID   = "ID paciente"
	colPatientName = "Nome"
	colBirthDate   = "Data nascimento"
	colSex         = "Sexo"
	colNationalID  = "CPF"
	colMotherName  = "Nome da mae"
	colEmail       = "E-mail"
	colPhone       = "Telefone"
	colAddress     = "Endereço"
	colDistrict    = "Bairro"
	colPostalCode  = "CEP"
	colCity        = "Cidade"
	colState       = "UF"
	colCountry     = "Pais"

	colInsurer1    = "Operadora 1"
	colPlan1       = "Plano / Modalidade 1"
	colMembership1 = "Matricula convênio 1"
	colActive1     = "Vigente 1"
	colPrivate1    = "Privativo 1"
	colInsurer2    = "Operadora 2"
	colPlan2       = "Plano / Modalidade 2"
	colMembership2 = "Matricula convênio 2"
	colActive2     = "Vigente 2"
	colPrivate2    = "Privativo 2"

	colDeceased   = "Obito / Perda de seguimento"
	colCaseStatus = "Status do caso"
)

// PatientWriter is the slice of patient storage the run touches.
type PatientWriter interface {
	CodeExists(ctx context.Context, tenantID int64, patientCode string) (bool, error)
	CreateBatch(ctx context.Context, recs []*patient.PatientRecord) error
	UpsertBatch(ctx context.Context, recs []*patient.PatientRecord) error
}

// PatientMigration transforms and loads the patient export.
type PatientMigration struct {
	store PatientWriter
	opts  Options
	log   *logrus.Logger
}

func NewPatientMigration(store PatientWriter, opts Options, log *logrus.Logger) *PatientMigration {
	return &PatientMigration{store: store, opts: opts, log: log}
}

// Run processes rows in order: rows without a legacy identifier or a name
// are skipped, every other row becomes a record with validated fields
// dropped to empty rather than failing the row. A failed batch write is
// counted and the run continues with the next batch.
func (m *PatientMigration) Run(ctx context.Context, rows []source.Row) (Stats, error) {
	rows = rows[:m.opts.limitRows(len(rows))]
	stats := newStats(len(rows))

	seen := make(map[string]struct{}, len(rows))
	batch := make([]*patient.PatientRecord, 0, m.opts.batchSize())

	for _, row := range rows {
		legacyID := row.Get(colPatientID)
		if legacyID == "" {
			stats.Skipped++
			continue
		}
		name := row.Get(colPatientName)
		if name == "" {
			stats.Skipped++
			stats.warn("name")
			continue
		}

		code, err := m.assignCode(ctx, legacyID, row.Index, seen)
		if err != nil {
			stats.addError(fmt.Sprintf("row %d: %v", row.Index, err))
			continue
		}

		rec := m.transformRow(row, code, legacyID, name, &stats)
		batch = append(batch, rec)

		if m.opts.Verbose {
			m.log.WithFields(logrus.Fields{
				"row":  row.Index,
				"code": code,
				"name": name,
			}).Debug("patient row transformed")
		}

		if len(batch) >= m.opts.batchSize() {
			m.flush(ctx, batch, &stats)
			batch = batch[:0]
		}
	}
	m.flush(ctx, batch, &stats)

	return stats, nil
}

// assignCode derives the migration identifier and resolves collisions, both
// within this run and with identifiers left by a prior partial run, by
// suffixing the row's positional index. Upsert mode keeps the plain code so
// the existing record is updated in place.
func (m *PatientMigration) assignCode(ctx context.Context, legacyID string, rowIndex int, seen map[string]struct{}) (string, error) {
	code := ident.PatientCode(legacyID)

	if _, dup := seen[code]; dup {
		code = ident.DedupPatientCode(code, rowIndex)
	} else if !m.opts.Upsert {
		exists, err := m.store.CodeExists(ctx, m.opts.TenantID, code)
		if err != nil {
			return "", fmt.Errorf("checking patient code %s: %w", code, err)
		}
		if exists {
			code = ident.DedupPatientCode(code, rowIndex)
		}
	}

	seen[code] = struct{}{}
	return code, nil
}

func (m *PatientMigration) transformRow(row source.Row, code, legacyID, name string, stats *Stats) *patient.PatientRecord {
	rec := &patient.PatientRecord{
		TenantID:    m.opts.TenantID,
		PatientCode: code,
		LegacyCode:  legacyID,
		Name:        name,
		Sex:         normalize.Sex(row.Get(colSex)),
		MotherName:  row.Get(colMotherName),
		Phone:       row.Get(colPhone),
		Address:     row.Get(colAddress),
		District:    row.Get(colDistrict),
		PostalCode:  validate.PostalCode(row.Get(colPostalCode)),
		City:        row.Get(colCity),
		State:       strings.ToUpper(row.Get(colState)),
		Country:     row.Get(colCountry),
	}
	if rec.Country == "" {
		rec.Country = "Brasil"
	}

	if raw := row.Get(colBirthDate); raw != "" {
		if t, ok := validate.BirthDate(raw, m.opts.MinBirthDate, m.opts.MaxBirthDate); ok {
			rec.BirthDate = &t
		} else {
			stats.warn("birth_date")
		}
	}

	if raw := row.Get(colNationalID); raw != "" {
		if formatted, ok := validate.NationalID(raw); ok {
			rec.NationalID = formatted
		} else {
			stats.warn("national_id")
		}
	}

	if raw := row.Get(colEmail); raw != "" {
		if cleaned, ok := validate.Email(raw); ok {
			rec.Email = cleaned
		} else {
			stats.warn("email")
		}
	}

	rec.PrimaryPlan = m.plan(row, colInsurer1, colPlan1, colMembership1, colActive1, colPrivate1, true)
	rec.SecondaryPlan = m.plan(row, colInsurer2, colPlan2, colMembership2, colActive2, colPrivate2, false)

	rec.DeceasedOrLost = normalize.Boolean(row.Get(colDeceased))
	rec.CaseStatus = row.Get(colCaseStatus)
	if rec.CaseStatus == "" {
		rec.CaseStatus = "Ativo"
	}

	return rec
}

// plan assembles one insurance plan object. Only the primary insurer goes
// through the synonym table; the secondary column holds free text in the
// source export.
func (m *PatientMigration) plan(row source.Row, insurerCol, planCol, membershipCol, activeCol, privateCol string, mapped bool) datatypes.JSONMap {
	insurer := row.Get(insurerCol)
	if mapped {
		insurer = normalize.Category(insurer, m.opts.Mappings.Insurers)
	}
	if insurer == "" && row.Get(planCol) == "" && row.Get(membershipCol) == "" {
		return nil
	}
	return datatypes.JSONMap{
		"insurer":    insurer,
		"plan":       row.Get(planCol),
		"membership": row.Get(membershipCol),
		"active":     normalize.Boolean(row.Get(activeCol)),
		"private":    normalize.Boolean(row.Get(privateCol)),
	}
}

// flush writes one batch. Dry-run counts without writing; a write failure
// fails the whole batch and the run moves on.
func (m *PatientMigration) flush(ctx context.Context, batch []*patient.PatientRecord, stats *Stats) {
	if len(batch) == 0 {
		return
	}
	if m.opts.DryRun {
		stats.Succeeded += len(batch)
		return
	}

	var err error
	if m.opts.Upsert {
		err = m.store.UpsertBatch(ctx, batch)
	} else {
		err = m.store.CreateBatch(ctx, batch)
	}
	if err != nil {
		stats.addError(fmt.Sprintf("batch of %d starting at %s: %v", len(batch), batch[0].PatientCode, err))
		return
	}
	stats.Succeeded += len(batch)
}
