package migrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorgen-health/migrator/pkg/match"
	"github.com/gorgen-health/migrator/pkg/normalize"
	"github.com/gorgen-health/migrator/pkg/patient"
	"github.com/gorgen-health/migrator/pkg/source"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Column names of the legacy encounter export.
const (
	colEncounterID   = "Atendimento"
	colEncounterDate = "Data"
	colEncounterType = "Tipo de atendimento"
	colProcedure     = "Procedimento"
	colLocation      = "Local"
	colInsurer       = "Convênio"
	colInsurancePlan = "Plano do convênio"
	colPrivate       = "Privativo"
	colPaid          = "Pagamento efetivado?"

	colExpectedBilling      = "Faturamento Previsto"
	colManualFeeAmount      = "Registro manual do valor de HM"
	colFinalExpectedBilling = "Faturamento previsto final"
	colAssistantBilling     = "Faturamento Letícia"
	colPartnerBilling       = "Faturamento AG+LU"
	colBillingSentDate      = "Data envio para cobrança"
	colExpectedPaymentDate  = "Data esperada para pagamento"
	colPaymentDate          = "Data do pagamento"
	colInvoiceRef           = "Nota Fiscal Correspondente"
	colNotes                = "Observações"

	colWeek        = "Semana #"
	colMonth       = "Mes"
	colYear        = "Ano"
	colQuarter     = "Trimestre"
	colQuarterYear = "Trimestre + Ano"
)

// monthNames maps the full Portuguese month names the auxiliary Mes column
// carries.
var monthNames = map[string]int{
	"janeiro": 1, "fevereiro": 2, "março": 3, "abril": 4,
	"maio": 5, "junho": 6, "julho": 7, "agosto": 8,
	"setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

// NameResolver resolves a free-text patient name to a stored patient.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (match.Match, error)
}

// CodeAllocator issues the next encounter code for a patient and year.
type CodeAllocator interface {
	NextCode(ctx context.Context, patientCode string, year int) (string, error)
}

// EncounterWriter is the slice of encounter storage the run touches.
type EncounterWriter interface {
	CodeExists(ctx context.Context, tenantID int64, code string) (bool, error)
	CreateBatch(ctx context.Context, recs []*patient.EncounterRecord) error
}

// EncounterMigration transforms and loads the encounter export. Every row
// must resolve to an already-migrated patient; unresolved names are counted
// and reported, never guessed into a new patient.
type EncounterMigration struct {
	resolver  NameResolver
	allocator CodeAllocator
	store     EncounterWriter
	opts      Options
	log       *logrus.Logger
}

func NewEncounterMigration(resolver NameResolver, allocator CodeAllocator, store EncounterWriter, opts Options, log *logrus.Logger) *EncounterMigration {
	return &EncounterMigration{resolver: resolver, allocator: allocator, store: store, opts: opts, log: log}
}

// Run processes rows in order. Rows keep going through the pipeline even
// without a usable date; only a missing name, an unresolved patient or an
// already-loaded code stops a row.
func (m *EncounterMigration) Run(ctx context.Context, rows []source.Row) (Stats, error) {
	rows = rows[:m.opts.limitRows(len(rows))]
	stats := newStats(len(rows))

	batch := make([]*patient.EncounterRecord, 0, m.opts.batchSize())

	for _, row := range rows {
		name := row.Get(colPatientName)
		if name == "" {
			stats.addError(fmt.Sprintf("row %d: empty patient name", row.Index))
			continue
		}

		date, week, month, year := m.calendar(row)
		if date == nil {
			stats.InvalidDate++
			if m.opts.Verbose {
				m.log.WithFields(logrus.Fields{"row": row.Index, "name": name}).Warn("encounter has no usable date")
			}
		}

		resolved, err := m.resolver.Resolve(ctx, name)
		if err != nil {
			stats.addError(fmt.Sprintf("row %d: resolving %q: %v", row.Index, name, err))
			continue
		}
		if !resolved.Found() {
			stats.PatientNotFound++
			stats.addUnmatched(name)
			if m.opts.Verbose {
				m.log.WithFields(logrus.Fields{"row": row.Index, "name": name}).Warn("patient not found")
			}
			continue
		}

		code, err := m.encounterCode(ctx, row, resolved.PatientCode, date, year)
		if err != nil {
			stats.addError(fmt.Sprintf("row %d: %v", row.Index, err))
			continue
		}

		exists, err := m.store.CodeExists(ctx, m.opts.TenantID, code)
		if err != nil {
			stats.addError(fmt.Sprintf("row %d: checking encounter code %s: %v", row.Index, code, err))
			continue
		}
		if exists {
			stats.Duplicate++
			if m.opts.Verbose {
				m.log.WithFields(logrus.Fields{"row": row.Index, "code": code}).Warn("encounter already loaded")
			}
			continue
		}

		rec := m.transformRow(row, code, resolved.PatientCode, name, date, week, month, year, &stats)
		batch = append(batch, rec)

		if m.opts.Verbose {
			m.log.WithFields(logrus.Fields{
				"row":      row.Index,
				"code":     code,
				"patient":  resolved.PatientCode,
				"strategy": resolved.Strategy,
			}).Debug("encounter row transformed")
		}

		if len(batch) >= m.opts.batchSize() {
			m.flush(ctx, batch, &stats)
			batch = batch[:0]
		}
	}
	m.flush(ctx, batch, &stats)

	return stats, nil
}

// calendar extracts the encounter date plus the auxiliary week, month and
// year columns. A missing date is reconstructed as the first of the month
// when the auxiliary columns allow it.
func (m *EncounterMigration) calendar(row source.Row) (*time.Time, *int, *int, *int) {
	var date *time.Time
	if t, ok := normalize.Date(row.Get(colEncounterDate)); ok {
		date = &t
	}

	var week *int
	if n, err := strconv.Atoi(cleanNumeric(row.Get(colWeek))); err == nil {
		week = &n
	}

	var month, year *int
	if date != nil {
		mo, yr := int(date.Month()), date.Year()
		return date, week, &mo, &yr
	}

	if mo, ok := monthNames[strings.ToLower(row.Get(colMonth))]; ok {
		month = &mo
	}
	if yr, err := strconv.Atoi(cleanNumeric(row.Get(colYear))); err == nil {
		year = &yr
	}
	if month != nil && year != nil {
		t := time.Date(*year, time.Month(*month), 1, 0, 0, 0, 0, time.UTC)
		date = &t
	}

	return date, week, month, year
}

// encounterCode takes the spreadsheet's own identifier when present,
// otherwise allocates the next sequential code for the resolved patient.
func (m *EncounterMigration) encounterCode(ctx context.Context, row source.Row, patientCode string, date *time.Time, year *int) (string, error) {
	if raw := cleanNumeric(row.Get(colEncounterID)); raw != "" {
		return raw, nil
	}

	allocYear := time.Now().Year()
	switch {
	case date != nil:
		allocYear = date.Year()
	case year != nil:
		allocYear = *year
	}

	code, err := m.allocator.NextCode(ctx, patientCode, allocYear)
	if err != nil {
		return "", fmt.Errorf("allocating encounter code: %w", err)
	}
	return code, nil
}

func (m *EncounterMigration) transformRow(row source.Row, code, patientCode, name string, date *time.Time, week, month, year *int, stats *Stats) *patient.EncounterRecord {
	rec := &patient.EncounterRecord{
		TenantID:    m.opts.TenantID,
		Code:        code,
		PatientCode: patientCode,
		PatientName: name,
		Date:        date,
		Week:        week,
		Month:       month,
		Year:        year,
		Quarter:     row.Get(colQuarter),
		QuarterYear: row.Get(colQuarterYear),

		EncounterType: normalize.Category(row.Get(colEncounterType), m.opts.Mappings.EncounterTypes),
		Procedure:     row.Get(colProcedure),
		Location:      normalize.Category(row.Get(colLocation), m.opts.Mappings.Locations),
		Insurer:       normalize.Category(row.Get(colInsurer), m.opts.Mappings.Insurers),
		InsurancePlan: row.Get(colInsurancePlan),
		Private:       normalize.Boolean(row.Get(colPrivate)),
		Paid:          normalize.Boolean(row.Get(colPaid)),

		InvoiceRef: row.Get(colInvoiceRef),
		Notes:      row.Get(colNotes),
	}

	rec.ExpectedBilling = m.money(row, colExpectedBilling, "expected_billing", stats)
	rec.ManualFeeAmount = m.money(row, colManualFeeAmount, "manual_fee_amount", stats)
	rec.FinalExpectedBilling = m.money(row, colFinalExpectedBilling, "final_expected_billing", stats)
	rec.AssistantBilling = m.money(row, colAssistantBilling, "assistant_billing", stats)
	rec.PartnerBilling = m.money(row, colPartnerBilling, "partner_billing", stats)

	rec.BillingSentDate = optionalDate(row.Get(colBillingSentDate))
	rec.ExpectedPaymentDate = optionalDate(row.Get(colExpectedPaymentDate))
	rec.PaymentDate = optionalDate(row.Get(colPaymentDate))

	return rec
}

func (m *EncounterMigration) money(row source.Row, col, field string, stats *Stats) *decimal.Decimal {
	raw := row.Get(col)
	if raw == "" {
		return nil
	}
	d, ok := normalize.Money(raw)
	if !ok {
		stats.warn(field)
		return nil
	}
	return &d
}

func optionalDate(raw string) *time.Time {
	if t, ok := normalize.Date(raw); ok {
		return &t
	}
	return nil
}

// cleanNumeric strips the float artifact spreadsheet exports add to integer
// cells ("1234.0").
func cleanNumeric(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".0")
}

func (m *EncounterMigration) flush(ctx context.Context, batch []*patient.EncounterRecord, stats *Stats) {
	if len(batch) == 0 {
		return
	}
	if m.opts.DryRun {
		stats.Succeeded += len(batch)
		return
	}
	if err := m.store.CreateBatch(ctx, batch); err != nil {
		stats.addError(fmt.Sprintf("batch of %d starting at %s: %v", len(batch), batch[0].Code, err))
		return
	}
	stats.Succeeded += len(batch)
}
