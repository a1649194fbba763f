package patient

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PatientRecord is a canonical patient row. PatientCode is the stable
// primary identifier (unique per tenant); LegacyCode keeps the source
// spreadsheet identifier, suffixed when the source itself carried
// duplicates. Soft-deleted rows stay in the table but are excluded from
// matching and deduplication.
type PatientRecord struct {
	ID             int64             `gorm:"primaryKey;column:id"`
	TenantID       int64             `gorm:"column:tenant_id;index:idx_patients_tenant_code,unique"`
	PatientCode    string            `gorm:"column:patient_code;index:idx_patients_tenant_code,unique"`
	LegacyCode     string            `gorm:"column:legacy_code"`
	Name           string            `gorm:"column:name"`
	BirthDate      *time.Time        `gorm:"column:birth_date;type:date"`
	Sex            string            `gorm:"column:sex"`
	NationalID     string            `gorm:"column:national_id"`
	MotherName     string            `gorm:"column:mother_name"`
	Email          string            `gorm:"column:email"`
	Phone          string            `gorm:"column:phone"`
	Address        string            `gorm:"column:address"`
	District       string            `gorm:"column:district"`
	PostalCode     string            `gorm:"column:postal_code"`
	City           string            `gorm:"column:city"`
	State          string            `gorm:"column:state"`
	Country        string            `gorm:"column:country"`
	PrimaryPlan    datatypes.JSONMap `gorm:"column:primary_plan"`
	SecondaryPlan  datatypes.JSONMap `gorm:"column:secondary_plan"`
	DeceasedOrLost bool              `gorm:"column:deceased_or_lost"`
	CaseStatus     string            `gorm:"column:case_status"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	DeletedAt      gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (PatientRecord) TableName() string {
	return "patients"
}

// EncounterRecord is one clinical encounter, linked to its patient by
// PatientCode only; no in-memory reference crosses batch boundaries. Code is
// the tenant-scoped human-readable encounter identifier.
type EncounterRecord struct {
	ID          int64      `gorm:"primaryKey;column:id"`
	TenantID    int64      `gorm:"column:tenant_id;index:idx_encounters_tenant_code,unique"`
	Code        string     `gorm:"column:code;index:idx_encounters_tenant_code,unique"`
	PatientCode string     `gorm:"column:patient_code;index"`
	PatientName string     `gorm:"column:patient_name"`
	Date        *time.Time `gorm:"column:date;type:date"`
	Week        *int       `gorm:"column:week"`
	Month       *int       `gorm:"column:month"`
	Year        *int       `gorm:"column:year"`
	Quarter     string     `gorm:"column:quarter"`
	QuarterYear string     `gorm:"column:quarter_year"`

	EncounterType string `gorm:"column:encounter_type"`
	Procedure     string `gorm:"column:procedure"`
	Location      string `gorm:"column:location"`
	Insurer       string `gorm:"column:insurer"`
	InsurancePlan string `gorm:"column:insurance_plan"`
	Private       bool   `gorm:"column:private"`

	Paid                 bool             `gorm:"column:paid"`
	ExpectedBilling      *decimal.Decimal `gorm:"column:expected_billing;type:decimal(12,2)"`
	ManualFeeAmount      *decimal.Decimal `gorm:"column:manual_fee_amount;type:decimal(12,2)"`
	FinalExpectedBilling *decimal.Decimal `gorm:"column:final_expected_billing;type:decimal(12,2)"`
	AssistantBilling     *decimal.Decimal `gorm:"column:assistant_billing;type:decimal(12,2)"`
	PartnerBilling       *decimal.Decimal `gorm:"column:partner_billing;type:decimal(12,2)"`
	BillingSentDate      *time.Time       `gorm:"column:billing_sent_date;type:date"`
	ExpectedPaymentDate  *time.Time       `gorm:"column:expected_payment_date;type:date"`
	PaymentDate          *time.Time       `gorm:"column:payment_date;type:date"`
	InvoiceRef           string           `gorm:"column:invoice_ref"`
	Notes                string           `gorm:"column:notes"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (EncounterRecord) TableName() string {
	return "encounters"
}
