package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPaid = "paid"

	// RateTierCustom marks a payment whose rate was typed in by the operator.
	RateTierCustom = "custom"
)

// Payment is a flat payout covering a set of a fisher's catch records for a
// calendar-month period.
type Payment struct {
	ID          string          `json:"id" db:"id"`
	FisherID    string          `json:"fisher_id" db:"fisher_id"`
	FisherName  string          `json:"fisher_name" db:"fisher_name"`
	PeriodKey   string          `json:"period_key" db:"period_key"` // YYYY-MM of PeriodStart
	PeriodStart time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time       `json:"period_end" db:"period_end"`
	RecordIDs   []string        `json:"record_ids" db:"-"`
	RecordCount int             `json:"record_count" db:"record_count"`
	Rate        decimal.Decimal `json:"rate" db:"rate"`
	RateTier    string          `json:"rate_tier" db:"rate_tier"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      string          `json:"status" db:"status"`
	Notes       string          `json:"notes" db:"notes"`
	PaidByID    string          `json:"paid_by_id" db:"paid_by_id"`
	PaidByName  string          `json:"paid_by_name" db:"paid_by_name"`
	PaidAt      time.Time       `json:"paid_at" db:"paid_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Actor identifies the operator performing a reconciliation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// OrphanedPayment is a payment whose covered records are not all linked back
// to it.
type OrphanedPayment struct {
	PaymentID       string   `json:"payment_id"`
	FisherID        string   `json:"fisher_id"`
	PeriodKey       string   `json:"period_key"`
	ExpectedRecords int      `json:"expected_records"`
	UnlinkedRecords []string `json:"unlinked_records"`
}

// IntegrityReport is the outcome of one orphaned-payment sweep.
type IntegrityReport struct {
	CheckedAt       time.Time         `json:"checked_at"`
	PaymentsChecked int               `json:"payments_checked"`
	Orphans         []OrphanedPayment `json:"orphans"`
}
