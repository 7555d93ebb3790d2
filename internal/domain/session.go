package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is a step of the reconciliation wizard.
type SessionState string

const (
	StateSelectingFisher          SessionState = "selecting_fisher"
	StateSelectingPeriod          SessionState = "selecting_period"
	StateReviewingEligibleRecords SessionState = "reviewing_eligible_records"
	StateSettingRate              SessionState = "setting_rate"
	StateCommitting               SessionState = "committing"
	StateDone                     SessionState = "done"
	StateFailed                   SessionState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// ReconciliationSession is the persisted state of one operator's wizard.
type ReconciliationSession struct {
	ID                string           `json:"id"`
	State             SessionState     `json:"state"`
	FisherID          string           `json:"fisher_id,omitempty"`
	FisherName        string           `json:"fisher_name,omitempty"`
	Period            *Period          `json:"period,omitempty"`
	EligibleRecordIDs []string         `json:"eligible_record_ids,omitempty"`
	SelectedRecordIDs []string         `json:"selected_record_ids,omitempty"`
	Rate              *RateSelector    `json:"rate,omitempty"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	PaidAt            *time.Time       `json:"paid_at,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	Actor             Actor            `json:"actor"`
	PaymentID         string           `json:"payment_id,omitempty"`
	FailureCode       string           `json:"failure_code,omitempty"`
	FailureMessage    string           `json:"failure_message,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
