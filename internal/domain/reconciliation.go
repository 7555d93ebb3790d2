package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSelector picks the payout for a reconciliation: either a configured
// tier or a custom amount, never both.
type RateSelector struct {
	Tier   string           `json:"rate_tier,omitempty"`
	Custom *decimal.Decimal `json:"custom_amount,omitempty"`
}

// Payout is a resolved rate.
type Payout struct {
	Tier        string          `json:"rate_tier"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	RecordCount int             `json:"record_count"`
}

// PayoutTier is one configured flat payout.
type PayoutTier struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Period is an inclusive calendar-day window.
type Period struct {
	Start time.Time `json:"start"` // start of the first day
	End   time.Time `json:"end"`   // last instant of the last day
	Key   string    `json:"key"`
}

// CommitInput is everything the committer writes in one transaction.
type CommitInput struct {
	FisherID   string
	FisherName string
	RecordIDs  []string
	Payout     Payout
	Period     Period
	PaidAt     time.Time
	PaidBy     Actor
	Notes      string
}

// DTOs for requests and responses

type EligibleRecordsResponse struct {
	FisherID  string           `json:"fisher_id"`
	Period    Period           `json:"period"`
	Count     int              `json:"count"`
	Records   []*FishingRecord `json:"records"`
	RecordIDs []string         `json:"record_ids"`
}

type ReconcileRequest struct {
	FisherName   string           `json:"fisher_name" validate:"required"`
	PeriodStart  string           `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd    string           `json:"period_end" validate:"required,datetime=2006-01-02"`
	RecordIDs    []string         `json:"record_ids" validate:"omitempty,dive,required"`
	RateTier     string           `json:"rate_tier"`
	CustomAmount *decimal.Decimal `json:"custom_amount"`
	PaidAt       string           `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Notes        string           `json:"notes" validate:"max=2000"`
}

type StartSessionRequest struct {
	FisherID   string `json:"fisher_id" validate:"required"`
	FisherName string `json:"fisher_name" validate:"required"`
}

type SelectPeriodRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
}

type SelectRecordsRequest struct {
	RecordIDs []string `json:"record_ids" validate:"omitempty,dive,required"`
}

type SetRateRequest struct {
	RateTier     string           `json:"rate_tier"`
	CustomAmount *decimal.Decimal `json:"custom_amount"`
	PaidAt       string           `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Notes        string           `json:"notes" validate:"max=2000"`
}

type ImportRecordsRequest struct {
	Documents []map[string]interface{} `json:"documents" validate:"required,min=1"`
}

type ImportRecordsResponse struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}
