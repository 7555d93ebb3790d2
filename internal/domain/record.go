package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FishingRecord is a catch report submitted by a fisher.
//
// Paid and PaymentID always change together: a record is paid iff it is
// linked to a payment. Only the reconciliation commit sets them.
type FishingRecord struct {
	ID            string              `json:"id" db:"id"`
	FisherID      string              `json:"fisher_id" db:"fisher_id"`
	FisherName    string              `json:"fisher_name" db:"fisher_name"`
	CatchDate     *time.Time          `json:"catch_date,omitempty" db:"catch_date"` // nil when missing or unparsable at import
	Verified      bool                `json:"verified" db:"verified"`
	Paid          bool                `json:"paid" db:"paid"`
	PaymentID     *string             `json:"payment_id,omitempty" db:"payment_id"`
	PaymentDate   *time.Time          `json:"payment_date,omitempty" db:"payment_date"`
	PaymentAmount decimal.NullDecimal `json:"payment_amount" db:"payment_amount"`
	TotalWeight   decimal.Decimal     `json:"total_weight" db:"total_weight"`
	TotalValue    decimal.Decimal     `json:"total_value" db:"total_value"`
	Location      string              `json:"location" db:"location"`
	FishList      FishList            `json:"fish_list" db:"fish_list"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// CatchLine is one species entry of a catch report.
type CatchLine struct {
	Species string          `json:"species"`
	Count   int             `json:"count"`
	Weight  decimal.Decimal `json:"weight"`
	Price   decimal.Decimal `json:"price"`
}

// FishList is stored as a JSON column.
type FishList []CatchLine

func (l FishList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *FishList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("fish_list: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

// IsPayable reports whether the record may be covered by a new payment,
// ignoring the date window.
func (r *FishingRecord) IsPayable() bool {
	return r.Verified && !r.Paid && r.PaymentID == nil
}
