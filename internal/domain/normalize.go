package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// NormalizeRecord converts one legacy catch document into the canonical
// record schema.
//
// Legacy documents disagree on field names and types: the fisher is under
// fisherId or userId, catch lines under fishList or fishData, dates are
// RFC3339 strings, plain days, unix seconds or millis, or timestamp maps with
// a seconds field. A catch date that cannot be parsed is stored as nil, which
// keeps the record out of every payment window.
func NormalizeRecord(doc map[string]interface{}, loc *time.Location) (*FishingRecord, error) {
	id := firstString(doc, "id", "_id", "recordId")
	if id == "" {
		return nil, fmt.Errorf("document has no id")
	}

	fisherID := firstString(doc, "fisherId", "userId", "fisher_id")
	if fisherID == "" {
		return nil, fmt.Errorf("record %s has no fisher id", id)
	}

	record := &FishingRecord{
		ID:         id,
		FisherID:   fisherID,
		FisherName: firstString(doc, "fisherName", "userName", "fisher_name"),
		Location:   locationString(first(doc, "location", "catchLocation")),
		Verified:   cast.ToBool(first(doc, "verified", "isVerified")),
		Paid:       cast.ToBool(first(doc, "paid", "isPaid")),
	}

	if t, ok := looseTime(first(doc, "catchDate", "date", "catch_date"), loc); ok {
		t = t.UTC()
		record.CatchDate = &t
	}

	if paymentID := firstString(doc, "paymentId", "payment_id"); paymentID != "" {
		record.PaymentID = &paymentID
		record.Paid = true
		if t, ok := looseTime(first(doc, "paymentDate", "payment_date"), loc); ok {
			t = t.UTC()
			record.PaymentDate = &t
		}
		if amount, ok := looseDecimal(first(doc, "paymentAmount", "payment_amount")); ok {
			record.PaymentAmount = decimal.NewNullDecimal(amount)
		}
	}
	if record.Paid && record.PaymentID == nil {
		return nil, fmt.Errorf("record %s is marked paid without a payment id", id)
	}

	lines, err := catchLines(first(doc, "fishList", "fishData"))
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	record.FishList = lines

	record.TotalWeight, record.TotalValue = lineTotals(lines)
	if w, ok := looseDecimal(first(doc, "totalWeight", "total_weight")); ok {
		record.TotalWeight = w
	}
	if v, ok := looseDecimal(first(doc, "totalValue", "totalPrice", "total_value")); ok {
		record.TotalValue = v
	}

	return record, nil
}

func first(doc map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := doc[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(doc map[string]interface{}, keys ...string) string {
	return strings.TrimSpace(cast.ToString(first(doc, keys...)))
}

func locationString(v interface{}) string {
	if m, err := cast.ToStringMapE(v); err == nil {
		for _, key := range []string{"name", "spotName", "address"} {
			if s := strings.TrimSpace(cast.ToString(m[key])); s != "" {
				return s
			}
		}
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func looseTime(v interface{}, loc *time.Location) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}

	// Firestore-style {seconds, nanoseconds} maps
	if m, err := cast.ToStringMapE(v); err == nil {
		secs, err := cast.ToInt64E(first(m, "seconds", "_seconds"))
		if err != nil || secs <= 0 {
			return time.Time{}, false
		}
		nanos := cast.ToInt64(first(m, "nanoseconds", "_nanoseconds"))
		return time.Unix(secs, nanos), true
	}

	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		ms := cast.ToInt64(n)
		if ms <= 0 {
			return time.Time{}, false
		}
		if ms > 1e11 {
			return time.UnixMilli(ms), true
		}
		return time.Unix(ms, 0), true
	case string:
		if strings.TrimSpace(n) == "" {
			return time.Time{}, false
		}
	}

	t, err := cast.ToTimeInDefaultLocationE(v, loc)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func looseDecimal(v interface{}) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func catchLines(v interface{}) (FishList, error) {
	if v == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("catch lines: %w", err)
	}

	lines := make(FishList, 0, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("catch line %d: %w", i, err)
		}
		line := CatchLine{
			Species: firstString(m, "species", "name", "fishName", "speciesName"),
			Count:   cast.ToInt(first(m, "count", "quantity", "amount")),
		}
		line.Weight, _ = looseDecimal(first(m, "weight", "totalWeight"))
		line.Price, _ = looseDecimal(first(m, "price", "value", "totalPrice"))
		lines = append(lines, line)
	}
	return lines, nil
}

func lineTotals(lines FishList) (decimal.Decimal, decimal.Decimal) {
	weight, value := decimal.Zero, decimal.Zero
	for _, line := range lines {
		weight = weight.Add(line.Weight)
		value = value.Add(line.Price)
	}
	return weight, value
}
