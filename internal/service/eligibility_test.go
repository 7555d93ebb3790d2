package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/service"
)

var bangkok = mustLoad("Asia/Bangkok")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func at(y int, m time.Month, d, hh, mm int) *time.Time {
	t := time.Date(y, m, d, hh, mm, 0, 0, bangkok)
	return &t
}

func record(id, fisherID string, caught *time.Time, verified, paid bool) *domain.FishingRecord {
	r := &domain.FishingRecord{
		ID:        id,
		FisherID:  fisherID,
		CatchDate: caught,
		Verified:  verified,
		Paid:      paid,
	}
	if paid {
		pid := "pay-old"
		r.PaymentID = &pid
	}
	return r
}

func januaryPeriod(t *testing.T) domain.Period {
	t.Helper()
	period, err := service.NewPeriod(*at(2024, time.January, 1, 0, 0), *at(2024, time.January, 31, 0, 0), bangkok)
	require.NoError(t, err)
	return period
}

func TestFilterEligible(t *testing.T) {
	period := januaryPeriod(t)

	tests := []struct {
		name     string
		records  []*domain.FishingRecord
		expected []string
	}{
		{
			name: "keeps verified unpaid records in range",
			records: []*domain.FishingRecord{
				record("a", "f-1", at(2024, time.January, 5, 8, 0), true, false),
				record("b", "f-1", at(2024, time.January, 12, 8, 0), true, false),
			},
			expected: []string{"a", "b"},
		},
		{
			name: "drops unverified and paid records",
			records: []*domain.FishingRecord{
				record("a", "f-1", at(2024, time.January, 5, 8, 0), false, false),
				record("b", "f-1", at(2024, time.January, 6, 8, 0), true, true),
				record("c", "f-1", at(2024, time.January, 7, 8, 0), true, false),
			},
			expected: []string{"c"},
		},
		{
			name: "includes both boundary days",
			records: []*domain.FishingRecord{
				record("first", "f-1", at(2024, time.January, 1, 0, 0), true, false),
				record("last", "f-1", at(2024, time.January, 31, 23, 59), true, false),
				record("before", "f-1", at(2023, time.December, 31, 23, 59), true, false),
				record("after", "f-1", at(2024, time.February, 1, 0, 0), true, false),
			},
			expected: []string{"first", "last"},
		},
		{
			name: "skips records with no catch date",
			records: []*domain.FishingRecord{
				record("undated", "f-1", nil, true, false),
				record("dated", "f-1", at(2024, time.January, 9, 8, 0), true, false),
			},
			expected: []string{"dated"},
		},
		{
			name: "ignores other fishers",
			records: []*domain.FishingRecord{
				record("mine", "f-1", at(2024, time.January, 9, 8, 0), true, false),
				record("theirs", "f-2", at(2024, time.January, 9, 8, 0), true, false),
			},
			expected: []string{"mine"},
		},
		{
			name: "orders by catch date then id",
			records: []*domain.FishingRecord{
				record("z", "f-1", at(2024, time.January, 20, 8, 0), true, false),
				record("b", "f-1", at(2024, time.January, 3, 8, 0), true, false),
				record("a", "f-1", at(2024, time.January, 3, 8, 0), true, false),
			},
			expected: []string{"a", "b", "z"},
		},
		{
			name:     "empty input is a valid empty result",
			records:  nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.FilterEligible("f-1", period, tt.records)

			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
				assert.True(t, r.Verified)
				assert.False(t, r.Paid)
				assert.False(t, r.CatchDate.Before(period.Start))
				assert.False(t, r.CatchDate.After(period.End))
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}
