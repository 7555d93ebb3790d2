package service

import (
	"sort"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
)

// FilterEligible returns the fisher's records that may be covered by a
// payment for period: verified, unpaid, and caught within
// [period.Start, period.End]. Records without a catch date are skipped.
// The result is ordered by catch date, then ID.
func FilterEligible(fisherID string, period domain.Period, records []*domain.FishingRecord) []*domain.FishingRecord {
	eligible := make([]*domain.FishingRecord, 0, len(records))
	for _, r := range records {
		if r == nil || r.FisherID != fisherID || !r.IsPayable() {
			continue
		}
		if r.CatchDate == nil || r.CatchDate.IsZero() {
			continue
		}
		if r.CatchDate.Before(period.Start) || r.CatchDate.After(period.End) {
			continue
		}
		eligible = append(eligible, r)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].CatchDate, eligible[j].CatchDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return eligible[i].ID < eligible[j].ID
	})

	return eligible
}

func recordIDs(records []*domain.FishingRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
