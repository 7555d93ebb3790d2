package service

import (
	"context"
	"time"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/repository"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
	"github.com/sunksun/mekong-fish-payments/pkg/utils"
)

// NewPeriod builds the inclusive window from the first instant of startDay
// to the last instant of endDay in loc. The period key is the month of
// startDay, so two windows starting in the same month share a key.
func NewPeriod(startDay, endDay time.Time, loc *time.Location) (domain.Period, error) {
	if startDay.IsZero() || endDay.IsZero() {
		return domain.Period{}, customError.WrapValidation("period start and end dates are required")
	}

	start := utils.StartOfDay(startDay, loc)
	end := utils.EndOfDay(endDay, loc)
	if end.Before(start) {
		return domain.Period{}, customError.WrapValidation("period end %s is before period start %s",
			endDay.In(loc).Format(utils.DateLayout), startDay.In(loc).Format(utils.DateLayout))
	}

	return domain.Period{
		Start: start,
		End:   end,
		Key:   PeriodKey(start, loc),
	}, nil
}

// PeriodKey is the YYYY-MM of the period's start date.
func PeriodKey(start time.Time, loc *time.Location) string {
	return utils.MonthKey(start, loc)
}

// DuplicateGuard blocks a second payment for the same fisher and month.
type DuplicateGuard struct {
	payments repository.PaymentRepository
}

func NewDuplicateGuard(payments repository.PaymentRepository) *DuplicateGuard {
	return &DuplicateGuard{payments: payments}
}

// Check returns a duplicate-period error naming the paid month when a
// payment already exists for (fisherID, period.Key).
func (g *DuplicateGuard) Check(ctx context.Context, fisherID string, period domain.Period) error {
	existing, err := g.payments.FindByFisherAndPeriod(ctx, fisherID, period.Key)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if len(existing) > 0 {
		return customError.WrapDuplicatePeriod(fisherID, period.Start)
	}
	return nil
}
