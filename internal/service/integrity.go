package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/repository"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

// IntegrityService finds payments whose covered records do not all point
// back at them. Such payments can only come from writes made outside the
// transactional committer, e.g. legacy data or manual edits.
type IntegrityService struct {
	paymentRepo repository.PaymentRepository
	now         func() time.Time
	logger      *slog.Logger
}

func NewIntegrityService(paymentRepo repository.PaymentRepository) *IntegrityService {
	return &IntegrityService{
		paymentRepo: paymentRepo,
		now:         time.Now,
		logger:      slog.Default().With("component", "integrity"),
	}
}

// Sweep reports every orphaned payment. It never repairs anything.
func (s *IntegrityService) Sweep(ctx context.Context) (*domain.IntegrityReport, error) {
	checked, orphans, err := s.paymentRepo.FindOrphans(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if orphans == nil {
		orphans = []domain.OrphanedPayment{}
	}

	for _, o := range orphans {
		s.logger.Warn("orphaned payment",
			"payment_id", o.PaymentID,
			"fisher_id", o.FisherID,
			"period_key", o.PeriodKey,
			"expected_records", o.ExpectedRecords,
			"unlinked_records", o.UnlinkedRecords,
		)
	}
	s.logger.Info("integrity sweep finished", "payments_checked", checked, "orphans", len(orphans))

	return &domain.IntegrityReport{
		CheckedAt:       s.now().UTC(),
		PaymentsChecked: checked,
		Orphans:         orphans,
	}, nil
}
