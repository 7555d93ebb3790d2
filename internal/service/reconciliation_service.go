package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sunksun/mekong-fish-payments/internal/config"
	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
	"github.com/sunksun/mekong-fish-payments/internal/repository"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
	"github.com/sunksun/mekong-fish-payments/pkg/utils"
)

// ReconcileCommand is a complete one-shot reconciliation request.
type ReconcileCommand struct {
	FisherID    string
	FisherName  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	RecordIDs   []string // subset of the eligible records; empty means all
	Rate        domain.RateSelector
	PaidAt      *time.Time
	Notes       string
	Actor       domain.Actor
}

type ReconciliationService struct {
	RecordRepo  repository.RecordRepository
	PaymentRepo repository.PaymentRepository
	Locker      lock.Locker
	Payout      *PayoutCalculator
	Guard       *DuplicateGuard
	Location    *time.Location
	Now         func() time.Time
	logger      *slog.Logger
}

func NewReconciliationService(
	recordRepo repository.RecordRepository,
	paymentRepo repository.PaymentRepository,
	locker lock.Locker,
	cfg *config.Config,
) *ReconciliationService {
	if locker == nil {
		locker = lock.Noop{}
	}

	loc := time.UTC
	tiers := DefaultPayoutTiers
	if cfg != nil {
		loc = cfg.Location()
		tiers = cfg.GetPayoutTiers()
	}

	return &ReconciliationService{
		RecordRepo:  recordRepo,
		PaymentRepo: paymentRepo,
		Locker:      locker,
		Payout:      NewPayoutCalculator(tiers),
		Guard:       NewDuplicateGuard(paymentRepo),
		Location:    loc,
		Now:         time.Now,
		logger:      slog.Default().With("component", "reconciliation"),
	}
}

// EligibleRecords runs the duplicate guard for the period and, if it
// clears, returns the fisher's eligible records. An empty set is not an
// error here; committing it is.
func (s *ReconciliationService) EligibleRecords(ctx context.Context, fisherID string, startDay, endDay time.Time) (*domain.EligibleRecordsResponse, error) {
	fisherID = strings.TrimSpace(fisherID)
	if fisherID == "" {
		return nil, customError.WrapValidation("a fisher must be selected")
	}

	period, err := NewPeriod(startDay, endDay, s.Location)
	if err != nil {
		return nil, err
	}

	if err := s.Guard.Check(ctx, fisherID, period); err != nil {
		return nil, err
	}

	eligible, err := s.loadEligible(ctx, fisherID, period)
	if err != nil {
		return nil, err
	}

	return &domain.EligibleRecordsResponse{
		FisherID:  fisherID,
		Period:    period,
		Count:     len(eligible),
		Records:   eligible,
		RecordIDs: recordIDs(eligible),
	}, nil
}

// Reconcile validates cmd, then creates the payment and links the records.
func (s *ReconciliationService) Reconcile(ctx context.Context, cmd ReconcileCommand) (*domain.Payment, error) {
	fisherID := strings.TrimSpace(cmd.FisherID)
	if fisherID == "" {
		return nil, customError.WrapValidation("a fisher must be selected")
	}

	period, err := NewPeriod(cmd.PeriodStart, cmd.PeriodEnd, s.Location)
	if err != nil {
		return nil, err
	}

	// Rate validation needs no store access, so fail fast
	if _, err := s.Payout.Resolve(cmd.Rate, 0); err != nil {
		return nil, err
	}

	if err := s.Guard.Check(ctx, fisherID, period); err != nil {
		return nil, err
	}

	eligible, err := s.loadEligible(ctx, fisherID, period)
	if err != nil {
		return nil, err
	}

	selected, err := selectRecords(fisherID, eligible, cmd.RecordIDs)
	if err != nil {
		return nil, err
	}

	payout, err := s.Payout.Resolve(cmd.Rate, len(selected))
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, domain.CommitInput{
		FisherID:   fisherID,
		FisherName: strings.TrimSpace(cmd.FisherName),
		RecordIDs:  selected,
		Payout:     payout,
		Period:     period,
		PaidAt:     s.paidAt(cmd.PaidAt),
		PaidBy:     cmd.Actor,
		Notes:      strings.TrimSpace(cmd.Notes),
	})
}

// commit re-checks the guard and the selection under the advisory lock and
// performs the transactional write.
func (s *ReconciliationService) commit(ctx context.Context, input domain.CommitInput) (*domain.Payment, error) {
	if len(input.RecordIDs) == 0 {
		return nil, customError.WrapNoEligibleRecords(input.FisherID)
	}
	if !input.Payout.Amount.IsPositive() {
		return nil, customError.WrapValidation("payout amount must be greater than 0")
	}
	if strings.TrimSpace(input.PaidBy.ID) == "" {
		return nil, customError.WrapValidation("the paying operator must be identified")
	}

	lockKey := input.FisherID + ":" + input.Period.Key
	lease, err := s.Locker.Acquire(ctx, lockKey)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, customError.WrapReconciliationInProgress(input.FisherID, input.Period.Key)
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	defer s.release(lease, lockKey)

	if err := s.Guard.Check(ctx, input.FisherID, input.Period); err != nil {
		return nil, err
	}

	eligible, err := s.loadEligible(ctx, input.FisherID, input.Period)
	if err != nil {
		return nil, err
	}
	if _, err := selectRecords(input.FisherID, eligible, input.RecordIDs); err != nil {
		return nil, err
	}

	payment, err := s.PaymentRepo.CommitReconciliation(ctx, input)
	if err != nil {
		s.logger.Error("reconciliation rolled back",
			"fisher_id", input.FisherID,
			"period_key", input.Period.Key,
			"record_count", len(input.RecordIDs),
			"error", err,
		)
		if errors.Is(err, customError.ErrDuplicatePeriod) {
			return nil, customError.WrapDuplicatePeriod(input.FisherID, input.Period.Start)
		}
		return nil, customError.WrapCommitFailed(err)
	}

	s.logger.Info("reconciliation committed",
		"payment_id", payment.ID,
		"fisher_id", payment.FisherID,
		"period_key", payment.PeriodKey,
		"record_count", payment.RecordCount,
		"amount", payment.Amount.String(),
		"paid_by", payment.PaidByID,
	)

	return payment, nil
}

func (s *ReconciliationService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.PaymentRepo.GetByID(ctx, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapPaymentNotFound(paymentID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payment, nil
}

func (s *ReconciliationService) ListPayments(ctx context.Context, fisherID string) ([]*domain.Payment, error) {
	payments, err := s.PaymentRepo.ListByFisher(ctx, fisherID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, nil
}

func (s *ReconciliationService) GetRecord(ctx context.Context, recordID string) (*domain.FishingRecord, error) {
	record, err := s.RecordRepo.GetByID(ctx, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapRecordNotFound(recordID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return record, nil
}

// ListRecords returns a fisher's whole catch history, paid or not.
func (s *ReconciliationService) ListRecords(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error) {
	records, err := s.RecordRepo.ListByFisher(ctx, fisherID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if records == nil {
		records = []*domain.FishingRecord{}
	}
	return records, nil
}

// PayoutTiers lists the configured tiers, cheapest first.
func (s *ReconciliationService) PayoutTiers() []domain.PayoutTier {
	tiers := s.Payout.Tiers()
	out := make([]domain.PayoutTier, 0, len(tiers))
	for name, amount := range tiers {
		out = append(out, domain.PayoutTier{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.LessThan(out[j].Amount)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ImportRecords normalizes legacy catch documents and upserts the ones that
// pass; rejected documents are reported by index and reason.
func (s *ReconciliationService) ImportRecords(ctx context.Context, docs []map[string]interface{}) (*domain.ImportRecordsResponse, error) {
	records := make([]*domain.FishingRecord, 0, len(docs))
	var skipped []string
	for i, doc := range docs {
		record, err := domain.NormalizeRecord(doc, s.Location)
		if err != nil {
			skipped = append(skipped, formatSkip(i, err))
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		if err := s.RecordRepo.Upsert(ctx, records); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	s.logger.Info("legacy records imported", "imported", len(records), "skipped", len(skipped))
	return &domain.ImportRecordsResponse{Imported: len(records), Skipped: skipped}, nil
}

func (s *ReconciliationService) loadEligible(ctx context.Context, fisherID string, period domain.Period) ([]*domain.FishingRecord, error) {
	records, err := s.RecordRepo.ListByFisherAndRange(ctx, fisherID, period.Start, period.End)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return FilterEligible(fisherID, period, records), nil
}

// release frees lease on a fresh context so a cancelled request still
// frees the key.
func (s *ReconciliationService) release(lease lock.Lease, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		s.logger.Warn("releasing reconciliation lock", "key", key, "error", err)
	}
}

func (s *ReconciliationService) paidAt(day *time.Time) time.Time {
	if day == nil || day.IsZero() {
		return s.Now()
	}
	return utils.StartOfDay(*day, s.Location)
}

// selectRecords returns the requested subset of eligible, in request order
// with duplicates dropped, or every eligible ID when requested is empty.
func selectRecords(fisherID string, eligible []*domain.FishingRecord, requested []string) ([]string, error) {
	if len(eligible) == 0 {
		return nil, customError.WrapNoEligibleRecords(fisherID)
	}
	if len(requested) == 0 {
		return recordIDs(eligible), nil
	}

	allowed := make(map[string]bool, len(eligible))
	for _, r := range eligible {
		allowed[r.ID] = true
	}

	seen := make(map[string]bool, len(requested))
	selected := make([]string, 0, len(requested))
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		if !allowed[id] {
			return nil, customError.WrapValidation("record %s is not eligible for payment in this period", id)
		}
		seen[id] = true
		selected = append(selected, id)
	}
	return selected, nil
}

func formatSkip(index int, err error) string {
	return fmt.Sprintf("document %d: %v", index, err)
}
