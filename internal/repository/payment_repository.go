package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	apperrors "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

const paymentColumns = `id, fisher_id, fisher_name, period_key, period_start, period_end, record_count,
	rate, rate_tier, amount, status, notes, paid_by_id, paid_by_name, paid_at, created_at`

type paymentRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPaymentRepository(db *sqlx.DB, timeout time.Duration) PaymentRepository {
	return &paymentRepository{db: db, timeout: timeout}
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`)

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}

	payments := []*domain.Payment{&payment}
	if err := r.attachRecordIDs(ctx, payments); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) ListByFisher(ctx context.Context, fisherID string) ([]*domain.Payment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE fisher_id = ?
		ORDER BY period_key DESC, created_at DESC
	`)

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, fisherID); err != nil {
		return nil, err
	}

	if err := r.attachRecordIDs(ctx, payments); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) FindByFisherAndPeriod(ctx context.Context, fisherID, periodKey string) ([]*domain.Payment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE fisher_id = ? AND period_key = ?
		ORDER BY created_at
	`)

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, fisherID, periodKey); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) CommitReconciliation(ctx context.Context, input domain.CommitInput) (*domain.Payment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:          uuid.NewString(),
		FisherID:    input.FisherID,
		FisherName:  input.FisherName,
		PeriodKey:   input.Period.Key,
		PeriodStart: input.Period.Start.UTC(),
		PeriodEnd:   input.Period.End.UTC(),
		RecordIDs:   append([]string(nil), input.RecordIDs...),
		RecordCount: len(input.RecordIDs),
		Rate:        input.Payout.Rate,
		RateTier:    input.Payout.Tier,
		Amount:      input.Payout.Amount,
		Status:      domain.PaymentStatusPaid,
		Notes:       input.Notes,
		PaidByID:    input.PaidBy.ID,
		PaidByName:  input.PaidBy.Name,
		PaidAt:      input.PaidAt.UTC(),
		CreatedAt:   now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	insertPayment := tx.Rebind(`
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = tx.ExecContext(ctx, insertPayment,
		payment.ID,
		payment.FisherID,
		payment.FisherName,
		payment.PeriodKey,
		payment.PeriodStart,
		payment.PeriodEnd,
		payment.RecordCount,
		payment.Rate,
		payment.RateTier,
		payment.Amount,
		payment.Status,
		payment.Notes,
		payment.PaidByID,
		payment.PaidByName,
		payment.PaidAt,
		payment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "period_key", "uq_payments_fisher_period") {
			return nil, fmt.Errorf("%w: %s/%s", apperrors.ErrDuplicatePeriod, payment.FisherID, payment.PeriodKey)
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	linkRecord := tx.Rebind(`INSERT INTO payment_records (payment_id, record_id, position) VALUES (?, ?, ?)`)
	markPaid := tx.Rebind(`
		UPDATE fishing_records
		SET paid = TRUE, payment_id = ?, payment_date = ?, payment_amount = ?, updated_at = ?
		WHERE id = ? AND fisher_id = ? AND verified = TRUE AND paid = FALSE AND payment_id IS NULL
	`)

	for i, recordID := range payment.RecordIDs {
		if _, err = tx.ExecContext(ctx, linkRecord, payment.ID, recordID, i); err != nil {
			if isUniqueViolation(err, "record_id", "uq_payment_records_record") {
				return nil, fmt.Errorf("%w: %s already covered by another payment", apperrors.ErrRecordNotEligible, recordID)
			}
			return nil, fmt.Errorf("link record %s: %w", recordID, err)
		}

		res, err := tx.ExecContext(ctx, markPaid, payment.ID, payment.PaidAt, payment.Amount, now, recordID, payment.FisherID)
		if err != nil {
			return nil, fmt.Errorf("mark record %s paid: %w", recordID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("mark record %s paid: %w", recordID, err)
		}
		if affected != 1 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrRecordNotEligible, recordID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconciliation: %w", err)
	}

	return payment, nil
}

type linkRow struct {
	PaymentID   string         `db:"payment_id"`
	FisherID    string         `db:"fisher_id"`
	PeriodKey   string         `db:"period_key"`
	RecordCount int            `db:"record_count"`
	RecordID    sql.NullString `db:"record_id"`
	Linked      bool           `db:"linked"`
}

func (r *paymentRepository) FindOrphans(ctx context.Context) (int, []domain.OrphanedPayment, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT p.id AS payment_id, p.fisher_id, p.period_key, p.record_count, pr.record_id,
			CASE WHEN fr.id IS NOT NULL AND fr.paid = TRUE AND fr.payment_id = p.id THEN TRUE ELSE FALSE END AS linked
		FROM payments p
		LEFT JOIN payment_records pr ON pr.payment_id = p.id
		LEFT JOIN fishing_records fr ON fr.id = pr.record_id
		ORDER BY p.id, pr.position
	`

	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return 0, nil, err
	}

	var (
		orphans []domain.OrphanedPayment
		checked int
		current *domain.OrphanedPayment
		linked  int
	)
	flush := func() {
		if current == nil {
			return
		}
		checked++
		if len(current.UnlinkedRecords) > 0 || linked != current.ExpectedRecords {
			orphans = append(orphans, *current)
		}
	}

	for _, row := range rows {
		if current == nil || current.PaymentID != row.PaymentID {
			flush()
			current = &domain.OrphanedPayment{
				PaymentID:       row.PaymentID,
				FisherID:        row.FisherID,
				PeriodKey:       row.PeriodKey,
				ExpectedRecords: row.RecordCount,
			}
			linked = 0
		}
		if !row.RecordID.Valid {
			continue
		}
		if row.Linked {
			linked++
		} else {
			current.UnlinkedRecords = append(current.UnlinkedRecords, row.RecordID.String)
		}
	}
	flush()

	return checked, orphans, nil
}

func (r *paymentRepository) attachRecordIDs(ctx context.Context, payments []*domain.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	ids := make([]string, 0, len(payments))
	byID := make(map[string]*domain.Payment, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
		byID[p.ID] = p
		p.RecordIDs = []string{}
	}

	query, args, err := sqlx.In(`
		SELECT payment_id, record_id
		FROM payment_records
		WHERE payment_id IN (?)
		ORDER BY payment_id, position
	`, ids)
	if err != nil {
		return err
	}

	var links []struct {
		PaymentID string `db:"payment_id"`
		RecordID  string `db:"record_id"`
	}
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...); err != nil {
		return err
	}

	for _, link := range links {
		if p, ok := byID[link.PaymentID]; ok {
			p.RecordIDs = append(p.RecordIDs, link.RecordID)
		}
	}
	return nil
}

// isUniqueViolation matches unique-constraint failures from both PostgreSQL
// and SQLite. hints narrow the match to a specific index or column.
func isUniqueViolation(err error, hints ...string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return false
		}
		return matchesHint(pqErr.Constraint+" "+pqErr.Message+" "+pqErr.Detail, hints)
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return matchesHint(msg, hints)
}

func matchesHint(text string, hints []string) bool {
	if len(hints) == 0 {
		return true
	}
	for _, hint := range hints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
