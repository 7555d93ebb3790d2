package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
)

const recordColumns = `id, fisher_id, fisher_name, catch_date, verified, paid, payment_id, payment_date,
	payment_amount, total_weight, total_value, location, fish_list, created_at, updated_at`

type recordRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewRecordRepository(db *sqlx.DB, timeout time.Duration) RecordRepository {
	return &recordRepository{db: db, timeout: timeout}
}

func (r *recordRepository) GetByID(ctx context.Context, id string) (*domain.FishingRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM fishing_records WHERE id = ?`)

	var record domain.FishingRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *recordRepository) ListByFisher(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		SELECT ` + recordColumns + `
		FROM fishing_records
		WHERE fisher_id = ?
		ORDER BY catch_date, id
	`)

	var records []*domain.FishingRecord
	if err := r.db.SelectContext(ctx, &records, query, fisherID); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *recordRepository) ListByFisherAndRange(ctx context.Context, fisherID string, start, end time.Time) ([]*domain.FishingRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		SELECT ` + recordColumns + `
		FROM fishing_records
		WHERE fisher_id = ? AND catch_date IS NOT NULL AND catch_date >= ? AND catch_date <= ?
		ORDER BY catch_date, id
	`)

	var records []*domain.FishingRecord
	if err := r.db.SelectContext(ctx, &records, query, fisherID, start.UTC(), end.UTC()); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *recordRepository) Upsert(ctx context.Context, records []*domain.FishingRecord) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	// Descriptive fields refresh only while a record is unpaid; payment
	// links are owned by the reconciliation commit.
	query := r.db.Rebind(`
		INSERT INTO fishing_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			fisher_name = excluded.fisher_name,
			catch_date = excluded.catch_date,
			verified = excluded.verified,
			total_weight = excluded.total_weight,
			total_value = excluded.total_value,
			location = excluded.location,
			fish_list = excluded.fish_list,
			updated_at = excluded.updated_at
		WHERE fishing_records.paid = FALSE
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, record := range records {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now

		_, err = tx.ExecContext(ctx, query,
			record.ID,
			record.FisherID,
			record.FisherName,
			utcPtr(record.CatchDate),
			record.Verified,
			record.Paid,
			record.PaymentID,
			utcPtr(record.PaymentDate),
			record.PaymentAmount,
			record.TotalWeight,
			record.TotalValue,
			record.Location,
			record.FishList,
			record.CreatedAt.UTC(),
			record.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
