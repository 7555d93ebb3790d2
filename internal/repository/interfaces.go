package repository

import (
	"context"
	"time"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
)

// RecordRepository defines the interface for catch record data operations
type RecordRepository interface {
	// GetByID retrieves a record by its ID
	GetByID(ctx context.Context, id string) (*domain.FishingRecord, error)

	// ListByFisher retrieves every record owned by a fisher, oldest catch first
	ListByFisher(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error)

	// ListByFisherAndRange retrieves a fisher's records caught within [start, end]
	ListByFisherAndRange(ctx context.Context, fisherID string, start, end time.Time) ([]*domain.FishingRecord, error)

	// Upsert inserts or refreshes records in one transaction; payment links
	// of existing records are never touched
	Upsert(ctx context.Context, records []*domain.FishingRecord) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// GetByID retrieves a payment with its covered record IDs
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// ListByFisher retrieves all payments for a fisher, newest period first
	ListByFisher(ctx context.Context, fisherID string) ([]*domain.Payment, error)

	// FindByFisherAndPeriod retrieves payments for (fisher, period key)
	FindByFisherAndPeriod(ctx context.Context, fisherID, periodKey string) ([]*domain.Payment, error)

	// CommitReconciliation creates the payment and marks every covered
	// record paid in a single transaction
	CommitReconciliation(ctx context.Context, input domain.CommitInput) (*domain.Payment, error)

	// FindOrphans lists payments whose covered records do not all link back
	FindOrphans(ctx context.Context) (int, []domain.OrphanedPayment, error)
}
