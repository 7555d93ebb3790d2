package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/lock"
	"github.com/sunksun/mekong-fish-payments/internal/session"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
)

// transitions lists the states each state may move to.
var transitions = map[domain.SessionState][]domain.SessionState{
	domain.StateSelectingFisher:          {domain.StateSelectingPeriod},
	domain.StateSelectingPeriod:          {domain.StateReviewingEligibleRecords},
	domain.StateReviewingEligibleRecords: {domain.StateReviewingEligibleRecords, domain.StateSettingRate},
	domain.StateSettingRate:              {domain.StateReviewingEligibleRecords, domain.StateSettingRate, domain.StateCommitting},
	domain.StateCommitting:               {domain.StateDone, domain.StateFailed},
}

// outcomeSaveTimeout bounds the save of a commit outcome, which runs
// detached from the request so a disconnect cannot strand the session.
const outcomeSaveTimeout = 5 * time.Second

func canTransition(from, to domain.SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkflowService drives the reconciliation wizard:
// selecting fisher, selecting period, reviewing eligible records, setting
// the rate, committing, then done or failed. Every step is validated
// against the session's current state before it is applied.
type WorkflowService struct {
	sessions   session.Store
	reconciler *ReconciliationService
}

func NewWorkflowService(sessions session.Store, reconciler *ReconciliationService) *WorkflowService {
	return &WorkflowService{sessions: sessions, reconciler: reconciler}
}

// Start opens a session for actor and selects the fisher.
func (w *WorkflowService) Start(ctx context.Context, actor domain.Actor, fisherID, fisherName string) (*domain.ReconciliationSession, error) {
	now := w.reconciler.Now()
	sess := &domain.ReconciliationSession{
		ID:        uuid.NewString(),
		State:     domain.StateSelectingFisher,
		Actor:     actor,
		CreatedAt: now,
		UpdatedAt: now,
	}

	fisherID = strings.TrimSpace(fisherID)
	if fisherID == "" {
		return nil, customError.WrapValidation("a fisher must be selected")
	}
	if err := w.advance(sess, domain.StateSelectingPeriod, "select a fisher"); err != nil {
		return nil, err
	}
	sess.FisherID = fisherID
	sess.FisherName = strings.TrimSpace(fisherName)

	if err := w.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (w *WorkflowService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, error) {
	sess, err := w.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, customError.WrapSessionNotFound(id)
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	// sessions are private to the operator who opened them
	if sess.Actor.ID != actor.ID {
		return nil, customError.WrapSessionNotFound(id)
	}
	return sess, nil
}

// SelectPeriod runs the duplicate guard and eligibility filter for the
// window. A blocked period leaves the session where it was. The selection
// defaults to every eligible record.
func (w *WorkflowService) SelectPeriod(ctx context.Context, actor domain.Actor, id string, startDay, endDay time.Time) (*domain.ReconciliationSession, *domain.EligibleRecordsResponse, error) {
	sess, err := w.open(ctx, actor, id, "select a period")
	if err != nil {
		return nil, nil, err
	}
	if !canTransition(sess.State, domain.StateReviewingEligibleRecords) {
		return nil, nil, customError.WrapInvalidTransition(string(sess.State), "select a period")
	}

	eligible, err := w.reconciler.EligibleRecords(ctx, sess.FisherID, startDay, endDay)
	if err != nil {
		return nil, nil, err
	}

	if err := w.advance(sess, domain.StateReviewingEligibleRecords, "select a period"); err != nil {
		return nil, nil, err
	}
	period := eligible.Period
	sess.Period = &period
	sess.EligibleRecordIDs = eligible.RecordIDs
	sess.SelectedRecordIDs = eligible.RecordIDs
	sess.Rate = nil
	sess.Amount = nil

	if err := w.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, eligible, nil
}

// SelectRecords confirms which eligible records the payment covers. An
// empty list keeps every eligible record.
func (w *WorkflowService) SelectRecords(ctx context.Context, actor domain.Actor, id string, recordIDs []string) (*domain.ReconciliationSession, error) {
	sess, err := w.open(ctx, actor, id, "select records")
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateReviewingEligibleRecords {
		return nil, customError.WrapInvalidTransition(string(sess.State), "select records")
	}

	selected, err := selectIDs(sess.FisherID, sess.EligibleRecordIDs, recordIDs)
	if err != nil {
		return nil, err
	}

	if err := w.advance(sess, domain.StateSettingRate, "select records"); err != nil {
		return nil, err
	}
	sess.SelectedRecordIDs = selected

	if err := w.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetRate resolves the payout and records the paid-at date and notes.
func (w *WorkflowService) SetRate(ctx context.Context, actor domain.Actor, id string, rate domain.RateSelector, paidAt *time.Time, notes string) (*domain.ReconciliationSession, *domain.Payout, error) {
	sess, err := w.open(ctx, actor, id, "set the rate")
	if err != nil {
		return nil, nil, err
	}
	if sess.State != domain.StateSettingRate {
		return nil, nil, customError.WrapInvalidTransition(string(sess.State), "set the rate")
	}

	payout, err := w.reconciler.Payout.Resolve(rate, len(sess.SelectedRecordIDs))
	if err != nil {
		return nil, nil, err
	}

	if err := w.advance(sess, domain.StateSettingRate, "set the rate"); err != nil {
		return nil, nil, err
	}
	sess.Rate = &rate
	sess.Amount = &payout.Amount
	if paidAt != nil {
		day := w.reconciler.paidAt(paidAt)
		sess.PaidAt = &day
	} else {
		sess.PaidAt = nil
	}
	sess.Notes = strings.TrimSpace(notes)

	if err := w.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, &payout, nil
}

// Commit performs the reconciliation. The session ends Done with the new
// payment id, or Failed with the error code and message. Concurrent commits
// of one session are serialized on a session lock; the loser sees the
// session as already committing.
func (w *WorkflowService) Commit(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, *domain.Payment, error) {
	lockKey := sessionLockKey(id)
	lease, err := w.reconciler.Locker.Acquire(ctx, lockKey)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, nil, customError.WrapInvalidTransition(string(domain.StateCommitting), "commit")
	}
	if err != nil {
		return nil, nil, customError.WrapCacheError(err)
	}
	defer w.reconciler.release(lease, lockKey)

	sess, err := w.open(ctx, actor, id, "commit")
	if err != nil {
		return nil, nil, err
	}
	if sess.State != domain.StateSettingRate || sess.Rate == nil || sess.Period == nil {
		return nil, nil, customError.WrapInvalidTransition(string(sess.State), "commit")
	}

	payout, err := w.reconciler.Payout.Resolve(*sess.Rate, len(sess.SelectedRecordIDs))
	if err != nil {
		return nil, nil, err
	}

	if err := w.advance(sess, domain.StateCommitting, "commit"); err != nil {
		return nil, nil, err
	}
	if err := w.save(ctx, sess); err != nil {
		return nil, nil, err
	}

	payment, commitErr := w.reconciler.commit(ctx, domain.CommitInput{
		FisherID:   sess.FisherID,
		FisherName: sess.FisherName,
		RecordIDs:  sess.SelectedRecordIDs,
		Payout:     payout,
		Period:     *sess.Period,
		PaidAt:     w.reconciler.paidAt(sess.PaidAt),
		PaidBy:     sess.Actor,
		Notes:      sess.Notes,
	})

	if commitErr != nil {
		_ = w.advance(sess, domain.StateFailed, "fail")
		sess.FailureCode = customError.Code(commitErr)
		sess.FailureMessage = customError.Message(commitErr)
	} else {
		_ = w.advance(sess, domain.StateDone, "finish")
		sess.PaymentID = payment.ID
	}

	// the commit result stands either way; a failed save is only logged
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeSaveTimeout)
	defer cancel()
	if err := w.save(saveCtx, sess); err != nil {
		w.reconciler.logger.Warn("saving reconciliation session outcome", "session_id", sess.ID, "state", sess.State, "error", err)
	}

	if commitErr != nil {
		return sess, nil, commitErr
	}
	return sess, payment, nil
}

// open loads a session for a wizard step. Finished sessions accept no
// further steps.
func (w *WorkflowService) open(ctx context.Context, actor domain.Actor, id, action string) (*domain.ReconciliationSession, error) {
	sess, err := w.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return nil, customError.WrapInvalidTransition(string(sess.State), action)
	}
	return sess, nil
}

func (w *WorkflowService) advance(sess *domain.ReconciliationSession, to domain.SessionState, action string) error {
	if !canTransition(sess.State, to) {
		return customError.WrapInvalidTransition(string(sess.State), action)
	}
	sess.State = to
	sess.UpdatedAt = w.reconciler.Now()
	return nil
}

func (w *WorkflowService) save(ctx context.Context, sess *domain.ReconciliationSession) error {
	if err := w.sessions.Save(ctx, sess); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func sessionLockKey(id string) string {
	return "session:" + id
}

func selectIDs(fisherID string, eligibleIDs, requested []string) ([]string, error) {
	eligible := make([]*domain.FishingRecord, 0, len(eligibleIDs))
	for _, id := range eligibleIDs {
		eligible = append(eligible, &domain.FishingRecord{ID: id})
	}
	return selectRecords(fisherID, eligible, requested)
}
