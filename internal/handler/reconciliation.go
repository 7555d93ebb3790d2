package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/sunksun/mekong-fish-payments/internal/config"
	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/internal/middleware"
	"github.com/sunksun/mekong-fish-payments/internal/service"
	customError "github.com/sunksun/mekong-fish-payments/pkg/errors"
	"github.com/sunksun/mekong-fish-payments/pkg/response"
	"github.com/sunksun/mekong-fish-payments/pkg/utils"
)

// Reconciler is the one-shot reconciliation surface the handler needs.
type Reconciler interface {
	EligibleRecords(ctx context.Context, fisherID string, startDay, endDay time.Time) (*domain.EligibleRecordsResponse, error)
	Reconcile(ctx context.Context, cmd service.ReconcileCommand) (*domain.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, fisherID string) ([]*domain.Payment, error)
	ImportRecords(ctx context.Context, docs []map[string]interface{}) (*domain.ImportRecordsResponse, error)
	GetRecord(ctx context.Context, recordID string) (*domain.FishingRecord, error)
	ListRecords(ctx context.Context, fisherID string) ([]*domain.FishingRecord, error)
	PayoutTiers() []domain.PayoutTier
}

// Workflow is the step-by-step reconciliation surface.
type Workflow interface {
	Start(ctx context.Context, actor domain.Actor, fisherID, fisherName string) (*domain.ReconciliationSession, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, error)
	SelectPeriod(ctx context.Context, actor domain.Actor, id string, startDay, endDay time.Time) (*domain.ReconciliationSession, *domain.EligibleRecordsResponse, error)
	SelectRecords(ctx context.Context, actor domain.Actor, id string, recordIDs []string) (*domain.ReconciliationSession, error)
	SetRate(ctx context.Context, actor domain.Actor, id string, rate domain.RateSelector, paidAt *time.Time, notes string) (*domain.ReconciliationSession, *domain.Payout, error)
	Commit(ctx context.Context, actor domain.Actor, id string) (*domain.ReconciliationSession, *domain.Payment, error)
}

type IntegritySweeper interface {
	Sweep(ctx context.Context) (*domain.IntegrityReport, error)
}

type ReconciliationHandler struct {
	reconciler Reconciler
	workflow   Workflow
	integrity  IntegritySweeper
	validator  *validator.Validate
	loc        *time.Location
}

func NewReconciliationHandler(reconciler Reconciler, workflow Workflow, integrity IntegritySweeper, cfg *config.Config) *ReconciliationHandler {
	loc := time.UTC
	if cfg != nil {
		loc = cfg.Location()
	}
	return &ReconciliationHandler{
		reconciler: reconciler,
		workflow:   workflow,
		integrity:  integrity,
		validator:  validator.New(),
		loc:        loc,
	}
}

type SessionResponse struct {
	Session  *domain.ReconciliationSession  `json:"session"`
	Eligible *domain.EligibleRecordsResponse `json:"eligible,omitempty"`
	Payout   *domain.Payout                  `json:"payout,omitempty"`
	Payment  *domain.Payment                 `json:"payment,omitempty"`
}

// EligibleRecords handles GET /fishers/{fisherId}/eligible-records
func (h *ReconciliationHandler) EligibleRecords(w http.ResponseWriter, r *http.Request) {
	fisherID := mux.Vars(r)["fisherId"]
	query := r.URL.Query()

	start, end, err := h.parseRange(query.Get("start"), query.Get("end"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	eligible, err := h.reconciler.EligibleRecords(r.Context(), fisherID, start, end)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.Success(w, eligible)
}

// ListPayments handles GET /fishers/{fisherId}/payments
func (h *ReconciliationHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.reconciler.ListPayments(r.Context(), mux.Vars(r)["fisherId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, payments)
}

// Reconcile handles POST /fishers/{fisherId}/payments
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req domain.ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, end, err := h.parseRange(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.Fail(w, err)
		return
	}
	paidAt, err := h.parseOptionalDay(req.PaidAt)
	if err != nil {
		response.Fail(w, err)
		return
	}

	actor, _ := middleware.ActorFrom(r.Context())
	payment, err := h.reconciler.Reconcile(r.Context(), service.ReconcileCommand{
		FisherID:    mux.Vars(r)["fisherId"],
		FisherName:  req.FisherName,
		PeriodStart: start,
		PeriodEnd:   end,
		RecordIDs:   req.RecordIDs,
		Rate:        domain.RateSelector{Tier: req.RateTier, Custom: req.CustomAmount},
		PaidAt:      paidAt,
		Notes:       req.Notes,
		Actor:       actor,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.Created(w, payment)
}

// GetPayment handles GET /payments/{paymentId}
func (h *ReconciliationHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.reconciler.GetPayment(r.Context(), mux.Vars(r)["paymentId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, payment)
}

// Integrity handles GET /payments/integrity
func (h *ReconciliationHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.integrity.Sweep(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, report)
}

// ListRecords handles GET /fishers/{fisherId}/records
func (h *ReconciliationHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.reconciler.ListRecords(r.Context(), mux.Vars(r)["fisherId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, records)
}

// GetRecord handles GET /records/{recordId}
func (h *ReconciliationHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.reconciler.GetRecord(r.Context(), mux.Vars(r)["recordId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, record)
}

// PayoutTiers handles GET /payout-tiers
func (h *ReconciliationHandler) PayoutTiers(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.reconciler.PayoutTiers())
}

// ImportRecords handles POST /records/import
func (h *ReconciliationHandler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	var req domain.ImportRecordsRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.reconciler.ImportRecords(r.Context(), req.Documents)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, result)
}

// StartSession handles POST /reconciliations
func (h *ReconciliationHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req domain.StartSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	actor, _ := middleware.ActorFrom(r.Context())
	sess, err := h.workflow.Start(r.Context(), actor, req.FisherID, req.FisherName)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, SessionResponse{Session: sess})
}

// GetSession handles GET /reconciliations/{sessionId}
func (h *ReconciliationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())
	sess, err := h.workflow.Get(r.Context(), actor, mux.Vars(r)["sessionId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, SessionResponse{Session: sess})
}

// SelectPeriod handles PUT /reconciliations/{sessionId}/period
func (h *ReconciliationHandler) SelectPeriod(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectPeriodRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, end, err := h.parseRange(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.Fail(w, err)
		return
	}

	actor, _ := middleware.ActorFrom(r.Context())
	sess, eligible, err := h.workflow.SelectPeriod(r.Context(), actor, mux.Vars(r)["sessionId"], start, end)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, SessionResponse{Session: sess, Eligible: eligible})
}

// SelectRecords handles PUT /reconciliations/{sessionId}/selection
func (h *ReconciliationHandler) SelectRecords(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectRecordsRequest
	if !h.decode(w, r, &req) {
		return
	}

	actor, _ := middleware.ActorFrom(r.Context())
	sess, err := h.workflow.SelectRecords(r.Context(), actor, mux.Vars(r)["sessionId"], req.RecordIDs)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, SessionResponse{Session: sess})
}

// SetRate handles PUT /reconciliations/{sessionId}/rate
func (h *ReconciliationHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req domain.SetRateRequest
	if !h.decode(w, r, &req) {
		return
	}

	paidAt, err := h.parseOptionalDay(req.PaidAt)
	if err != nil {
		response.Fail(w, err)
		return
	}

	actor, _ := middleware.ActorFrom(r.Context())
	rate := domain.RateSelector{Tier: req.RateTier, Custom: req.CustomAmount}
	sess, payout, err := h.workflow.SetRate(r.Context(), actor, mux.Vars(r)["sessionId"], rate, paidAt, req.Notes)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Success(w, SessionResponse{Session: sess, Payout: payout})
}

// CommitSession handles POST /reconciliations/{sessionId}/commit
func (h *ReconciliationHandler) CommitSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFrom(r.Context())
	sess, payment, err := h.workflow.Commit(r.Context(), actor, mux.Vars(r)["sessionId"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.Created(w, SessionResponse{Session: sess, Payment: payment})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *ReconciliationHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", customError.WrapValidation("invalid request body: %v", err))
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", customError.WrapValidation("%v", err))
		return false
	}
	return true
}

func (h *ReconciliationHandler) parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, customError.WrapValidation("period start and end dates are required")
	}
	start, err := utils.ParseDay(startRaw, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, customError.WrapValidation("%v", err)
	}
	end, err := utils.ParseDay(endRaw, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, customError.WrapValidation("%v", err)
	}
	return start, end, nil
}

func (h *ReconciliationHandler) parseOptionalDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := utils.ParseDay(raw, h.loc)
	if err != nil {
		return nil, customError.WrapValidation("%v", err)
	}
	return &day, nil
}
