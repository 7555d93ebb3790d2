package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sunksun/mekong-fish-payments/internal/middleware"
	"github.com/sunksun/mekong-fish-payments/pkg/response"
)

// NewRouter wires the health checks and the payment-manager API.
func NewRouter(h *ReconciliationHandler, health *HealthHandler, managerRoles []string) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "No route for "+r.Method+" "+r.URL.Path)
	})

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequirePaymentManager(managerRoles))

	api.HandleFunc("/payout-tiers", h.PayoutTiers).Methods(http.MethodGet)

	api.HandleFunc("/fishers/{fisherId}/records", h.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/fishers/{fisherId}/eligible-records", h.EligibleRecords).Methods(http.MethodGet)
	api.HandleFunc("/fishers/{fisherId}/payments", h.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/fishers/{fisherId}/payments", h.Reconcile).Methods(http.MethodPost)

	// registered before {paymentId} so it is not captured as an id
	api.HandleFunc("/payments/integrity", h.Integrity).Methods(http.MethodGet)
	api.HandleFunc("/payments/{paymentId}", h.GetPayment).Methods(http.MethodGet)

	api.HandleFunc("/records/import", h.ImportRecords).Methods(http.MethodPost)
	api.HandleFunc("/records/{recordId}", h.GetRecord).Methods(http.MethodGet)

	api.HandleFunc("/reconciliations", h.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/reconciliations/{sessionId}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/reconciliations/{sessionId}/period", h.SelectPeriod).Methods(http.MethodPut)
	api.HandleFunc("/reconciliations/{sessionId}/selection", h.SelectRecords).Methods(http.MethodPut)
	api.HandleFunc("/reconciliations/{sessionId}/rate", h.SetRate).Methods(http.MethodPut)
	api.HandleFunc("/reconciliations/{sessionId}/commit", h.CommitSession).Methods(http.MethodPost)

	return router
}
