// Package middleware resolves the calling operator from gateway headers.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sunksun/mekong-fish-payments/internal/domain"
	"github.com/sunksun/mekong-fish-payments/pkg/response"
)

type ctxKey string

const actorCtxKey ctxKey = "actor"

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// WithActor stores the operator in ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFrom returns the operator stored by RequirePaymentManager.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey).(domain.Actor)
	return actor, ok
}

// RequirePaymentManager rejects requests whose actor headers are missing or
// whose role is not one of roles.
func RequirePaymentManager(roles []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Actor{
				ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
				Name: strings.TrimSpace(r.Header.Get(HeaderActorName)),
				Role: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))),
			}
			if actor.ID == "" || !allowed[actor.Role] {
				response.Forbidden(w, "payment management requires a payment-manager role")
				return
			}
			if actor.Name == "" {
				actor.Name = actor.ID
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
