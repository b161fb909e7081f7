package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/campusworks/campusworks-backend/api/responses"
	"github.com/campusworks/campusworks-backend/internal/orders"
	pkgerrors "github.com/campusworks/campusworks-backend/pkg/errors"
	"github.com/campusworks/campusworks-backend/pkg/logger"
)

const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"
)

type contextKey string

const ctxActor contextKey = "actor"

// Identity trusts the gateway-injected identity headers and places the
// resulting actor in the request context. Requests without a valid identity
// are rejected before reaching any handler.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			rawID := r.Header.Get(userIDHeader)
			if rawID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
				return
			}
			userID, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user id"))
				return
			}

			role, ok := orders.ParseRole(r.Header.Get(userRoleHeader))
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role"))
				return
			}

			actor := orders.Actor{UserID: userID, Role: role}
			ctx = context.WithValue(ctx, ctxActor, actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (orders.Actor, bool) {
	if ctx == nil {
		return orders.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(orders.Actor)
	return actor, ok
}
