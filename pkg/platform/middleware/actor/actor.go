// Package actor reads the authenticated actor forwarded by the upstream gateway.
// Token verification happens before requests reach this service; the gateway
// forwards the verified subject and role as headers.
package actor

import (
	"log/slog"
	"net/http"

	id "trustlane/pkg/domain"
	dErrors "trustlane/pkg/domain-errors"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// RequireActor rejects requests without a well-formed actor and stores the
// actor in context otherwise.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, err := id.ParseUserID(r.Header.Get(HeaderActorID))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - missing actor",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "actor identity required"))
				return
			}
			role, err := id.ParseRole(r.Header.Get(HeaderActorRole))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid role",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "actor role required"))
				return
			}

			ctx = requestcontext.WithActor(ctx, id.Actor{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only actors holding role. Place after RequireActor.
func RequireRole(role id.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requestcontext.Actor(r.Context()).Is(role) {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeForbidden, "requires %s role", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
