package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "rehearsal_scheduler/internal/lib/api/response"
	"rehearsal_scheduler/internal/lib/jwt"

	"github.com/go-chi/render"
)

type ctxKey struct{}

// New rejects requests without a valid bearer token and stores the user id
// in the request context. Token verification is signature+expiry only; no
// storage lookup happens here.
func New(log *slog.Logger, tokenSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("not authorized"))

				return
			}

			userID, err := jwt.ParseToken(token, tokenSecret)
			if err != nil {
				log.Warn("invalid bearer token")

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("not authorized"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID stores the authenticated user id in the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id placed by the middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}
