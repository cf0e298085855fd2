package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/constructai-backend/api/responses"
	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
)

const (
	userIDHeader    = "X-User-Id"
	maxUserIDLength = 128
)

// Identity reads the caller id asserted by the upstream gateway. Requests
// without one are rejected with 401; authentication itself happens upstream.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userIDHeader))
			if userID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing caller identity"))
				return
			}
			if len(userID) > maxUserIDLength {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid caller identity"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
