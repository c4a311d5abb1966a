package adminaddr

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	id "soulledger/pkg/domain"
	"soulledger/pkg/requestcontext"
)

// RequireAdminAddress gates a route group on the caller being the configured
// admin wallet. Both sides are canonical checksummed addresses, so equality
// is a byte comparison; constant-time to avoid leaking prefix matches.
func RequireAdminAddress(admin id.Address, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Caller(ctx)
			if admin.IsNil() || subtle.ConstantTimeCompare([]byte(caller), []byte(admin)) != 1 {
				logger.WarnContext(ctx, "admin address mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin address required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
