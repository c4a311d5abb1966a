// Package calleraddr resolves the calling wallet. Every privileged operation
// is authorized purely by comparing the caller address against stored owner,
// creator, guardian or admin addresses; there is no separate credential.
package calleraddr

import (
	"log/slog"
	"net/http"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/requestcontext"
)

// Header carries the caller's checksummed wallet address.
const Header = "X-Caller-Address"

// CallerAddress parses the X-Caller-Address header into the request context.
// Requests without the header pass through with no caller; handlers for
// privileged routes reject those via RequireCaller.
func CallerAddress(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(Header)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			addr, err := id.ParseAddress(raw)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "malformed caller address",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_input","error_description":"malformed X-Caller-Address header"}`))
				return
			}

			ctx := requestcontext.WithCaller(r.Context(), addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCaller rejects requests that reached a privileged route without a
// parsed caller address.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.Caller(r.Context()).IsNil() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"X-Caller-Address header required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MustCaller returns the caller or a coded error for handlers that resolve
// the caller themselves.
func MustCaller(r *http.Request) (id.Address, error) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "X-Caller-Address header required")
	}
	return caller, nil
}
