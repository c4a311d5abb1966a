// Package httptransport assembles the HTTP surface: the middleware chain,
// health probes, the Prometheus endpoint, and the versioned API tree the
// domain handlers register onto. Business logic stays in the services; this
// package only wires.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soulledger/internal/platform/metrics"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/platform/middleware/metadata"
	"soulledger/pkg/platform/middleware/request"
	"soulledger/pkg/platform/middleware/requesttime"
	"soulledger/pkg/platform/middleware/tracing"
	"soulledger/pkg/platform/middleware/version"
)

const requestTimeout = 30 * time.Second

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router wires together. Handlers register in
// order onto the shared /v1 tree; nil handlers are skipped so a deployment
// can run a subset of the ledger.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Registry Registrar
	Market   Registrar
	Staking  Registrar
	Treasury Registrar
	Backup   Registrar

	// Ready reports whether backing stores are reachable. Nil means always
	// ready (memory mode).
	Ready func(ctx context.Context) error
}

// NewRouter builds the full HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(tracing.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(request.Latency(deps.Metrics))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(deps.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(version.ExtractVersion(id.APIVersionV1))
		v1.Use(request.Timeout(requestTimeout))
		v1.Use(request.ContentTypeJSON)
		v1.Use(calleraddr.CallerAddress(deps.Logger))

		for _, h := range []Registrar{deps.Registry, deps.Market, deps.Staking, deps.Treasury, deps.Backup} {
			if h != nil {
				h.Register(v1)
			}
		}
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReadyz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
