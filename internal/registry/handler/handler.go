package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer exposes.
type Service interface {
	Mint(ctx context.Context, agent, creator id.Address, contentURI string, contentHash id.ContentHash) (*models.Soul, error)
	List(ctx context.Context, caller id.Address, soulID id.SoulID, price uint64, reason string) (*models.Soul, error)
	Delist(ctx context.Context, caller id.Address, soulID id.SoulID) (*models.Soul, error)
	RecordDeath(ctx context.Context, caller id.Address, soulID id.SoulID, finalBalance uint64, cause string) (*models.Soul, error)
	Rebirth(ctx context.Context, caller id.Address, oldSoulID id.SoulID, newAgent id.Address, newContentURI string, newContentHash id.ContentHash) (*models.Soul, error)
	Merge(ctx context.Context, caller id.Address, soulA, soulB id.SoulID, mergedAgent id.Address, mergedContentURI string, mergedContentHash id.ContentHash) (*models.Soul, error)
	Get(ctx context.Context, soulID id.SoulID) (*models.Soul, error)
	Lineage(ctx context.Context, soulID id.SoulID) ([]id.SoulID, error)
	History(ctx context.Context, soulID id.SoulID) ([]*models.Soul, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register adds registry endpoints to the router. Mutating routes require a
// parsed caller address; reads are public. The /souls tree is shared with the
// marketplace handler, so routes register flat instead of mounting the
// prefix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/souls/{id}", h.handleGet)
	r.Get("/souls/{id}/lineage", h.handleLineage)
	r.Get("/souls/{id}/history", h.handleHistory)
	r.Get("/registry/stats", h.handleStats)

	r.Group(func(r chi.Router) {
		r.Use(calleraddr.RequireCaller)
		r.Post("/souls", h.handleMint)
		r.Post("/souls/merge", h.handleMerge)
		r.Post("/souls/{id}/list", h.handleList)
		r.Post("/souls/{id}/delist", h.handleDelist)
		r.Post("/souls/{id}/death", h.handleDeath)
		r.Post("/souls/{id}/rebirth", h.handleRebirth)
	})
}

// handleMint handles POST /souls.
func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	soul, err := h.service.Mint(ctx, req.ParsedAgent(), caller, req.ContentURI, req.ParsedContentHash())
	if err != nil {
		h.logger.ErrorContext(ctx, "mint failed",
			"request_id", requestID,
			"agent", req.Agent,
			"creator", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul minted",
		"request_id", requestID,
		"soul_id", soul.ID,
		"agent", soul.Agent,
		"creator", caller,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSoul(soul))
}

// handleGet handles GET /souls/{id}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	soul, err := h.service.Get(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSoul(soul))
}

// handleLineage handles GET /souls/{id}/lineage.
func (h *Handler) handleLineage(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	children, err := h.service.Lineage(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &LineageResponse{SoulID: uint64(soulID), Children: make([]uint64, len(children))}
	for i, child := range children {
		resp.Children[i] = uint64(child)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleHistory handles GET /souls/{id}/history.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	ancestors, err := h.service.History(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &HistoryResponse{SoulID: uint64(soulID), Ancestors: make([]*SoulResponse, len(ancestors))}
	for i, ancestor := range ancestors {
		resp.Ancestors[i] = FromSoul(ancestor)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleList handles POST /souls/{id}/list.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ListRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	soul, err := h.service.List(ctx, caller, soulID, req.Price, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul listed",
		"request_id", requestID,
		"soul_id", soulID,
		"price", req.Price,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSoul(soul))
}

// handleDelist handles POST /souls/{id}/delist.
func (h *Handler) handleDelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	soul, err := h.service.Delist(ctx, caller, soulID)
	if err != nil {
		h.logger.ErrorContext(ctx, "delisting failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul delisted",
		"request_id", requestID,
		"soul_id", soulID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSoul(soul))
}

// handleDeath handles POST /souls/{id}/death.
func (h *Handler) handleDeath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DeathRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	soul, err := h.service.RecordDeath(ctx, caller, soulID, req.FinalBalance, req.Cause)
	if err != nil {
		h.logger.ErrorContext(ctx, "death recording failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul death recorded",
		"request_id", requestID,
		"soul_id", soulID,
		"cause", req.Cause,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSoul(soul))
}

// handleRebirth handles POST /souls/{id}/rebirth.
func (h *Handler) handleRebirth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RebirthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	successor, err := h.service.Rebirth(ctx, caller, soulID, req.ParsedAgent(), req.NewContentURI, req.ParsedContentHash())
	if err != nil {
		h.logger.ErrorContext(ctx, "rebirth failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul reborn",
		"request_id", requestID,
		"old_soul_id", soulID,
		"new_soul_id", successor.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSoul(successor))
}

// handleMerge handles POST /souls/merge.
func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	merged, err := h.service.Merge(ctx, caller,
		id.SoulID(req.SoulA), id.SoulID(req.SoulB),
		req.ParsedAgent(), req.MergedContentURI, req.ParsedContentHash(),
	)
	if err != nil {
		h.logger.ErrorContext(ctx, "merge failed",
			"request_id", requestID,
			"soul_a", req.SoulA,
			"soul_b", req.SoulB,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "souls merged",
		"request_id", requestID,
		"soul_a", req.SoulA,
		"soul_b", req.SoulB,
		"merged_soul_id", merged.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSoul(merged))
}

// handleStats handles GET /registry/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStats(stats))
}

// soulIDFromURL parses the {id} URL segment, writing the error response on
// failure.
func (h *Handler) soulIDFromURL(w http.ResponseWriter, r *http.Request) (id.SoulID, bool) {
	soulID, err := id.ParseSoulID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return soulID, true
}
