package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/adminaddr"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/requestcontext"
)

// Service defines the prediction market operations the HTTP layer exposes.
type Service interface {
	PlaceStake(ctx context.Context, staker id.Address, soulID id.SoulID, kind models.Kind, amount uint64, duration time.Duration) (*models.Stake, error)
	Resolve(ctx context.Context, caller id.Address, stakeID id.StakeID) (*models.Stake, error)
	GetStake(ctx context.Context, stakeID id.StakeID) (*models.Stake, error)
	StakesBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Stake, error)
	Pools(ctx context.Context, soulID id.SoulID) (*models.Pool, error)
	SurvivalOdds(ctx context.Context, soulID id.SoulID) (uint64, error)
	SetPlatformFeeBps(ctx context.Context, caller id.Address, bps uint64) error
	PlatformFeeBps() uint64
}

// Handler wires prediction market endpoints to the staking service.
type Handler struct {
	service  Service
	feeAdmin id.Address
	logger   *slog.Logger
}

// New constructs a staking handler. The fee route is restricted to the fee
// admin wallet.
func New(service Service, feeAdmin id.Address, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		feeAdmin: feeAdmin,
		logger:   logger,
	}
}

// Register adds prediction market endpoints to the router. Reads are public;
// placements and resolutions require a parsed caller address; the fee is
// admin-gated. The /souls tree is shared with the registry handler, so
// routes register flat instead of mounting the prefix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/souls/{id}/stakes", h.handleStakesBySoul)
	r.Get("/souls/{id}/pools", h.handlePools)
	r.Get("/souls/{id}/odds", h.handleOdds)
	r.Get("/stakes/{id}", h.handleGetStake)

	r.Group(func(r chi.Router) {
		r.Use(calleraddr.RequireCaller)
		r.Post("/souls/{id}/stakes", h.handlePlaceStake)
		r.Post("/stakes/{id}/resolve", h.handleResolve)

		r.Group(func(r chi.Router) {
			r.Use(adminaddr.RequireAdminAddress(h.feeAdmin, h.logger))
			r.Put("/staking/fee", h.handleSetFee)
		})
	})
}

// handlePlaceStake handles POST /souls/{id}/stakes.
func (h *Handler) handlePlaceStake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	staker := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PlaceStakeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	stake, err := h.service.PlaceStake(ctx, staker, soulID, req.ParsedKind(), req.Amount, req.Duration())
	if err != nil {
		h.logger.ErrorContext(ctx, "stake placement failed",
			"request_id", requestID,
			"soul_id", soulID,
			"staker", staker,
			"kind", req.Kind,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stake placed",
		"request_id", requestID,
		"soul_id", soulID,
		"stake_id", stake.ID,
		"kind", stake.Kind,
		"amount", stake.Amount,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromStake(stake))
}

// handleResolve handles POST /stakes/{id}/resolve.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	stakeID, ok := h.stakeIDFromURL(w, r)
	if !ok {
		return
	}

	stake, err := h.service.Resolve(ctx, caller, stakeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "stake resolution failed",
			"request_id", requestID,
			"stake_id", stakeID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "stake resolved",
		"request_id", requestID,
		"stake_id", stakeID,
		"soul_id", stake.SoulID,
		"won", stake.Won,
		"payout", stake.Payout,
	)
	httputil.WriteJSON(w, http.StatusOK, FromStake(stake))
}

// handleGetStake handles GET /stakes/{id}.
func (h *Handler) handleGetStake(w http.ResponseWriter, r *http.Request) {
	stakeID, ok := h.stakeIDFromURL(w, r)
	if !ok {
		return
	}

	stake, err := h.service.GetStake(r.Context(), stakeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStake(stake))
}

// handleStakesBySoul handles GET /souls/{id}/stakes.
func (h *Handler) handleStakesBySoul(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	stakes, err := h.service.StakesBySoul(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &StakesResponse{SoulID: uint64(soulID), Stakes: make([]*StakeResponse, len(stakes))}
	for i, stake := range stakes {
		resp.Stakes[i] = FromStake(stake)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handlePools handles GET /souls/{id}/pools.
func (h *Handler) handlePools(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	pool, err := h.service.Pools(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPool(pool))
}

// handleOdds handles GET /souls/{id}/odds.
func (h *Handler) handleOdds(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	odds, err := h.service.SurvivalOdds(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &OddsResponse{SoulID: uint64(soulID), SurvivalOdds: odds})
}

// handleSetFee handles PUT /staking/fee.
func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[SetFeeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetPlatformFeeBps(ctx, caller, req.FeeBps); err != nil {
		h.logger.ErrorContext(ctx, "fee update failed",
			"request_id", requestID,
			"fee_bps", req.FeeBps,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "staking fee updated",
		"request_id", requestID,
		"fee_bps", req.FeeBps,
	)
	httputil.WriteJSON(w, http.StatusOK, &FeeResponse{FeeBps: h.service.PlatformFeeBps()})
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

// stakeIDFromURL parses the {id} URL segment, writing the error response on
// failure.
func (h *Handler) stakeIDFromURL(w http.ResponseWriter, r *http.Request) (id.StakeID, bool) {
	stakeID, err := id.ParseStakeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return stakeID, true
}
