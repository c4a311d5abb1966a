package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/adminaddr"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/requestcontext"
)

// Service defines the marketplace operations the HTTP layer exposes.
type Service interface {
	Purchase(ctx context.Context, buyer id.Address, soulID id.SoulID, payment uint64) (*models.Trade, error)
	CreateFragment(ctx context.Context, caller id.Address, soulID id.SoulID, skillTag string, value uint64, debtor id.Address) (*models.Fragment, error)
	RepayFragment(ctx context.Context, caller id.Address, soulID id.SoulID, index int, payment uint64) (*models.Fragment, error)
	GetFragments(ctx context.Context, soulID id.SoulID) ([]*models.Fragment, error)
	DebtorTotal(ctx context.Context, debtor id.Address) (uint64, error)
	ArchiveToGraveyard(ctx context.Context, caller id.Address, soulID id.SoulID, finalBalance uint64) (*models.GraveyardEntry, error)
	Resurrect(ctx context.Context, caller id.Address, soulID id.SoulID, payment uint64) (*models.GraveyardEntry, error)
	GetGraveyard(ctx context.Context, soulID id.SoulID) (*models.GraveyardEntry, error)
	Stats(ctx context.Context) (*models.Stats, error)
	SetFeeBps(ctx context.Context, caller id.Address, bps uint64) error
	FeeBps() uint64
}

// Handler wires marketplace endpoints to the market service.
type Handler struct {
	service  Service
	feeAdmin id.Address
	logger   *slog.Logger
}

// New constructs a market handler. The fee route is restricted to the fee
// admin wallet.
func New(service Service, feeAdmin id.Address, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		feeAdmin: feeAdmin,
		logger:   logger,
	}
}

// Register adds marketplace endpoints to the router. Reads are public;
// settlements require a parsed caller address; the fee is admin-gated. The
// /souls tree is shared with the registry handler, so routes register flat
// instead of mounting the prefix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/souls/{id}/fragments", h.handleGetFragments)
	r.Get("/souls/{id}/graveyard", h.handleGetGraveyard)
	r.Get("/market/stats", h.handleStats)
	r.Get("/market/debtors/{address}", h.handleDebtorTotal)

	r.Group(func(r chi.Router) {
		r.Use(calleraddr.RequireCaller)
		r.Post("/souls/{id}/purchase", h.handlePurchase)
		r.Post("/souls/{id}/fragments", h.handleCreateFragment)
		r.Post("/souls/{id}/fragments/{index}/repay", h.handleRepayFragment)
		r.Post("/souls/{id}/archive", h.handleArchive)
		r.Post("/souls/{id}/resurrect", h.handleResurrect)

		r.Group(func(r chi.Router) {
			r.Use(adminaddr.RequireAdminAddress(h.feeAdmin, h.logger))
			r.Put("/market/fee", h.handleSetFee)
		})
	})
}

// handlePurchase handles POST /souls/{id}/purchase.
func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	buyer := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PurchaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	trade, err := h.service.Purchase(ctx, buyer, soulID, req.Payment)
	if err != nil {
		h.logger.ErrorContext(ctx, "purchase failed",
			"request_id", requestID,
			"soul_id", soulID,
			"buyer", buyer,
			"payment", req.Payment,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul purchased",
		"request_id", requestID,
		"soul_id", soulID,
		"buyer", buyer,
		"price", trade.Price,
		"fee", trade.Fee,
	)
	httputil.WriteJSON(w, http.StatusOK, FromTrade(trade))
}

// handleCreateFragment handles POST /souls/{id}/fragments.
func (h *Handler) handleCreateFragment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateFragmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	fragment, err := h.service.CreateFragment(ctx, caller, soulID, req.SkillTag, req.Value, req.ParsedDebtor())
	if err != nil {
		h.logger.ErrorContext(ctx, "fragment creation failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fragment created",
		"request_id", requestID,
		"soul_id", soulID,
		"index", fragment.Index,
		"value", fragment.Value,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromFragment(fragment))
}

// handleRepayFragment handles POST /souls/{id}/fragments/{index}/repay.
func (h *Handler) handleRepayFragment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	index, ok := h.indexFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RepayFragmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	fragment, err := h.service.RepayFragment(ctx, caller, soulID, index, req.Payment)
	if err != nil {
		h.logger.ErrorContext(ctx, "fragment repayment failed",
			"request_id", requestID,
			"soul_id", soulID,
			"index", index,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fragment repaid",
		"request_id", requestID,
		"soul_id", soulID,
		"index", index,
		"value", fragment.Value,
	)
	httputil.WriteJSON(w, http.StatusOK, FromFragment(fragment))
}

// handleGetFragments handles GET /souls/{id}/fragments.
func (h *Handler) handleGetFragments(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	fragments, err := h.service.GetFragments(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &FragmentsResponse{SoulID: uint64(soulID), Fragments: make([]*FragmentResponse, len(fragments))}
	for i, fragment := range fragments {
		resp.Fragments[i] = FromFragment(fragment)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleArchive handles POST /souls/{id}/archive.
func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ArchiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.ArchiveToGraveyard(ctx, caller, soulID, req.FinalBalance)
	if err != nil {
		h.logger.ErrorContext(ctx, "archive failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul archived",
		"request_id", requestID,
		"soul_id", soulID,
		"final_balance", entry.FinalBalance,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromGraveyardEntry(entry))
}

// handleResurrect handles POST /souls/{id}/resurrect.
func (h *Handler) handleResurrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResurrectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.Resurrect(ctx, caller, soulID, req.Payment)
	if err != nil {
		h.logger.ErrorContext(ctx, "resurrection failed",
			"request_id", requestID,
			"soul_id", soulID,
			"caller", caller,
			"payment", req.Payment,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "soul resurrected",
		"request_id", requestID,
		"soul_id", soulID,
		"caller", caller,
	)
	httputil.WriteJSON(w, http.StatusOK, FromGraveyardEntry(entry))
}

// handleGetGraveyard handles GET /souls/{id}/graveyard.
func (h *Handler) handleGetGraveyard(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	entry, err := h.service.GetGraveyard(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGraveyardEntry(entry))
}

// handleStats handles GET /market/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStats(stats))
}

// handleDebtorTotal handles GET /market/debtors/{address}.
func (h *Handler) handleDebtorTotal(w http.ResponseWriter, r *http.Request) {
	debtor, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	total, err := h.service.DebtorTotal(r.Context(), debtor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &DebtorResponse{Debtor: debtor.String(), Outstanding: total})
}

// handleSetFee handles PUT /market/fee.
func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[SetFeeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetFeeBps(ctx, caller, req.FeeBps); err != nil {
		h.logger.ErrorContext(ctx, "fee update failed",
			"request_id", requestID,
			"fee_bps", req.FeeBps,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "marketplace fee updated",
		"request_id", requestID,
		"fee_bps", req.FeeBps,
	)
	httputil.WriteJSON(w, http.StatusOK, &FeeResponse{FeeBps: h.service.FeeBps()})
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

// indexFromURL parses the {index} URL segment, writing the error response on
// failure.
func (h *Handler) indexFromURL(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "fragment index must be a non-negative number"))
		return 0, false
	}
	return index, true
}
