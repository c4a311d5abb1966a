package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/adminaddr"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/requestcontext"
)

// Service defines the treasury operations the HTTP layer exposes. Settlement
// stays internal; only the marketplace and staking services call it.
type Service interface {
	Deposit(ctx context.Context, caller, address id.Address, amount uint64) (*models.Account, error)
	Withdraw(ctx context.Context, caller id.Address, amount uint64) (*models.Account, error)
	Freeze(ctx context.Context, caller, address id.Address) (*models.Account, error)
	Unfreeze(ctx context.Context, caller, address id.Address) (*models.Account, error)
	Balance(ctx context.Context, address id.Address) (*models.Account, error)
	PlatformBalance(ctx context.Context) (*models.Account, error)
	EscrowBalance(ctx context.Context) (*models.Account, error)
}

// Handler wires treasury endpoints to the treasury service.
type Handler struct {
	service Service
	admin   id.Address
	logger  *slog.Logger
}

// New constructs a treasury handler. Deposit and freeze routes are restricted
// to the admin wallet.
func New(service Service, admin id.Address, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		admin:   admin,
		logger:  logger,
	}
}

// Register mounts treasury endpoints on the router. Balance reads are public;
// withdrawal requires a caller; deposits and freezes require the treasury
// admin.
func (h *Handler) Register(r chi.Router) {
	r.Route("/treasury", func(r chi.Router) {
		r.Get("/accounts/{address}", h.handleBalance)
		r.Get("/platform", h.handlePlatform)
		r.Get("/escrow", h.handleEscrow)

		r.Group(func(r chi.Router) {
			r.Use(calleraddr.RequireCaller)
			r.Post("/withdraw", h.handleWithdraw)

			r.Group(func(r chi.Router) {
				r.Use(adminaddr.RequireAdminAddress(h.admin, h.logger))
				r.Post("/accounts/{address}/deposit", h.handleDeposit)
				r.Post("/accounts/{address}/freeze", h.handleFreeze)
				r.Post("/accounts/{address}/unfreeze", h.handleUnfreeze)
			})
		})
	})
}

// handleDeposit handles POST /treasury/accounts/{address}/deposit.
func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	address, ok := h.addressFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Deposit(ctx, caller, address, req.Amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "deposit failed",
			"request_id", requestID,
			"address", address,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "funds deposited",
		"request_id", requestID,
		"address", address,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handleWithdraw handles POST /treasury/withdraw.
func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[WithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Withdraw(ctx, caller, req.Amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "withdrawal failed",
			"request_id", requestID,
			"caller", caller,
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "funds withdrawn",
		"request_id", requestID,
		"caller", caller,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handleFreeze handles POST /treasury/accounts/{address}/freeze.
func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	address, ok := h.addressFromURL(w, r)
	if !ok {
		return
	}

	account, err := h.service.Freeze(ctx, caller, address)
	if err != nil {
		h.logger.ErrorContext(ctx, "freeze failed",
			"request_id", requestID,
			"address", address,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account frozen",
		"request_id", requestID,
		"address", address,
	)
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handleUnfreeze handles POST /treasury/accounts/{address}/unfreeze.
func (h *Handler) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	address, ok := h.addressFromURL(w, r)
	if !ok {
		return
	}

	account, err := h.service.Unfreeze(ctx, caller, address)
	if err != nil {
		h.logger.ErrorContext(ctx, "unfreeze failed",
			"request_id", requestID,
			"address", address,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "account unfrozen",
		"request_id", requestID,
		"address", address,
	)
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handleBalance handles GET /treasury/accounts/{address}.
func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	address, ok := h.addressFromURL(w, r)
	if !ok {
		return
	}

	account, err := h.service.Balance(r.Context(), address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handlePlatform handles GET /treasury/platform.
func (h *Handler) handlePlatform(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.PlatformBalance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// handleEscrow handles GET /treasury/escrow.
func (h *Handler) handleEscrow(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.EscrowBalance(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAccount(account))
}

// addressFromURL parses the {address} URL segment, writing the error response
// on failure.
func (h *Handler) addressFromURL(w http.ResponseWriter, r *http.Request) (id.Address, bool) {
	address, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return address, true
}
