package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/httputil"
	"soulledger/pkg/platform/middleware/calleraddr"
	"soulledger/pkg/requestcontext"
)

// Service defines the backup and recovery operations the HTTP layer exposes.
type Service interface {
	CreateBackup(ctx context.Context, caller id.Address, soulID id.SoulID, contentURI string, contentHash id.ContentHash, backupType models.BackupType, fingerprint string, earnings uint64) (*models.Backup, error)
	RecordCrossChainBackup(ctx context.Context, caller id.Address, soulID id.SoulID, targetChainID uint64, contentURI string, contentHash id.ContentHash) (*models.CrossChainBackup, error)
	RequestRecovery(ctx context.Context, caller id.Address, soulID id.SoulID, backupIndex int) (*models.RecoveryRequest, error)
	ApproveRecovery(ctx context.Context, caller id.Address, requestID id.RecoveryID) (*models.RecoveryRequest, error)
	ExecuteRecovery(ctx context.Context, caller id.Address, requestID id.RecoveryID) (*models.RecoveryRequest, error)
	EmergencyRecovery(ctx context.Context, caller id.Address, soulID id.SoulID, backupIndex int) (*models.RecoveryRequest, error)
	AddGuardian(ctx context.Context, caller id.Address, soulID id.SoulID, guardian id.Address) (*models.Guardians, error)
	RemoveGuardian(ctx context.Context, caller id.Address, soulID id.SoulID, guardian id.Address) (*models.Guardians, error)
	SetGuardianThreshold(ctx context.Context, caller id.Address, soulID id.SoulID, n int) (*models.Guardians, error)
	SetBackupper(ctx context.Context, caller id.Address, soulID id.SoulID, address id.Address, allowed bool) (*models.Guardians, error)
	GetBackups(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error)
	ValidBackups(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error)
	GetCrossChain(ctx context.Context, soulID id.SoulID) ([]*models.CrossChainBackup, error)
	GetRecovery(ctx context.Context, requestID id.RecoveryID) (*models.RecoveryRequest, error)
	GetGuardians(ctx context.Context, soulID id.SoulID) (*models.Guardians, error)
}

// Handler wires backup and recovery endpoints to the backup service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register adds backup and recovery endpoints to the router. Reads are
// public; every write requires a parsed caller address, with ownership and
// guardian checks enforced by the service. The /souls tree is shared with
// the registry handler, so routes register flat instead of mounting the
// prefix.
func (h *Handler) Register(r chi.Router) {
	r.Get("/souls/{id}/backups", h.handleGetBackups)
	r.Get("/souls/{id}/backups/crosschain", h.handleGetCrossChain)
	r.Get("/souls/{id}/guardians", h.handleGetGuardians)
	r.Get("/recovery/{id}", h.handleGetRecovery)

	r.Group(func(r chi.Router) {
		r.Use(calleraddr.RequireCaller)
		r.Post("/souls/{id}/backups", h.handleCreateBackup)
		r.Post("/souls/{id}/backups/crosschain", h.handleCrossChain)
		r.Post("/souls/{id}/recovery", h.handleRequestRecovery)
		r.Post("/souls/{id}/recovery/emergency", h.handleEmergencyRecovery)
		r.Post("/recovery/{id}/approve", h.handleApproveRecovery)
		r.Post("/recovery/{id}/execute", h.handleExecuteRecovery)
		r.Post("/souls/{id}/guardians", h.handleAddGuardian)
		r.Delete("/souls/{id}/guardians/{address}", h.handleRemoveGuardian)
		r.Put("/souls/{id}/guardians/threshold", h.handleSetThreshold)
		r.Post("/souls/{id}/backuppers", h.handleSetBackupper)
	})
}

// handleCreateBackup handles POST /souls/{id}/backups.
func (h *Handler) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateBackupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	backup, err := h.service.CreateBackup(ctx, caller, soulID, req.ContentURI, req.ParsedContentHash(),
		req.ParsedType(), req.CapabilitiesFingerprint, req.Earnings)
	if err != nil {
		h.logger.ErrorContext(ctx, "backup creation failed",
			"request_id", requestID,
			"soul_id", soulID,
			"type", req.Type,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "backup created",
		"request_id", requestID,
		"soul_id", soulID,
		"index", backup.Index,
		"type", backup.Type,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromBackup(backup))
}

// handleGetBackups handles GET /souls/{id}/backups. The valid=true query
// narrows the history to recovery candidates.
func (h *Handler) handleGetBackups(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	list := h.service.GetBackups
	if r.URL.Query().Get("valid") == "true" {
		list = h.service.ValidBackups
	}
	backups, err := list(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &BackupsResponse{SoulID: uint64(soulID), Backups: make([]*BackupResponse, len(backups))}
	for i, backup := range backups {
		resp.Backups[i] = FromBackup(backup)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleCrossChain handles POST /souls/{id}/backups/crosschain.
func (h *Handler) handleCrossChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CrossChainRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.RecordCrossChainBackup(ctx, caller, soulID, req.TargetChainID, req.ContentURI, req.ParsedContentHash())
	if err != nil {
		h.logger.ErrorContext(ctx, "cross-chain backup failed",
			"request_id", requestID,
			"soul_id", soulID,
			"target_chain_id", req.TargetChainID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cross-chain backup recorded",
		"request_id", requestID,
		"soul_id", soulID,
		"index", record.Index,
		"target_chain_id", record.TargetChainID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCrossChain(record))
}

// handleGetCrossChain handles GET /souls/{id}/backups/crosschain.
func (h *Handler) handleGetCrossChain(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	records, err := h.service.GetCrossChain(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := &CrossChainsResponse{SoulID: uint64(soulID), Records: make([]*CrossChainResponse, len(records))}
	for i, record := range records {
		resp.Records[i] = FromCrossChain(record)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleRequestRecovery handles POST /souls/{id}/recovery.
func (h *Handler) handleRequestRecovery(w http.ResponseWriter, r *http.Request) {
	h.startRecovery(w, r, h.service.RequestRecovery, "recovery requested")
}

// handleEmergencyRecovery handles POST /souls/{id}/recovery/emergency.
func (h *Handler) handleEmergencyRecovery(w http.ResponseWriter, r *http.Request) {
	h.startRecovery(w, r, h.service.EmergencyRecovery, "emergency recovery executed")
}

func (h *Handler) startRecovery(w http.ResponseWriter, r *http.Request, start func(context.Context, id.Address, id.SoulID, int) (*models.RecoveryRequest, error), message string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecoveryRequestBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	request, err := start(ctx, caller, soulID, req.BackupIndex)
	if err != nil {
		h.logger.ErrorContext(ctx, "recovery start failed",
			"request_id", requestID,
			"soul_id", soulID,
			"backup_index", req.BackupIndex,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, message,
		"request_id", requestID,
		"soul_id", soulID,
		"recovery_id", request.ID,
		"backup_index", request.BackupIndex,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRecovery(request))
}

// handleApproveRecovery handles POST /recovery/{id}/approve.
func (h *Handler) handleApproveRecovery(w http.ResponseWriter, r *http.Request) {
	h.advanceRecovery(w, r, h.service.ApproveRecovery, "recovery approval recorded")
}

// handleExecuteRecovery handles POST /recovery/{id}/execute.
func (h *Handler) handleExecuteRecovery(w http.ResponseWriter, r *http.Request) {
	h.advanceRecovery(w, r, h.service.ExecuteRecovery, "recovery executed")
}

func (h *Handler) advanceRecovery(w http.ResponseWriter, r *http.Request, advance func(context.Context, id.Address, id.RecoveryID) (*models.RecoveryRequest, error), message string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	recoveryID, ok := h.recoveryIDFromURL(w, r)
	if !ok {
		return
	}

	request, err := advance(ctx, caller, recoveryID)
	if err != nil {
		h.logger.ErrorContext(ctx, "recovery step failed",
			"request_id", requestID,
			"recovery_id", recoveryID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, message,
		"request_id", requestID,
		"recovery_id", recoveryID,
		"soul_id", request.SoulID,
		"approved", request.Approved,
		"executed", request.Executed,
	)
	httputil.WriteJSON(w, http.StatusOK, FromRecovery(request))
}

// handleGetRecovery handles GET /recovery/{id}.
func (h *Handler) handleGetRecovery(w http.ResponseWriter, r *http.Request) {
	recoveryID, ok := h.recoveryIDFromURL(w, r)
	if !ok {
		return
	}

	request, err := h.service.GetRecovery(r.Context(), recoveryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecovery(request))
}

// handleAddGuardian handles POST /souls/{id}/guardians.
func (h *Handler) handleAddGuardian(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GuardianRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	set, err := h.service.AddGuardian(ctx, caller, soulID, req.ParsedGuardian())
	if err != nil {
		h.logger.ErrorContext(ctx, "guardian addition failed",
			"request_id", requestID,
			"soul_id", soulID,
			"guardian", req.Guardian,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "guardian added",
		"request_id", requestID,
		"soul_id", soulID,
		"guardian", req.Guardian,
		"guardians", len(set.Guardians),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromGuardians(set))
}

// handleRemoveGuardian handles DELETE /souls/{id}/guardians/{address}.
func (h *Handler) handleRemoveGuardian(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	guardian, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	set, err := h.service.RemoveGuardian(ctx, caller, soulID, guardian)
	if err != nil {
		h.logger.ErrorContext(ctx, "guardian removal failed",
			"request_id", requestID,
			"soul_id", soulID,
			"guardian", guardian,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "guardian removed",
		"request_id", requestID,
		"soul_id", soulID,
		"guardian", guardian,
		"guardians", len(set.Guardians),
	)
	httputil.WriteJSON(w, http.StatusOK, FromGuardians(set))
}

// handleSetThreshold handles PUT /souls/{id}/guardians/threshold.
func (h *Handler) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ThresholdRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	set, err := h.service.SetGuardianThreshold(ctx, caller, soulID, req.Threshold)
	if err != nil {
		h.logger.ErrorContext(ctx, "threshold update failed",
			"request_id", requestID,
			"soul_id", soulID,
			"threshold", req.Threshold,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "guardian threshold updated",
		"request_id", requestID,
		"soul_id", soulID,
		"threshold", set.Threshold,
	)
	httputil.WriteJSON(w, http.StatusOK, FromGuardians(set))
}

// handleSetBackupper handles POST /souls/{id}/backuppers.
func (h *Handler) handleSetBackupper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BackupperRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	set, err := h.service.SetBackupper(ctx, caller, soulID, req.ParsedAddress(), req.Allowed)
	if err != nil {
		h.logger.ErrorContext(ctx, "backupper update failed",
			"request_id", requestID,
			"soul_id", soulID,
			"address", req.Address,
			"allowed", req.Allowed,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "backupper updated",
		"request_id", requestID,
		"soul_id", soulID,
		"address", req.Address,
		"allowed", req.Allowed,
	)
	httputil.WriteJSON(w, http.StatusOK, FromGuardians(set))
}

// handleGetGuardians handles GET /souls/{id}/guardians.
func (h *Handler) handleGetGuardians(w http.ResponseWriter, r *http.Request) {
	soulID, ok := h.soulIDFromURL(w, r)
	if !ok {
		return
	}

	set, err := h.service.GetGuardians(r.Context(), soulID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGuardians(set))
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

// recoveryIDFromURL parses the {id} URL segment, writing the error response
// on failure.
func (h *Handler) recoveryIDFromURL(w http.ResponseWriter, r *http.Request) (id.RecoveryID, bool) {
	recoveryID, err := id.ParseRecoveryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return recoveryID, true
}
