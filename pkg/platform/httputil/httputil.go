// Package httputil writes JSON responses and coded errors for every handler
// in the ledger. Keeping the wire shape in one place means the error contract
// ({"error": code, "error_description": message}) cannot drift between slices.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "soulledger/pkg/domain-errors"
)

// maxBodyBytes caps request bodies. Ledger payloads are small; anything
// larger is a client bug or abuse.
const maxBodyBytes = 1 << 20

// errorResponse is the wire form of a failed request.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a coded domain error into its HTTP form. Internal
// and uncoded errors return only the code; their messages stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	WriteJSON(w, dErrors.ToHTTPStatus(err), errorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.Message(err),
	})
}

// Validatable is a request body that checks and normalizes itself after
// decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the request body into T, validates it, and writes
// the error response itself on failure. Callers bail out when ok is false:
//
//	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//		return
//	}
//
// The pointer type is inferred, so call sites name only the request struct.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	var body T
	req := PT(&body)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "invalid request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
