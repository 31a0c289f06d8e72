package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/brainreset"
	"github.com/starford/brainreset/internal/validate"
)

const maxBodyBytes = 1 << 20

// Runner executes one brain reset request.
type Runner interface {
	Run(ctx context.Context, requestID, clientKey string, raw validate.RawRequest) (*brainreset.Result, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc        Runner
	trustProxy bool
}

// NewHandler creates a new Handler. trustProxy lets forwarding headers
// decide the rate-limit key.
func NewHandler(svc Runner, trustProxy bool) *Handler {
	return &Handler{svc: svc, trustProxy: trustProxy}
}

// BrainReset handles POST /api/brain-reset.
//
//	@Summary		Generate a reflection from recent daily notes and save it to Craft
//	@Tags			brain-reset
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BrainResetRequest	true	"Craft link, token and period"
//	@Success		200		{object}	BrainResetResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		ApiKeyAuth
//	@Router			/brain-reset [post]
func (h *Handler) BrainReset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req BrainResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON body"))
		return
	}

	requestID := middleware.GetReqID(r.Context())
	res, err := h.svc.Run(r.Context(), requestID, clientIP(r, h.trustProxy), req)
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("brain reset request failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
		}
		writeJSON(w, status, errorBody(apperr.SafeMessage(err)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
