package importer

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/httpx"
	"bibliobridge/internal/remotecache"
)

type HTTPHandler struct {
	svc *Service
	log zerolog.Logger
}

func NewHTTPHandler(svc *Service, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, log: log}
}

type importRequest struct {
	Handle    int64             `json:"handle" validate:"required,gt=0"`
	Specimens []entity.Specimen `json:"specimens" validate:"omitempty,dive"`
	ConfirmID *int64            `json:"confirm_id,omitempty" validate:"omitempty,gt=0"`
}

type importResponse struct {
	Item   *entity.Entry `json:"item"`
	Report *Report       `json:"report"`
}

// Import handles POST /v1/z3950/import
// @Summary Import a staged remote record
// @Tags z3950
// @Accept json
// @Produce json
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/z3950/import [post]
func (h *HTTPHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", nil)
		return
	}
	if details := httpx.ValidateStruct(req); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid import request", details)
		return
	}

	entry, report, err := h.svc.Import(r.Context(), Request{
		Handle:    req.Handle,
		Specimens: req.Specimens,
		ConfirmID: req.ConfirmID,
	})

	var dup *DuplicateNeedsConfirmationError
	switch {
	case err == nil:
		httpx.JSONCreated(w, r, importResponse{Item: entry, Report: report})
	case errors.Is(err, remotecache.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Remote record not found or expired", nil)
	case errors.As(err, &dup):
		httpx.JSONErrorData(w, r, http.StatusConflict, "DUPLICATE_NEEDS_CONFIRMATION", dup.Message, nil,
			map[string]int64{"existing_id": dup.ExistingID})
	case errors.Is(err, catalog.ErrBarcodeTaken):
		httpx.JSONError(w, r, http.StatusConflict, "BARCODE_TAKEN", err.Error(), nil)
	case errors.Is(err, entity.ErrMissingTitle):
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "INVALID_RECORD", "Staged record has no title", nil)
	default:
		h.log.Error().Err(err).Int64("handle", req.Handle).Msg("import failed")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
