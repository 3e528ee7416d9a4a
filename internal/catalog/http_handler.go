package catalog

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bibliobridge/internal/entity"
	"bibliobridge/internal/httpx"
)

type HTTPHandler struct {
	svc *Service
	log zerolog.Logger
}

func NewHTTPHandler(svc *Service, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, log: log}
}

// GetByISBN handles GET /v1/catalog/items/{isbn}
// @Summary Get catalog entry by ISBN
// @Description Look up the local entry holding an ISBN, non-archived first
// @Tags catalog
// @Produce json
// @Param isbn path string true "ISBN, any punctuation"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /v1/catalog/items/{isbn} [get]
func (h *HTTPHandler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := r.PathValue("isbn")
	if entity.NormalizeISBN(isbn) == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "ISBN is required", nil)
		return
	}

	entry, err := h.svc.GetByISBN(r.Context(), isbn)
	if errors.Is(err, ErrNotFound) {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No catalog entry for this ISBN", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("isbn", isbn).Msg("catalog lookup")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}

	httpx.JSONSuccess(w, r, entry, nil)
}
