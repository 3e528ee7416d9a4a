package search

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"bibliobridge/internal/httpx"
	"bibliobridge/internal/z3950"
)

type HTTPHandler struct {
	svc *Service
	log zerolog.Logger
}

func NewHTTPHandler(svc *Service, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, log: log}
}

// Search handles GET /v1/z3950/search
// @Summary Search remote catalogs
// @Description Query every active Z39.50 server and stage the results for import
// @Tags z3950
// @Produce json
// @Param isbn query string false "ISBN"
// @Param issn query string false "ISSN"
// @Param title query string false "Title words"
// @Param author query string false "Author"
// @Param keywords query string false "Subject keywords"
// @Param pqf query string false "Raw PQF query, overrides the other terms"
// @Param server query int false "Search only this server"
// @Param limit query int false "Maximum results"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 503 {object} httpx.ErrorResponse
// @Router /v1/z3950/search [get]
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := Request{
		Query: z3950.Query{
			ISBN:     q.Get("isbn"),
			ISSN:     q.Get("issn"),
			Title:    q.Get("title"),
			Author:   q.Get("author"),
			Keywords: q.Get("keywords"),
		},
		PQF: q.Get("pqf"),
	}

	var details []httpx.ErrorDetail
	if v := q.Get("server"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			details = append(details, httpx.ErrorDetail{Field: "server", Message: "must be a positive integer"})
		}
		req.ServerID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			details = append(details, httpx.ErrorDetail{Field: "limit", Message: "must be a positive integer"})
		}
		req.MaxResults = n
	}
	if details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid search parameters", details)
		return
	}

	res, err := h.svc.Search(r.Context(), req)
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, res, map[string]any{"total": res.Total, "source": res.Source})
	case errors.Is(err, z3950.ErrEmptyQuery):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "At least one search term is required", nil)
	case errors.Is(err, ErrNoActiveServers):
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "Z3950_NOT_CONFIGURED", "No active Z39.50 server", nil)
	default:
		h.log.Error().Err(err).Msg("z3950 search failed")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

type serverView struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Databases []string `json:"databases"`
	Syntax    string   `json:"syntax"`
}

// Servers handles GET /v1/z3950/servers
// @Summary List active Z39.50 servers
// @Tags z3950
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/z3950/servers [get]
func (h *HTTPHandler) Servers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.svc.Servers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list z3950 servers")
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}

	out := make([]serverView, 0, len(servers))
	for _, s := range servers {
		t := s.Target()
		out = append(out, serverView{
			ID:        s.ID,
			Name:      s.Name,
			Address:   t.Address,
			Databases: s.Databases,
			Syntax:    s.Syntax.String(),
		})
	}
	httpx.JSONSuccess(w, r, out, nil)
}
