package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-1"))

	JSONSuccess(w, r, map[string]string{"key": "value"}, map[string]any{"total": 10})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Meta    map[string]any    `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "value", resp.Data["key"])
	assert.Equal(t, "req-1", resp.Meta["request_id"])
	assert.EqualValues(t, 10, resp.Meta["total"])
}

func TestJSONCreated(t *testing.T) {
	w := httptest.NewRecorder()
	JSONCreated(w, httptest.NewRequest(http.MethodPost, "/", nil), map[string]int{"id": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "meta")
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	details := []ErrorDetail{{Field: "handle", Message: "handle is required"}}

	JSONError(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
}

func TestJSONErrorData(t *testing.T) {
	w := httptest.NewRecorder()
	JSONErrorData(w, httptest.NewRequest(http.MethodPost, "/", nil), http.StatusConflict, "DUPLICATE_NEEDS_CONFIRMATION", "confirm", nil,
		map[string]int64{"existing_id": 42})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"existing_id":42`)
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var v struct {
		Handle int64 `json:"handle"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"handle": 3, "extra": true}`))
	assert.Error(t, DecodeJSON(r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"handle": 3}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, int64(3), v.Handle)
}
