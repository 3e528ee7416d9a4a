// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bibliobridge/internal/marc"
	"bibliobridge/internal/remotecache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BookLeader is a MARC21 leader for a printed monograph.
const BookLeader = "00000nam a2200000   4500"

// NewCache returns a remote cache backed by an in-process Redis that is shut
// down with the test.
func NewCache(t testing.TB) (*remotecache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return remotecache.New(remotecache.NewRedisStore(client), time.Hour, zerolog.Nop()), mr
}

// Field builds a data field from "a..." style strings, the first byte being
// the subfield code.
func Field(tag string, subs ...string) marc.DataField {
	f := marc.DataField{Tag: tag, Ind1: ' ', Ind2: ' '}
	for _, s := range subs {
		f.Subfields = append(f.Subfields, marc.Subfield{Code: s[0], Value: s[1:]})
	}
	return f
}

// EncodeBook frames a book record holding fields.
func EncodeBook(t testing.TB, fields ...marc.DataField) []byte {
	t.Helper()
	raw, err := marc.Encode(&marc.Record{Leader: BookLeader, Fields: fields})
	require.NoError(t, err)
	return raw
}

// NewRequest creates a request with body encoded as JSON.
func NewRequest(method, path string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// RecordResponse is a decoded envelope response.
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]any
}

func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]any
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &bodyMap)
	}
	return RecordResponse{Code: result.StatusCode, Header: result.Header, Body: bodyMap}
}

// ErrorCode returns error.code from an error envelope, or "".
func (r RecordResponse) ErrorCode() string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}
