package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avvvet/pases-service/internal/pasesvc/export"
	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/avvvet/pases-service/internal/pasesvc/service"
	"github.com/avvvet/pases-service/internal/pasesvc/store"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type listBody struct {
	Ok    bool                `json:"ok"`
	Data  []models.PassRecord `json:"data"`
	Error string              `json:"error"`
}

func newRouter(backend store.Backend) http.Handler {
	h := NewHandler(service.NewPassService(backend, nil))
	r := chi.NewRouter()
	h.SetRoutes(r)
	return r
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	s, err := store.NewXlsxStore(filepath.Join(t.TempDir(), store.XlsxFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return newRouter(s)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) listBody {
	t.Helper()
	var body listBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestListEmpty(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/api/pases", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"data":[]}`, rr.Body.String())
}

func TestCreateThenList(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/pases", `{"para":"Ana","pases":"2","id":"r-1","link":"https://x/1","user":"ops"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/pases", `{"para":"Luis","pases":1,"id":"r-2","link":"https://x/2"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/pases", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.True(t, body.Ok)
	require.Len(t, body.Data, 2)

	assert.Equal(t, "r-2", body.Data[0].ID)
	assert.Equal(t, "Luis", body.Data[0].Para)
	assert.Equal(t, "", body.Data[0].User)
	assert.Equal(t, "r-1", body.Data[1].ID)
	assert.Equal(t, 2, body.Data[1].Pases)
	assert.Equal(t, "ops", body.Data[1].User)
	assert.Greater(t, body.Data[0].Timestamp, body.Data[1].Timestamp)
}

func TestCreateBadRequest(t *testing.T) {
	srv := newTestServer(t)

	bodies := []string{
		`{"para":"Ana","pases":0,"id":"r","link":"l"}`,
		`{"para":"Ana","pases":-3,"id":"r","link":"l"}`,
		`{"para":"Ana","pases":"abc","id":"r","link":"l"}`,
		`{"pases":1,"id":"r","link":"l"}`,
		`{"para":"Ana","pases":1,"id":"r"}`,
		`{"para":"Ana","pases":1,"link":"l"}`,
		`{"para":`,
		``,
		`[]`,
		`{"para":"Ana","pases":1,"id":"r","link":"l"} xyz`,
		`{"para":"Ana","pases":1,"id":"r","link":"l"}}`,
		`{"para":"Ana","pases":1,"id":"r","link":"l"}{"para":"Bob","pases":1,"id":"s","link":"l"}`,
		`{"para":"Ana","pases":1,"id":"r","link":"` + strings.Repeat("l", models.MaxTextLen+1) + `"}`,
		`{"para":"a\u0001b","pases":1,"id":"r","link":"l"}`,
	}
	for _, b := range bodies {
		rr := do(t, srv, http.MethodPost, "/api/pases", b)
		assert.Equal(t, http.StatusBadRequest, rr.Code, b)
		assert.JSONEq(t, `{"ok":false,"error":"bad_request"}`, rr.Body.String(), b)
	}

	rr := do(t, srv, http.MethodGet, "/api/pases", "")
	assert.JSONEq(t, `{"ok":true,"data":[]}`, rr.Body.String())
}

func TestCreateAllowsTrailingWhitespace(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/pases", "{\"para\":\"Ana\",\"pases\":1,\"id\":\"r\",\"link\":\"l\"}\n \t")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestUnknownAPIRoute(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/nope"},
		{http.MethodGet, "/api/pases/1"},
		{http.MethodDelete, "/api/pases"},
		{http.MethodPost, "/api/health"},
	} {
		rr := do(t, srv, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, tc.path)
		assert.JSONEq(t, `{"ok":false,"error":"not_found"}`, rr.Body.String(), tc.path)
	}
}

func TestExportExcel(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"para":"p%d","pases":%d,"id":"r-%d","link":"l%d"}`, i, i+1, i, i)
		rr := do(t, srv, http.MethodPost, "/api/pases", body)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	listed := decode(t, do(t, srv, http.MethodGet, "/api/pases", "")).Data

	rr := do(t, srv, http.MethodGet, "/api/export-excel", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="pases.xlsx"`, rr.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(models.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, len(listed)+1)
	assert.Equal(t, models.Header, rows[0])
	for i, rec := range listed {
		assert.Equal(t, rec.Timestamp, rows[i+1][0])
		assert.Equal(t, rec.ID, rows[i+1][3])
	}
}

// brokenBackend fails every call the way an unreachable medium would.
type brokenBackend struct{}

func (brokenBackend) Ensure(context.Context) error { return nil }

func (brokenBackend) List(context.Context) ([]models.PassRecord, error) {
	return nil, fmt.Errorf("%w: /secret/path/pases.xlsx: permission denied", store.ErrPersistence)
}

func (brokenBackend) Append(context.Context, models.PassRecord) (models.PassRecord, error) {
	return models.PassRecord{}, fmt.Errorf("%w: /secret/path/pases.xlsx: permission denied", store.ErrPersistence)
}

func (brokenBackend) Close() error { return nil }

func TestBackendFailuresAreCoded(t *testing.T) {
	srv := newRouter(brokenBackend{})

	rr := do(t, srv, http.MethodGet, "/api/pases", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":"read_error"}`, rr.Body.String())

	rr = do(t, srv, http.MethodPost, "/api/pases", `{"para":"Ana","pases":1,"id":"r","link":"l"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":"write_error"}`, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/export-excel", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"ok":false,"error":"export_error"}`, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
}
