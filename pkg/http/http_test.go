package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeRequest struct {
	StartDate string `query:"start_date" validate:"required,datetime=2006-01-02"`
	Horizon   int    `query:"horizon" default:"90" validate:"gte=1,lte=365"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "done", map[string]int{"n": 1}) })
	e.GET("/busy", func(c echo.Context) error { return AppErrorResponse(c, ConflictError("run in progress")) })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/validate", func(c echo.Context) error {
		var req rangeRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, "", req)
	})
}

func serve(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_EnvelopesAndMiddleware(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}}, WithCORS(false))

	rec, body := serve(t, s, "/ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Equal(t, "done", body.Message)

	rec, body = serve(t, s, "/busy")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)

	rec, body = serve(t, s, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, body.Success)
}

func TestReadAndValidateRequest_DefaultsAndErrors(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}})

	rec, body := serve(t, s, "/validate?start_date=2024-01-01")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, mustJSON(t, body.Data), `"Horizon":90`)

	rec, body = serve(t, s, "/validate?start_date=01-01-2024&horizon=900")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	raw := mustJSON(t, body.Data)
	assert.Contains(t, raw, "ERR_DATETIME")
	assert.Contains(t, raw, "ERR_LTE")
	assert.Contains(t, raw, `"field":"start_date"`)
}

func TestParseDatePtr(t *testing.T) {
	d, err := ParseDatePtr("start_date", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDatePtr("start_date", "yesterday")
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/occupancy/forecast", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]int{"echo": in["n"]})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	var out map[string]int
	require.NoError(t, c.PostJSON(context.Background(), "/occupancy/forecast", map[string]int{"n": 7}, &out))
	assert.Equal(t, 7, out["echo"])

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer bad.Close()
	err := NewClient(bad.URL).PostJSON(context.Background(), "/x", nil, &out)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestClassify(t *testing.T) {
	errGone := errors.New("tariff gone")
	rules := []ErrorStatus{{Target: errGone, Status: http.StatusNotFound, Code: "ERR_NOT_FOUND"}}

	err := Classify(fmt.Errorf("approve 7: %w", errGone), rules...)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.True(t, errors.Is(err, errGone))

	plain := errors.New("disk full")
	assert.Same(t, plain, Classify(plain, rules...))
	assert.NoError(t, Classify(nil, rules...))
}

func TestServer_CORSPreflight(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}}, WithCORSOrigins([]string{"https://rm.hotel.test"}))

	pre := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	pre.Header.Set(echo.HeaderOrigin, "https://rm.hotel.test")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://rm.hotel.test", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)

	other := httptest.NewRequest(http.MethodGet, "/ok", nil)
	other.Header.Set(echo.HeaderOrigin, "https://elsewhere.test")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
