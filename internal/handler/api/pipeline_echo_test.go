package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinLab/internal/domain/models"
	"FinLab/internal/services/indicators"
	"FinLab/internal/usecase"
)

type stubRunner struct {
	got  usecase.RunParams
	errs map[string]error
}

func (s *stubRunner) Run(_ context.Context, p usecase.RunParams) (*models.RunResult, error) {
	s.got = p
	if err := s.errs[p.Ticker]; err != nil {
		return nil, err
	}
	return &models.RunResult{RunID: "run-" + p.Ticker, Ticker: p.Ticker, Rows: 10}, nil
}

func newServer(t *testing.T, r *stubRunner) *echo.Echo {
	t.Helper()
	reg := indicators.Default()
	_ = reg.Register(indicators.Spec{Name: "broken", Category: indicators.Trend})
	h := NewPipelineEchoHandler(nil, r, usecase.NewBatchRunner(r, 2, nil, nil), reg, 24*time.Hour)
	h.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRunEndpoint(t *testing.T) {
	r := &stubRunner{}
	e := newServer(t, r)

	rec := do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"SPY","from":"2024-01-01","folds":3,"thresholds":[0.55,0.6]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.RunResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	assert.Equal(t, "run-SPY", res.RunID)

	assert.Equal(t, 3, r.got.Folds)
	assert.EqualValues(t, "hourly", r.got.Cadence)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.got.From)
	assert.Equal(t, []float64{0.55, 0.6}, r.got.Thresholds)
	assert.Nil(t, r.got.Embargo, "omitted embargo falls back to config")
}

func TestRunEndpointExplicitZeroEmbargo(t *testing.T) {
	r := &stubRunner{}
	e := newServer(t, r)

	rec := do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"SPY","embargo":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, r.got.Embargo)
	assert.Equal(t, 0, *r.got.Embargo)

	rec = do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"SPY","embargo":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunEndpointValidation(t *testing.T) {
	e := newServer(t, &stubRunner{})
	for _, body := range []string{
		`{}`,
		`{"ticker":"SPY","cadence":"weekly"}`,
		`{"ticker":"SPY","thresholds":[1.5]}`,
		`{"ticker":"SPY","label":"sideways"}`,
	} {
		rec := do(e, http.MethodPost, "/api/pipeline/run", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"SPY","from":"2025-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunEndpointMapsStageErrors(t *testing.T) {
	r := &stubRunner{errs: map[string]error{
		"CFG":  &usecase.StageError{Stage: usecase.StageSplit, Ticker: "CFG", Fold: -1, Kind: usecase.KindConfig, Err: errors.New("too few rows")},
		"DATA": &usecase.StageError{Stage: usecase.StageLoad, Ticker: "DATA", Fold: -1, Kind: usecase.KindData, Err: errors.New("duplicate timestamp")},
		"UP":   &usecase.StageError{Stage: usecase.StageScore, Ticker: "UP", Fold: 2, Kind: usecase.KindProvider, Err: errors.New("503")},
		"SLOW": &usecase.StageError{Stage: usecase.StageScore, Ticker: "SLOW", Fold: 0, Kind: usecase.KindTimeout, Err: context.DeadlineExceeded},
		"OOPS": errors.New("plain"),
	}}
	e := newServer(t, r)

	want := map[string]int{
		"CFG":  http.StatusBadRequest,
		"DATA": http.StatusUnprocessableEntity,
		"UP":   http.StatusBadGateway,
		"SLOW": http.StatusGatewayTimeout,
		"OOPS": http.StatusInternalServerError,
	}
	for ticker, code := range want {
		rec := do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"`+ticker+`"}`)
		assert.Equal(t, code, rec.Code, ticker)
	}

	rec := do(e, http.MethodPost, "/api/pipeline/run", `{"ticker":"UP"}`)
	assert.Contains(t, rec.Body.String(), `"stage":"score"`)
	assert.Contains(t, rec.Body.String(), `"fold":2`)
}

func TestBatchEndpoint(t *testing.T) {
	r := &stubRunner{errs: map[string]error{
		"BAD": &usecase.StageError{Stage: usecase.StageLoad, Ticker: "BAD", Fold: -1, Kind: usecase.KindProvider, Err: errors.New("down")},
	}}
	e := newServer(t, r)

	rec := do(e, http.MethodPost, "/api/pipeline/batch", `{"tickers":["SPY","BAD","QQQ"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Rows  []models.BatchItem `json:"rows"`
		Total int64              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	require.Len(t, list.Rows, 3)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, "load", list.Rows[1].Stage)
	assert.NotNil(t, list.Rows[2].Result)

	rec = do(e, http.MethodPost, "/api/pipeline/batch", `{"tickers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndicatorEndpoints(t *testing.T) {
	e := newServer(t, &stubRunner{})

	rec := do(e, http.MethodGet, "/api/indicators?category=volatility", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Rows []indicators.Spec `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	require.NotEmpty(t, list.Rows)
	for _, s := range list.Rows {
		assert.Equal(t, indicators.Volatility, s.Category)
	}

	rec = do(e, http.MethodGet, "/api/indicators?category=astrology", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/indicators/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"broken"`)
}
