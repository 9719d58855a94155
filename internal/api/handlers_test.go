package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smfs18/desafio-backend/internal/anomaly"
	"github.com/smfs18/desafio-backend/internal/app"
	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/metrics"
	"github.com/smfs18/desafio-backend/internal/store/storetest"
)

const testAPIKey = "test-key"

type testServer struct {
	handler http.Handler
	repo    *storetest.MemoryRepository
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := storetest.NewMemoryRepository()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	refills := app.NewRefillService(repo, anomaly.NewScorer(anomaly.DefaultThreshold), m, logger)
	drivers := app.NewDriverService(repo, nil, "fuel.events", m, logger)
	reports := app.NewReportJob(repo, nil, "fuel.events", m, logger)

	if opts.APIKey == "" {
		opts.APIKey = testAPIKey
	}
	opts.Gatherer = reg
	opts.Logger = logger

	return &testServer{
		handler: NewRouter(NewHandlers(refills, drivers, reports, logger), opts),
		repo:    repo,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, testAPIKey)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createDriver(t *testing.T, cpf, email string) domain.Driver {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/motoristas", map[string]any{
		"nome": "Driver " + cpf, "cpf": cpf, "email": email,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d domain.Driver
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

type refillBody struct {
	ID              int64   `json:"id"`
	DriverID        int64   `json:"motorista_id"`
	Status          string  `json:"status"`
	RejectionReason *string `json:"motivo_recusa"`
	IsAnomaly       bool    `json:"eh_anomalia"`
	AnomalyScore    float64 `json:"anomaly_score"`
}

func decodeRefill(t *testing.T, rec *httptest.ResponseRecorder) refillBody {
	t.Helper()
	var out refillBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createRefill(t *testing.T, driverID int64, value, liters float64) refillBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": driverID, "tipo_combustivel": "gasolina", "valor": value, "litros": liters,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeRefill(t, rec)
}

func TestHealthAndMetricsNeedNoAPIKey(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	rec := srv.do(t, http.MethodGet, "/health", nil, map[string]string{apiKeyHeader: ""})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/metrics", nil, map[string]string{apiKeyHeader: ""})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	rec := srv.do(t, http.MethodGet, "/api/v1/motoristas", nil, map[string]string{apiKeyHeader: ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas", nil, map[string]string{apiKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDriverEndpoints(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	driver := srv.createDriver(t, "123.456.789-09", "joao@example.com")
	assert.Equal(t, "12345678909", driver.CPF)

	rec := srv.do(t, http.MethodPost, "/api/v1/motoristas", map[string]any{
		"nome": "Dup", "cpf": "12345678909", "email": "other@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/motoristas", map[string]any{
		"nome": "Bad", "cpf": "12345678900", "email": "bad@example.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid CPF")

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/v1/motoristas/"+jsonID(driver.ID), map[string]any{"ativo": false, "telefone": "21988887777"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Driver
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Active)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "21988887777", *updated.Phone)

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas?page=1&page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.Page[domain.Driver]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.PageSize)

	rec = srv.do(t, http.MethodGet, "/api/v1/motoristas?page_size=500", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRefill(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	driver := srv.createDriver(t, "12345678909", "joao@example.com")

	normal := srv.createRefill(t, driver.ID, 250, 40)
	assert.Equal(t, "pendente", normal.Status)
	assert.False(t, normal.IsAnomaly)
	assert.InDelta(t, 0.385, normal.AnomalyScore, 0.001)
	assert.Nil(t, normal.RejectionReason)

	anomalous := srv.createRefill(t, driver.ID, 600, 20)
	assert.Equal(t, "anomalia", anomalous.Status)
	assert.True(t, anomalous.IsAnomaly)
	assert.Equal(t, 1.0, anomalous.AnomalyScore)

	rec := srv.do(t, http.MethodGet, "/api/v1/abastecimentos/"+jsonID(anomalous.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, anomalous.ID, decodeRefill(t, rec).ID)
}

func TestCreateRefillErrors(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	driver := srv.createDriver(t, "12345678909", "joao@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": 42, "tipo_combustivel": "gasolina", "valor": 100, "litros": 10,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": driver.ID, "tipo_combustivel": "gasolina", "valor": 100, "litros": 0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": driver.ID, "tipo_combustivel": "querosene", "valor": 100, "litros": 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{"unexpected": true}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, srv.repo.CreateCalls)
}

func TestCreateRefill_InvalidPayloadBeatsUnknownDriver(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	rec := srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": 42, "tipo_combustivel": "gasolina", "valor": 0, "litros": 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": 42, "tipo_combustivel": "querosene", "valor": 100, "litros": 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": 42, "tipo_combustivel": "gasolina", "valor": 100, "litros": 10,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a valid payload still reaches the driver check")
}

func TestApproveAndReject(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	driver := srv.createDriver(t, "12345678909", "joao@example.com")
	refill := srv.createRefill(t, driver.ID, 250, 40)
	path := "/api/v1/abastecimentos/" + jsonID(refill.ID)

	rec := srv.do(t, http.MethodPost, path+"/approve", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeRefill(t, rec)
	assert.Equal(t, "aprovado", approved.Status)
	assert.Nil(t, approved.RejectionReason)

	rec = srv.do(t, http.MethodPost, path+"/reject?motivo=", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, path+"/reject?motivo=duplicate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decodeRefill(t, rec)
	assert.Equal(t, "recusado", rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "duplicate", *rejected.RejectionReason)

	rec = srv.do(t, http.MethodPost, path+"/reject", map[string]string{"motivo": "fraude"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fraude", *decodeRefill(t, rec).RejectionReason)

	rec = srv.do(t, http.MethodPost, "/api/v1/abastecimentos/9999/approve", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRefillsWithFilters(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	first := srv.createDriver(t, "12345678909", "joao@example.com")
	second := srv.createDriver(t, "98765432100", "maria@example.com")
	srv.createRefill(t, first.ID, 250, 40)
	srv.createRefill(t, first.ID, 600, 20)
	srv.createRefill(t, second.ID, 100, 20)

	var page domain.Page[refillBody]

	rec := srv.do(t, http.MethodGet, "/api/v1/abastecimentos?motorista_id="+jsonID(first.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	rec = srv.do(t, http.MethodGet, "/api/v1/abastecimentos?status=anomalia", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.True(t, page.Items[0].IsAnomaly)

	rec = srv.do(t, http.MethodGet, "/api/v1/abastecimentos?anomalia=false&page_size=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)

	rec = srv.do(t, http.MethodGet, "/api/v1/abastecimentos?status=unknown", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/abastecimentos?page=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	driver := srv.createDriver(t, "12345678909", "joao@example.com")
	srv.createRefill(t, driver.ID, 250, 40)
	srv.createRefill(t, driver.ID, 600, 20)

	rec := srv.do(t, http.MethodGet, "/api/v1/abastecimentos/summary", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.RefillSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.ByStatus[domain.StatusPending])
	assert.Equal(t, 1, summary.ByStatus[domain.StatusAnomaly])
	assert.Equal(t, 1, summary.Anomalies)
}

func TestScoreEndpoint(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	rec := srv.do(t, http.MethodGet, "/api/v1/anomalias/score?valor=600&litros=20", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var assessment anomaly.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))
	assert.Equal(t, 1.0, assessment.Score)
	assert.True(t, assessment.IsAnomaly)
	assert.Equal(t, 30.0, assessment.PricePerLiter)

	rec = srv.do(t, http.MethodGet, "/api/v1/anomalias/score?valor=abc&litros=20", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreEndpoint_RejectsNonFiniteInput(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	for _, query := range []string{
		"valor=NaN&litros=1",
		"valor=1&litros=NaN",
		"valor=Inf&litros=1",
		"valor=100&litros=-Inf",
		"valor=1e308&litros=1e-308",
	} {
		rec := srv.do(t, http.MethodGet, "/api/v1/anomalias/score?"+query, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), query)
		assert.NotEmpty(t, body["error"], query)
	}
}

func TestRespondWithJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithJSON(rec, http.StatusOK, map[string]float64{"score": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestRefillCreationIsRateLimited(t *testing.T) {
	srv := newTestServer(t, RouterOptions{RateLimiter: NewLocalRateLimiter(2, time.Minute)})
	driver := srv.createDriver(t, "12345678909", "joao@example.com")

	srv.createRefill(t, driver.ID, 100, 20)
	srv.createRefill(t, driver.ID, 100, 20)

	rec := srv.do(t, http.MethodPost, "/api/v1/abastecimentos", map[string]any{
		"motorista_id": driver.ID, "tipo_combustivel": "diesel", "valor": 100, "litros": 20,
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = srv.do(t, http.MethodGet, "/api/v1/abastecimentos", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "listing is not rate limited")
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
