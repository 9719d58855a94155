/**
 * @description
 * This file contains the HTTP handlers for the fuel service. Handlers parse
 * incoming requests, call the application services, and write the JSON
 * response. Service errors are mapped onto status codes in one place
 * (writeServiceError).
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameters.
 * - internal/app, internal/domain: Services and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smfs18/desafio-backend/internal/app"
	"github.com/smfs18/desafio-backend/internal/domain"
)

// Handlers holds the application services that handlers will use.
type Handlers struct {
	refills *app.RefillService
	drivers *app.DriverService
	reports *app.ReportJob
	logger  *slog.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(refills *app.RefillService, drivers *app.DriverService, reports *app.ReportJob, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{refills: refills, drivers: drivers, reports: reports, logger: logger}
}

// refillResponse adds the anomaly score to the stored refill.
type refillResponse struct {
	domain.Refill
	AnomalyScore float64 `json:"anomaly_score"`
}

type createRefillRequest struct {
	DriverID   int64           `json:"motorista_id"`
	FuelType   domain.FuelType `json:"tipo_combustivel"`
	Value      float64         `json:"valor"`
	Liters     float64         `json:"litros"`
	RefilledAt *time.Time      `json:"data_abastecimento"`
}

type rejectRefillRequest struct {
	Reason string `json:"motivo"`
}

func (h *Handlers) toRefillResponse(r *domain.Refill) refillResponse {
	return refillResponse{Refill: *r, AnomalyScore: h.refills.Score(r.Value, r.Liters)}
}

// HealthHandler reports liveness.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateDriverHandler registers a driver.
func (h *Handlers) CreateDriverHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDriverInput
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	driver, err := h.drivers.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create_driver", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, driver)
}

// GetDriverHandler returns a driver by id.
func (h *Handlers) GetDriverHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	driver, err := h.drivers.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get_driver", err)
		return
	}
	respondWithJSON(w, http.StatusOK, driver)
}

// ListDriversHandler returns one page of drivers.
func (h *Handlers) ListDriversHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}
	result, err := h.drivers.List(r.Context(), page, pageSize)
	if err != nil {
		h.writeServiceError(w, "list_drivers", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// UpdateDriverHandler applies a partial update to a driver.
func (h *Handlers) UpdateDriverHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch domain.DriverPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	driver, err := h.drivers.Update(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, "update_driver", err)
		return
	}
	respondWithJSON(w, http.StatusOK, driver)
}

// CreateRefillHandler records a refill after checking the driver exists.
func (h *Handlers) CreateRefillHandler(w http.ResponseWriter, r *http.Request) {
	var req createRefillRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := domain.CreateRefillInput{
		DriverID: req.DriverID,
		FuelType: req.FuelType,
		Value:    req.Value,
		Liters:   req.Liters,
	}
	if req.RefilledAt != nil {
		in.RefilledAt = *req.RefilledAt
	}
	if _, err := h.refills.Validate(in); err != nil {
		h.writeServiceError(w, "create_refill", err)
		return
	}

	exists, err := h.drivers.Exists(r.Context(), req.DriverID)
	if err != nil {
		h.writeServiceError(w, "create_refill", err)
		return
	}
	if !exists {
		respondWithError(w, http.StatusNotFound, "Driver not found")
		return
	}

	refill, err := h.refills.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "create_refill", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.toRefillResponse(refill))
}

// GetRefillHandler returns a refill by id.
func (h *Handlers) GetRefillHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	refill, err := h.refills.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get_refill", err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.toRefillResponse(refill))
}

// ListRefillsHandler returns one filtered page of refills.
func (h *Handlers) ListRefillsHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}
	filter := domain.RefillFilter{Page: page, PageSize: pageSize}
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := domain.ParseRefillStatus(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("motorista_id")); raw != "" {
		driverID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid motorista_id")
			return
		}
		filter.DriverID = &driverID
	}
	if raw := strings.TrimSpace(q.Get("anomalia")); raw != "" {
		flag, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid anomalia")
			return
		}
		filter.IsAnomaly = &flag
	}

	result, err := h.refills.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list_refills", err)
		return
	}
	items := make([]refillResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, h.toRefillResponse(&result.Items[i]))
	}
	respondWithJSON(w, http.StatusOK, domain.Page[refillResponse]{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

// ApproveRefillHandler approves a refill.
func (h *Handlers) ApproveRefillHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	refill, err := h.refills.Approve(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "approve_refill", err)
		return
	}
	h.logReview(r, "approve", refill)
	respondWithJSON(w, http.StatusOK, h.toRefillResponse(refill))
}

// RejectRefillHandler rejects a refill. The reason comes from ?motivo= or a
// JSON body {"motivo": "..."}.
func (h *Handlers) RejectRefillHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	reason := r.URL.Query().Get("motivo")
	if strings.TrimSpace(reason) == "" && r.ContentLength != 0 {
		var req rejectRefillRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		reason = req.Reason
	}

	refill, err := h.refills.Reject(r.Context(), id, reason)
	if err != nil {
		h.writeServiceError(w, "reject_refill", err)
		return
	}
	h.logReview(r, "reject", refill)
	respondWithJSON(w, http.StatusOK, h.toRefillResponse(refill))
}

// RefillSummaryHandler returns the current backlog summary.
func (h *Handlers) RefillSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		h.writeServiceError(w, "refill_summary", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// ScoreHandler scores a value/liters pair without storing anything.
func (h *Handlers) ScoreHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	value, err := strconv.ParseFloat(strings.TrimSpace(q.Get("valor")), 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid valor")
		return
	}
	liters, err := strconv.ParseFloat(strings.TrimSpace(q.Get("litros")), 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid litros")
		return
	}
	if !isFinite(value) || !isFinite(liters) || value < 0 || liters < 0 {
		respondWithError(w, http.StatusBadRequest, "valor and litros must be finite and not negative")
		return
	}
	assessment := h.refills.Assess(value, liters)
	if !isFinite(assessment.PricePerLiter) || !isFinite(assessment.Score) {
		respondWithError(w, http.StatusBadRequest, "valor/litros is out of range")
		return
	}
	respondWithJSON(w, http.StatusOK, assessment)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (h *Handlers) logReview(r *http.Request, action string, refill *domain.Refill) {
	reviewer, _ := GetReviewerID(r.Context())
	h.logger.Info("refill reviewed",
		"component", "api",
		"action", action,
		"refill_id", refill.ID,
		"status", refill.Status,
		"reviewer_id", reviewer,
	)
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidArgument):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "component", "api", "endpoint", endpoint, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	page, pageSize := 1, domain.DefaultPageSize

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			respondWithError(w, http.StatusBadRequest, "page must be a positive integer")
			return 0, 0, false
		}
		page = v
	}
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > domain.MaxPageSize {
			respondWithError(w, http.StatusBadRequest, "page_size must be between 1 and 100")
			return 0, 0, false
		}
		pageSize = v
	}
	return page, pageSize, true
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondWithJSON is a helper for writing JSON responses.
// The body is encoded before the header is written so an unencodable value
// becomes a 500 instead of an empty success.
func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("response encoding failed", "component", "api", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// respondWithError is a helper for writing JSON error responses.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}
