/**
 * @description
 * RefillService owns the refill lifecycle: the one-time anomaly classification
 * at creation and the approve/reject transitions.
 *
 * Key rules:
 * - A new refill starts as `pendente`, or `anomalia` when the scorer flags it;
 *   eh_anomalia mirrors that decision and is never rewritten afterwards.
 * - Approve and reject are valid from any status. Each performs one read and
 *   one version-checked write; a lost race returns ErrConflict.
 * - `motivo_recusa` is present only while the status is `recusado`.
 * - Driver existence is checked by the caller before Create.
 */

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smfs18/desafio-backend/internal/anomaly"
	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/metrics"
	"github.com/smfs18/desafio-backend/internal/store"
)

// RefillService provides the business logic for refills.
type RefillService struct {
	repo    store.Repository
	scorer  *anomaly.Scorer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRefillService creates a refill service. metrics and logger may be nil.
func NewRefillService(repo store.Repository, scorer *anomaly.Scorer, m *metrics.Metrics, logger *slog.Logger) *RefillService {
	if scorer == nil {
		scorer = anomaly.NewScorer(anomaly.DefaultThreshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefillService{repo: repo, scorer: scorer, metrics: m, logger: logger}
}

// Validate checks the caller-supplied fields of a refill without touching the
// store and returns the parsed fuel type.
func (s *RefillService) Validate(in domain.CreateRefillInput) (domain.FuelType, error) {
	if err := domain.ValidateRefillInput(in.Value, in.Liters); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	fuelType, err := domain.ParseFuelType(string(in.FuelType))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return fuelType, nil
}

// Create classifies and persists a new refill.
func (s *RefillService) Create(ctx context.Context, in domain.CreateRefillInput) (*domain.Refill, error) {
	fuelType, err := s.Validate(in)
	if err != nil {
		return nil, err
	}

	refill := &domain.Refill{
		DriverID:   in.DriverID,
		FuelType:   fuelType,
		Value:      in.Value,
		Liters:     in.Liters,
		Status:     domain.StatusPending,
		IsAnomaly:  false,
		RefilledAt: in.RefilledAt,
	}

	if s.scorer.IsAnomaly(refill.Value, refill.Liters) {
		refill.Status = domain.StatusAnomaly
		refill.IsAnomaly = true
	}

	created, err := s.repo.CreateRefill(ctx, refill)
	if err != nil {
		return nil, fmt.Errorf("create refill: %w", translateStoreError(err))
	}

	score := s.scorer.Score(created.Value, created.Liters)
	s.metrics.ObserveCreated(created.Status, score)
	s.logger.Info("refill created",
		"component", "refill_service",
		"refill_id", created.ID,
		"driver_id", created.DriverID,
		"status", created.Status,
		"price_per_liter", created.PricePerLiter(),
		"score", score,
	)
	return created, nil
}

// Approve moves a refill to `aprovado` from any status.
func (s *RefillService) Approve(ctx context.Context, id int64) (*domain.Refill, error) {
	return s.transition(ctx, id, domain.StatusApproved, nil)
}

// Reject moves a refill to `recusado` and records the reason. A blank reason
// is rejected before the store is touched.
func (s *RefillService) Reject(ctx context.Context, id int64, reason string) (*domain.Refill, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidArgument("rejection reason is required")
	}
	return s.transition(ctx, id, domain.StatusRejected, &reason)
}

func (s *RefillService) transition(ctx context.Context, id int64, next domain.RefillStatus, reason *string) (*domain.Refill, error) {
	current, err := s.repo.GetRefill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load refill %d: %w", id, translateStoreError(err))
	}

	previous := current.Status
	current.Status = next
	current.RejectionReason = reason

	updated, err := s.repo.UpdateRefillStatus(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("update refill %d: %w", id, translateStoreError(err))
	}

	s.metrics.ObserveTransition(updated.Status)
	s.logger.Info("refill status changed",
		"component", "refill_service",
		"refill_id", updated.ID,
		"from", previous,
		"to", updated.Status,
	)
	return updated, nil
}

// Get returns a single refill.
func (s *RefillService) Get(ctx context.Context, id int64) (*domain.Refill, error) {
	refill, err := s.repo.GetRefill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load refill %d: %w", id, translateStoreError(err))
	}
	return refill, nil
}

// List returns one filtered page of refills.
func (s *RefillService) List(ctx context.Context, filter domain.RefillFilter) (domain.Page[domain.Refill], error) {
	filter.Page, filter.PageSize = domain.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.repo.ListRefills(ctx, filter)
	if err != nil {
		return domain.Page[domain.Refill]{}, fmt.Errorf("list refills: %w", err)
	}
	return domain.NewPage(items, total, filter.Page, filter.PageSize), nil
}

// Score exposes the scorer for reporting and triage.
func (s *RefillService) Score(value, liters float64) float64 {
	return s.scorer.Score(value, liters)
}

// IsAnomaly exposes the scorer classification.
func (s *RefillService) IsAnomaly(value, liters float64) bool {
	return s.scorer.IsAnomaly(value, liters)
}

// Assess returns score, classification and price per liter together.
func (s *RefillService) Assess(value, liters float64) anomaly.Assessment {
	return s.scorer.Assess(value, liters)
}
