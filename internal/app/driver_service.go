package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/metrics"
	"github.com/smfs18/desafio-backend/internal/store"
	"github.com/smfs18/desafio-backend/pkg/rabbitmq"
)

// Routing keys published on the events exchange.
const (
	EventDriverRegistered      = "driver.registered"
	EventRefillBacklogReported = "refill.backlog.reported"
)

// EventPublisher defines the interface for publishing domain events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// DriverService provides the business logic for drivers.
type DriverService struct {
	repo     store.Repository
	events   EventPublisher
	exchange string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDriverService creates a driver service. events, metrics and logger may be nil.
func NewDriverService(repo store.Repository, events EventPublisher, exchange string, m *metrics.Metrics, logger *slog.Logger) *DriverService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriverService{repo: repo, events: events, exchange: exchange, metrics: m, logger: logger}
}

// Register validates and stores a new driver.
func (s *DriverService) Register(ctx context.Context, in domain.CreateDriverInput) (*domain.Driver, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	if _, err := s.repo.FindDriverByCPF(ctx, in.CPF); err == nil {
		return nil, fmt.Errorf("%w: %w", ErrConflict, store.ErrDuplicateCPF)
	} else if !errors.Is(err, store.ErrDriverNotFound) {
		return nil, fmt.Errorf("check cpf: %w", err)
	}
	if _, err := s.repo.FindDriverByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: %w", ErrConflict, store.ErrDuplicateEmail)
	} else if !errors.Is(err, store.ErrDriverNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	driver, err := s.repo.CreateDriver(ctx, &domain.Driver{
		Name:   in.Name,
		CPF:    in.CPF,
		Email:  in.Email,
		Phone:  in.Phone,
		Active: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", translateStoreError(err))
	}

	s.metrics.IncrementDriversRegistered()
	s.logger.Info("driver registered", "component", "driver_service", "driver_id", driver.ID)

	if s.events != nil {
		event := rabbitmq.NewEvent(EventDriverRegistered, map[string]any{
			"id":    driver.ID,
			"nome":  driver.Name,
			"email": driver.Email,
		})
		if err := s.events.Publish(ctx, s.exchange, EventDriverRegistered, event); err != nil {
			s.logger.Warn("failed to publish driver event", "component", "driver_service", "driver_id", driver.ID, "error", err)
		}
	}
	return driver, nil
}

// Get returns a driver by id.
func (s *DriverService) Get(ctx context.Context, id int64) (*domain.Driver, error) {
	driver, err := s.repo.GetDriver(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load driver %d: %w", id, translateStoreError(err))
	}
	return driver, nil
}

// Exists reports whether a driver with id is stored.
func (s *DriverService) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.GetDriver(ctx, id)
	if errors.Is(err, store.ErrDriverNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns one page of drivers ordered by id.
func (s *DriverService) List(ctx context.Context, page, pageSize int) (domain.Page[domain.Driver], error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	items, total, err := s.repo.ListDrivers(ctx, pageSize, domain.Offset(page, pageSize))
	if err != nil {
		return domain.Page[domain.Driver]{}, fmt.Errorf("list drivers: %w", err)
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

// Update applies a partial update. Changing the email to one owned by
// another driver is a conflict.
func (s *DriverService) Update(ctx context.Context, id int64, patch domain.DriverPatch) (*domain.Driver, error) {
	patch = patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	current, err := s.repo.GetDriver(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load driver %d: %w", id, translateStoreError(err))
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if patch.Email != nil && *patch.Email != current.Email {
		other, err := s.repo.FindDriverByEmail(ctx, *patch.Email)
		switch {
		case err == nil && other.ID != id:
			return nil, fmt.Errorf("%w: %w", ErrConflict, store.ErrDuplicateEmail)
		case err != nil && !errors.Is(err, store.ErrDriverNotFound):
			return nil, fmt.Errorf("check email: %w", err)
		}
	}

	next := patch.Apply(*current)
	updated, err := s.repo.UpdateDriver(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("update driver %d: %w", id, translateStoreError(err))
	}
	s.logger.Info("driver updated", "component", "driver_service", "driver_id", id)
	return updated, nil
}
