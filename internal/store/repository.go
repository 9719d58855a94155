/**
 * @description
 * This file defines the `Repository` interface, the contract for every data
 * access operation the fuel service needs. Business logic depends on this
 * interface only, so tests can substitute stubs for the PostgreSQL
 * implementation.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/smfs18/desafio-backend/internal/domain"
)

var (
	ErrDriverNotFound  = errors.New("driver not found")
	ErrRefillNotFound  = errors.New("refill not found")
	ErrDuplicateCPF    = errors.New("driver with this CPF already exists")
	ErrDuplicateEmail  = errors.New("driver with this email already exists")
	ErrVersionConflict = errors.New("refill was modified concurrently")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Driver methods
	CreateDriver(ctx context.Context, driver *domain.Driver) (*domain.Driver, error)
	GetDriver(ctx context.Context, id int64) (*domain.Driver, error)
	FindDriverByCPF(ctx context.Context, cpf string) (*domain.Driver, error)
	FindDriverByEmail(ctx context.Context, email string) (*domain.Driver, error)
	UpdateDriver(ctx context.Context, driver *domain.Driver) (*domain.Driver, error)
	ListDrivers(ctx context.Context, limit, offset int) ([]domain.Driver, int, error)

	// Refill methods
	CreateRefill(ctx context.Context, refill *domain.Refill) (*domain.Refill, error)
	GetRefill(ctx context.Context, id int64) (*domain.Refill, error)
	// UpdateRefillStatus writes status and rejection reason only when the stored
	// version still equals refill.Version, and returns the row with the bumped version.
	UpdateRefillStatus(ctx context.Context, refill *domain.Refill) (*domain.Refill, error)
	ListRefills(ctx context.Context, filter domain.RefillFilter) ([]domain.Refill, int, error)

	// Reporting methods
	CountRefillsByStatus(ctx context.Context, status domain.RefillStatus) (int, error)
	CountAnomalies(ctx context.Context) (int, error)
}
