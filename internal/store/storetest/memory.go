// Package storetest provides an in-memory Repository for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/store"
)

// MemoryRepository is an in-memory store.Repository for tests. It mirrors the
// Postgres semantics the services rely on: duplicate CPF/email, version-checked
// status updates and filtered pagination
// ordered like the SQL query.
type MemoryRepository struct {
	mu      sync.Mutex
	drivers map[int64]domain.Driver
	refills map[int64]domain.Refill
	nextID  int64

	writes int

	// CountErr fails CountRefillsByStatus; UpdateErr fails UpdateRefillStatus.
	CountErr    error
	UpdateErr   error
	CreateCalls int
}

var _ store.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		drivers: make(map[int64]domain.Driver),
		refills: make(map[int64]domain.Refill),
	}
}

func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepository) CreateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.drivers {
		if existing.CPF == d.CPF {
			return nil, store.ErrDuplicateCPF
		}
		if existing.Email == d.Email {
			return nil, store.ErrDuplicateEmail
		}
	}
	out := *d
	out.ID = r.id()
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	r.drivers[out.ID] = out
	r.writes++
	return &out, nil
}

func (r *MemoryRepository) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return nil, store.ErrDriverNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindDriverByCPF(ctx context.Context, cpf string) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.CPF == cpf {
			out := d
			return &out, nil
		}
	}
	return nil, store.ErrDriverNotFound
}

func (r *MemoryRepository) FindDriverByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.Email == email {
			out := d
			return &out, nil
		}
	}
	return nil, store.ErrDriverNotFound
}

func (r *MemoryRepository) UpdateDriver(ctx context.Context, d *domain.Driver) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[d.ID]; !ok {
		return nil, store.ErrDriverNotFound
	}
	out := *d
	out.UpdatedAt = time.Now()
	r.drivers[d.ID] = out
	r.writes++
	return &out, nil
}

func (r *MemoryRepository) ListDrivers(ctx context.Context, limit, offset int) ([]domain.Driver, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]domain.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, limit, offset), len(all), nil
}

func (r *MemoryRepository) CreateRefill(ctx context.Context, refill *domain.Refill) (*domain.Refill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreateCalls++
	out := *refill
	out.ID = r.id()
	out.Version = 1
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	if out.RefilledAt.IsZero() {
		out.RefilledAt = out.CreatedAt
	}
	r.refills[out.ID] = out
	r.writes++
	return &out, nil
}

func (r *MemoryRepository) GetRefill(ctx context.Context, id int64) (*domain.Refill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refill, ok := r.refills[id]
	if !ok {
		return nil, store.ErrRefillNotFound
	}
	return &refill, nil
}

func (r *MemoryRepository) UpdateRefillStatus(ctx context.Context, refill *domain.Refill) (*domain.Refill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}
	stored, ok := r.refills[refill.ID]
	if !ok {
		return nil, store.ErrRefillNotFound
	}
	if stored.Version != refill.Version {
		return nil, store.ErrVersionConflict
	}
	stored.Status = refill.Status
	stored.RejectionReason = refill.RejectionReason
	stored.Version++
	stored.UpdatedAt = time.Now()
	r.refills[refill.ID] = stored
	r.writes++
	return &stored, nil
}

func (r *MemoryRepository) ListRefills(ctx context.Context, filter domain.RefillFilter) ([]domain.Refill, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Refill
	for _, refill := range r.refills {
		if filter.DriverID != nil && refill.DriverID != *filter.DriverID {
			continue
		}
		if filter.Status != nil && refill.Status != *filter.Status {
			continue
		}
		if filter.IsAnomaly != nil && refill.IsAnomaly != *filter.IsAnomaly {
			continue
		}
		matched = append(matched, refill)
	}
	// Same order as Postgres: data_abastecimento DESC, id DESC.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].RefilledAt.Equal(matched[j].RefilledAt) {
			return matched[i].RefilledAt.After(matched[j].RefilledAt)
		}
		return matched[i].ID > matched[j].ID
	})
	page, pageSize := domain.NormalizePage(filter.Page, filter.PageSize)
	return window(matched, pageSize, domain.Offset(page, pageSize)), len(matched), nil
}

func (r *MemoryRepository) CountRefillsByStatus(ctx context.Context, status domain.RefillStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CountErr != nil {
		return 0, r.CountErr
	}
	n := 0
	for _, refill := range r.refills {
		if refill.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountAnomalies(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, refill := range r.refills {
		if refill.IsAnomaly {
			n++
		}
	}
	return n, nil
}

// PutRefill stores refill as is, defaulting its version to 1.
func (r *MemoryRepository) PutRefill(refill domain.Refill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if refill.Version == 0 {
		refill.Version = 1
	}
	r.refills[refill.ID] = refill
	if refill.ID > r.nextID {
		r.nextID = refill.ID
	}
}

// WriteCount returns the number of successful writes.
func (r *MemoryRepository) WriteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
