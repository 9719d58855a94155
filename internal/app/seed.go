package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smfs18/desafio-backend/internal/domain"
	"github.com/smfs18/desafio-backend/internal/store"
)

type seedRefill struct {
	fuel    domain.FuelType
	value   float64
	liters  float64
	daysAgo int
	approve bool
}

type seedDriver struct {
	input   domain.CreateDriverInput
	refills []seedRefill
}

func strPtr(s string) *string { return &s }

var demoData = []seedDriver{
	{
		input: domain.CreateDriverInput{Name: "João Silva", CPF: "12345678909", Email: "joao.silva@example.com", Phone: strPtr("11999999999")},
		refills: []seedRefill{
			{fuel: domain.FuelGasoline, value: 250, liters: 40, daysAgo: 5, approve: true},
			{fuel: domain.FuelDiesel, value: 450, liters: 50, daysAgo: 3, approve: true},
		},
	},
	{
		input: domain.CreateDriverInput{Name: "Maria Santos", CPF: "98765432100", Email: "maria.santos@example.com", Phone: strPtr("21999999999")},
		refills: []seedRefill{
			{fuel: domain.FuelGasoline, value: 600, liters: 20, daysAgo: 1},
		},
	},
	{
		input: domain.CreateDriverInput{Name: "Pedro Oliveira", CPF: "52998224725", Email: "pedro.oliveira@example.com", Phone: strPtr("31999999999")},
		refills: []seedRefill{
			{fuel: domain.FuelEthanol, value: 200, liters: 35, approve: true},
		},
	},
}

// Seeder loads the demo drivers and refills through the services, so the
// anomaly classification applies to seeded refills too.
type Seeder struct {
	repo    store.Repository
	drivers *DriverService
	refills *RefillService
	logger  *slog.Logger
	now     func() time.Time
}

// NewSeeder creates a seeder.
func NewSeeder(repo store.Repository, drivers *DriverService, refills *RefillService, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{repo: repo, drivers: drivers, refills: refills, logger: logger, now: time.Now}
}

// Seed inserts the demo data. Drivers whose CPF is already stored are
// skipped along with their refills, so running it twice is harmless.
func (s *Seeder) Seed(ctx context.Context) (drivers int, refills int, err error) {
	now := s.now().UTC()
	for _, d := range demoData {
		_, err := s.repo.FindDriverByCPF(ctx, d.input.CPF)
		if err == nil {
			s.logger.Info("seed driver already present", "component", "seeder", "cpf", d.input.CPF)
			continue
		}
		if !errors.Is(err, store.ErrDriverNotFound) {
			return drivers, refills, fmt.Errorf("seed lookup %s: %w", d.input.CPF, err)
		}

		driver, err := s.drivers.Register(ctx, d.input)
		if err != nil {
			return drivers, refills, fmt.Errorf("seed driver %s: %w", d.input.Email, err)
		}
		drivers++

		for _, r := range d.refills {
			created, err := s.refills.Create(ctx, domain.CreateRefillInput{
				DriverID:   driver.ID,
				FuelType:   r.fuel,
				Value:      r.value,
				Liters:     r.liters,
				RefilledAt: now.AddDate(0, 0, -r.daysAgo),
			})
			if err != nil {
				return drivers, refills, fmt.Errorf("seed refill for driver %d: %w", driver.ID, err)
			}
			if r.approve {
				if _, err := s.refills.Approve(ctx, created.ID); err != nil {
					return drivers, refills, fmt.Errorf("seed approve refill %d: %w", created.ID, err)
				}
			}
			refills++
		}
	}
	s.logger.Info("seed finished", "component", "seeder", "drivers", drivers, "refills", refills)
	return drivers, refills, nil
}
