/**
 * @description
 * This file defines the refill ("abastecimento") domain model together with the
 * enumerations used for fuel types and workflow statuses.
 *
 * @notes
 * - Wire values of the enums are the lower-case Portuguese strings used by the
 *   existing clients; Go identifiers are English.
 * - IsAnomaly is decided once at creation and is never rewritten by the
 *   approval workflow.
 */

package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// FuelType enumerates the supported fuels.
type FuelType string

const (
	FuelGasoline   FuelType = "gasolina"
	FuelDiesel     FuelType = "diesel"
	FuelEthanol    FuelType = "etanol"
	FuelNaturalGas FuelType = "gnv"
)

// ParseFuelType normalises raw input into a known FuelType.
func ParseFuelType(raw string) (FuelType, error) {
	switch ft := FuelType(strings.ToLower(strings.TrimSpace(raw))); ft {
	case FuelGasoline, FuelDiesel, FuelEthanol, FuelNaturalGas:
		return ft, nil
	default:
		return "", fmt.Errorf("unknown fuel type %q", raw)
	}
}

// RefillStatus is the workflow state of a refill.
type RefillStatus string

const (
	StatusPending  RefillStatus = "pendente"
	StatusAnomaly  RefillStatus = "anomalia"
	StatusApproved RefillStatus = "aprovado"
	StatusRejected RefillStatus = "recusado"
)

// AllStatuses lists every status in a stable order (used by reporting).
var AllStatuses = []RefillStatus{StatusPending, StatusAnomaly, StatusApproved, StatusRejected}

// ParseRefillStatus normalises raw input into a known RefillStatus.
func ParseRefillStatus(raw string) (RefillStatus, error) {
	switch st := RefillStatus(strings.ToLower(strings.TrimSpace(raw))); st {
	case StatusPending, StatusAnomaly, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown refill status %q", raw)
	}
}

// Refill maps to the `abastecimentos` table.
type Refill struct {
	ID              int64        `json:"id"`
	DriverID        int64        `json:"motorista_id"`
	FuelType        FuelType     `json:"tipo_combustivel"`
	Value           float64      `json:"valor"`
	Liters          float64      `json:"litros"`
	Status          RefillStatus `json:"status"`
	RejectionReason *string      `json:"motivo_recusa"`
	IsAnomaly       bool         `json:"eh_anomalia"`
	RefilledAt      time.Time    `json:"data_abastecimento"`
	CreatedAt       time.Time    `json:"criado_em"`
	UpdatedAt       time.Time    `json:"atualizado_em"`
	Version         int64        `json:"-"`
}

// PricePerLiter returns value/liters, or zero when no volume was recorded.
func (r Refill) PricePerLiter() float64 {
	if r.Liters == 0 {
		return 0
	}
	return r.Value / r.Liters
}

// CreateRefillInput carries the caller-supplied fields of a new refill.
type CreateRefillInput struct {
	DriverID   int64
	FuelType   FuelType
	Value      float64
	Liters     float64
	RefilledAt time.Time // zero means "now"
}

var (
	errNonPositiveValue  = errors.New("valor must be greater than zero")
	errNonPositiveLiters = errors.New("litros must be greater than zero")
)

// ValidateRefillInput enforces value > 0 and liters > 0 (NaN and Inf rejected).
func ValidateRefillInput(value, liters float64) error {
	if !(value > 0) || math.IsInf(value, 0) {
		return errNonPositiveValue
	}
	if !(liters > 0) || math.IsInf(liters, 0) {
		return errNonPositiveLiters
	}
	return nil
}

// RefillFilter narrows refill listings. Zero values mean "no filter".
type RefillFilter struct {
	DriverID  *int64
	Status    *RefillStatus
	IsAnomaly *bool
	Page      int
	PageSize  int
}

// RefillSummary aggregates the refill backlog.
type RefillSummary struct {
	ByStatus    map[RefillStatus]int `json:"por_status"`
	Anomalies   int                  `json:"anomalias"`
	GeneratedAt time.Time            `json:"gerado_em"`
}
