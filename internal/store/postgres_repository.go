/**
 * @description
 * PostgreSQL implementation of the Repository interface using pgx. All SQL
 * for drivers (`motoristas`) and refills (`abastecimentos`) lives here.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pool.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smfs18/desafio-backend/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const driverColumns = `id, nome, cpf, email, telefone, ativo, criado_em, atualizado_em`

const refillColumns = `id, motorista_id, tipo_combustivel, valor, litros, status, motivo_recusa,
	eh_anomalia, data_abastecimento, criado_em, atualizado_em, version`

// PostgresRepository is the pgx-backed Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository instance.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanDriver(row pgx.Row) (*domain.Driver, error) {
	var d domain.Driver
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.CPF,
		&d.Email,
		&d.Phone,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanRefill(row pgx.Row) (*domain.Refill, error) {
	var r domain.Refill
	if err := row.Scan(
		&r.ID,
		&r.DriverID,
		&r.FuelType,
		&r.Value,
		&r.Liters,
		&r.Status,
		&r.RejectionReason,
		&r.IsAnomaly,
		&r.RefilledAt,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// translateDriverWriteError maps unique violations onto the duplicate sentinels.
func translateDriverWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "motoristas_cpf_key":
			return ErrDuplicateCPF
		case "motoristas_email_key":
			return ErrDuplicateEmail
		}
	}
	return err
}

// CreateDriver inserts a new driver and returns the stored row.
func (r *PostgresRepository) CreateDriver(ctx context.Context, driver *domain.Driver) (*domain.Driver, error) {
	query := `
		INSERT INTO motoristas (nome, cpf, email, telefone, ativo)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + driverColumns
	created, err := scanDriver(r.db.QueryRow(ctx, query,
		driver.Name,
		driver.CPF,
		driver.Email,
		driver.Phone,
		driver.Active,
	))
	if err != nil {
		return nil, translateDriverWriteError(err)
	}
	return created, nil
}

// GetDriver retrieves a driver by id.
func (r *PostgresRepository) GetDriver(ctx context.Context, id int64) (*domain.Driver, error) {
	return r.findDriver(ctx, "id = $1", id)
}

// FindDriverByCPF retrieves a driver by normalised CPF.
func (r *PostgresRepository) FindDriverByCPF(ctx context.Context, cpf string) (*domain.Driver, error) {
	return r.findDriver(ctx, "cpf = $1", cpf)
}

// FindDriverByEmail retrieves a driver by e-mail.
func (r *PostgresRepository) FindDriverByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	return r.findDriver(ctx, "email = $1", email)
}

func (r *PostgresRepository) findDriver(ctx context.Context, where string, arg any) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM motoristas WHERE ` + where
	driver, err := scanDriver(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return driver, nil
}

// UpdateDriver overwrites the mutable driver fields.
func (r *PostgresRepository) UpdateDriver(ctx context.Context, driver *domain.Driver) (*domain.Driver, error) {
	query := `
		UPDATE motoristas
		SET nome = $2, email = $3, telefone = $4, ativo = $5, atualizado_em = NOW()
		WHERE id = $1
		RETURNING ` + driverColumns
	updated, err := scanDriver(r.db.QueryRow(ctx, query,
		driver.ID,
		driver.Name,
		driver.Email,
		driver.Phone,
		driver.Active,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, translateDriverWriteError(err)
	}
	return updated, nil
}

// ListDrivers returns one page of drivers ordered by id plus the total count.
func (r *PostgresRepository) ListDrivers(ctx context.Context, limit, offset int) ([]domain.Driver, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM motoristas`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM motoristas ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	drivers := make([]domain.Driver, 0, limit)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, 0, err
		}
		drivers = append(drivers, *d)
	}
	return drivers, total, rows.Err()
}

// CreateRefill inserts a refill with its already-decided status and anomaly flag.
func (r *PostgresRepository) CreateRefill(ctx context.Context, refill *domain.Refill) (*domain.Refill, error) {
	query := `
		INSERT INTO abastecimentos (
			motorista_id, tipo_combustivel, valor, litros, status, motivo_recusa,
			eh_anomalia, data_abastecimento
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING ` + refillColumns

	var refilledAt any
	if !refill.RefilledAt.IsZero() {
		refilledAt = refill.RefilledAt
	}

	created, err := scanRefill(r.db.QueryRow(ctx, query,
		refill.DriverID,
		refill.FuelType,
		refill.Value,
		refill.Liters,
		refill.Status,
		refill.RejectionReason,
		refill.IsAnomaly,
		refilledAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	return created, nil
}

// GetRefill retrieves a refill by id.
func (r *PostgresRepository) GetRefill(ctx context.Context, id int64) (*domain.Refill, error) {
	refill, err := scanRefill(r.db.QueryRow(ctx, `SELECT `+refillColumns+` FROM abastecimentos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefillNotFound
		}
		return nil, err
	}
	return refill, nil
}

// UpdateRefillStatus persists a workflow transition guarded by the row version.
// eh_anomalia is never written here.
func (r *PostgresRepository) UpdateRefillStatus(ctx context.Context, refill *domain.Refill) (*domain.Refill, error) {
	query := `
		UPDATE abastecimentos
		SET status = $2, motivo_recusa = $3, version = version + 1, atualizado_em = NOW()
		WHERE id = $1 AND version = $4
		RETURNING ` + refillColumns
	updated, err := scanRefill(r.db.QueryRow(ctx, query,
		refill.ID,
		refill.Status,
		refill.RejectionReason,
		refill.Version,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM abastecimentos WHERE id = $1)`, refill.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRefillNotFound
	}
	return nil, ErrVersionConflict
}

// buildRefillWhere renders the filter as a WHERE clause with positional args.
func buildRefillWhere(filter domain.RefillFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.DriverID != nil {
		args = append(args, *filter.DriverID)
		conditions = append(conditions, fmt.Sprintf("motorista_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsAnomaly != nil {
		args = append(args, *filter.IsAnomaly)
		conditions = append(conditions, fmt.Sprintf("eh_anomalia = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListRefills returns one filtered page, newest first, plus the filtered total.
func (r *PostgresRepository) ListRefills(ctx context.Context, filter domain.RefillFilter) ([]domain.Refill, int, error) {
	page, pageSize := domain.NormalizePage(filter.Page, filter.PageSize)
	where, args := buildRefillWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM abastecimentos`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, pageSize, domain.Offset(page, pageSize))
	query := fmt.Sprintf(`SELECT %s FROM abastecimentos%s ORDER BY data_abastecimento DESC, id DESC LIMIT $%d OFFSET $%d`,
		refillColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	refills := make([]domain.Refill, 0, pageSize)
	for rows.Next() {
		refill, err := scanRefill(rows)
		if err != nil {
			return nil, 0, err
		}
		refills = append(refills, *refill)
	}
	return refills, total, rows.Err()
}

// CountRefillsByStatus counts refills currently in the given status.
func (r *PostgresRepository) CountRefillsByStatus(ctx context.Context, status domain.RefillStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM abastecimentos WHERE status = $1`, status).Scan(&count)
	return count, err
}

// CountAnomalies counts refills flagged as anomalous at creation.
func (r *PostgresRepository) CountAnomalies(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM abastecimentos WHERE eh_anomalia = TRUE`).Scan(&count)
	return count, err
}
