package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accessCodeColumns = `id, code, profile, display_name, class_name, is_active, created_at`

type AccessCodeRepository struct {
	*base.Repository
}

func NewAccessCodeRepository(pool *pgxpool.Pool) *AccessCodeRepository {
	return &AccessCodeRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт код доступа. Повтор кода возвращает ErrUniqueViolation.
func (r *AccessCodeRepository) Create(ctx context.Context, code *model.AccessCode) error {
	query := `
		INSERT INTO access_codes (id, code, profile, display_name, class_name, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		code.ID,
		code.Code,
		code.Profile,
		code.DisplayName,
		code.ClassName,
		code.IsActive,
	).Scan(&code.CreatedAt)

	if err != nil {
		return classify("create access code", err)
	}

	return nil
}

// GetByID получает код по ID
func (r *AccessCodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes WHERE id = $1`

	code, err := scanAccessCode(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access code by id: %w", err)
	}

	return code, nil
}

// GetActiveByCode находит активный код по строке (уже нормализованной)
func (r *AccessCodeRepository) GetActiveByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes WHERE code = $1 AND is_active = true`

	ac, err := scanAccessCode(r.Pool().QueryRow(ctx, query, code))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access code by code: %w", err)
	}

	return ac, nil
}

// ListActiveTeachers возвращает активных учителей, при className != nil только этого класса
func (r *AccessCodeRepository) ListActiveTeachers(ctx context.Context, className *string) ([]*model.AccessCode, error) {
	query := `
		SELECT ` + accessCodeColumns + `
		FROM access_codes
		WHERE profile = 'teacher'
		  AND is_active = true
		  AND ($1::text IS NULL OR class_name = $1)
		ORDER BY display_name
	`

	rows, err := r.Pool().Query(ctx, query, className)
	if err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}

	return collectAccessCodes(rows)
}

// List возвращает все коды, сортировка по профилю и имени
func (r *AccessCodeRepository) List(ctx context.Context) ([]*model.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes ORDER BY profile, display_name`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list access codes: %w", err)
	}

	return collectAccessCodes(rows)
}

// SetActive включает или выключает код. false если кода нет.
func (r *AccessCodeRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	affected, err := r.ExecAffected(ctx, `UPDATE access_codes SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return false, fmt.Errorf("set access code active: %w", err)
	}
	return affected > 0, nil
}

// Delete удаляет код. Слоты учителя удаляются каскадом.
func (r *AccessCodeRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM access_codes WHERE id = $1`, id)
	if err != nil {
		return false, classify("delete access code", err)
	}
	return affected > 0, nil
}

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	var code model.AccessCode
	err := row.Scan(
		&code.ID,
		&code.Code,
		&code.Profile,
		&code.DisplayName,
		&code.ClassName,
		&code.IsActive,
		&code.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func collectAccessCodes(rows pgx.Rows) ([]*model.AccessCode, error) {
	defer rows.Close()

	var codes []*model.AccessCode
	for rows.Next() {
		code, err := scanAccessCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access codes: %w", err)
	}

	return codes, nil
}
