package service

import (
	"context"
	"errors"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccessService struct {
	codes  AccessCodeStore
	logger *zap.Logger
}

func NewAccessService(codes AccessCodeStore, logger *zap.Logger) *AccessService {
	return &AccessService{
		codes:  codes,
		logger: logger,
	}
}

// Login находит активный код и возвращает личность для последующих вызовов
func (s *AccessService) Login(ctx context.Context, code string) (model.Actor, error) {
	const op = "login"

	code = model.NormalizeCode(code)
	if code == "" {
		return model.Actor{}, apperr.Validation(op, "code is required")
	}

	ac, err := s.codes.GetActiveByCode(ctx, code)
	if err != nil {
		return model.Actor{}, storeErr(op, err)
	}
	if ac == nil {
		return model.Actor{}, apperr.NotFound(op, "invalid or inactive code")
	}

	s.logger.Info("Code logged in",
		zap.String("code_id", ac.ID.String()),
		zap.String("profile", string(ac.Profile)),
	)

	return ac.Actor(), nil
}

// Actor перечитывает код сессии: неактивный или удалённый код даёт NotFound
func (s *AccessService) Actor(ctx context.Context, codeID uuid.UUID) (model.Actor, error) {
	const op = "check session"

	ac, err := s.codes.GetByID(ctx, codeID)
	if err != nil {
		return model.Actor{}, storeErr(op, err)
	}
	if ac == nil || !ac.IsActive {
		return model.Actor{}, apperr.NotFound(op, "code is no longer active")
	}

	return ac.Actor(), nil
}

// ListTeachers родителю показываются учителя его класса, остальным все
func (s *AccessService) ListTeachers(ctx context.Context, actor model.Actor) ([]*model.AccessCode, error) {
	const op = "list teachers"

	var className *string
	if actor.Is(model.ProfileParent) {
		className = actor.ClassName
	}

	teachers, err := s.codes.ListActiveTeachers(ctx, className)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return teachers, nil
}

type CreateCodeInput struct {
	Code        string        `validate:"required,max=64"`
	Profile     model.Profile `validate:"oneof=admin teacher parent partner"`
	DisplayName string        `validate:"required,max=200"`
	ClassName   *string       `validate:"omitempty,max=50"`
}

// CreateCode создаёт новый код доступа (только админ)
func (s *AccessService) CreateCode(ctx context.Context, actor model.Actor, in CreateCodeInput) (*model.AccessCode, error) {
	const op = "create code"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return nil, err
	}

	in.Code = model.NormalizeCode(in.Code)
	in.ClassName = trimmed(in.ClassName)
	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	code := &model.AccessCode{
		ID:          uuid.New(),
		Code:        in.Code,
		Profile:     in.Profile,
		DisplayName: in.DisplayName,
		ClassName:   in.ClassName,
		IsActive:    true,
	}

	if err := s.codes.Create(ctx, code); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, apperr.Conflict(op, "code %s already exists", in.Code)
		}
		return nil, storeErr(op, err)
	}

	s.logger.Info("Access code created",
		zap.String("code_id", code.ID.String()),
		zap.String("profile", string(code.Profile)),
	)

	return code, nil
}

// SetActive включает или выключает код. Коды администратора не выключаются.
func (s *AccessService) SetActive(ctx context.Context, actor model.Actor, id uuid.UUID, active bool) error {
	const op = "set code active"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return err
	}

	if !active {
		code, err := s.getCode(ctx, op, id)
		if err != nil {
			return err
		}
		if code.Profile == model.ProfileAdmin {
			return apperr.InvalidState(op, "admin codes cannot be deactivated")
		}
	}

	ok, err := s.codes.SetActive(ctx, id, active)
	if err != nil {
		return storeErr(op, err)
	}
	if !ok {
		return apperr.NotFound(op, "code %s not found", id)
	}

	s.logger.Info("Access code updated",
		zap.String("code_id", id.String()),
		zap.Bool("active", active),
	)

	return nil
}

// ToggleActive переключает активность и возвращает код в новом состоянии
func (s *AccessService) ToggleActive(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.AccessCode, error) {
	const op = "toggle code"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return nil, err
	}

	code, err := s.getCode(ctx, op, id)
	if err != nil {
		return nil, err
	}

	if err := s.SetActive(ctx, actor, id, !code.IsActive); err != nil {
		return nil, err
	}

	code.IsActive = !code.IsActive
	return code, nil
}

// DeleteCode удаляет код. Коды администратора не удаляются.
func (s *AccessService) DeleteCode(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	const op = "delete code"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return err
	}

	code, err := s.getCode(ctx, op, id)
	if err != nil {
		return err
	}
	if code.Profile == model.ProfileAdmin {
		return apperr.InvalidState(op, "admin codes cannot be deleted")
	}

	ok, err := s.codes.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return apperr.InvalidState(op, "code still holds bookings")
		}
		return storeErr(op, err)
	}
	if !ok {
		return apperr.NotFound(op, "code %s not found", id)
	}

	s.logger.Info("Access code deleted", zap.String("code_id", id.String()))

	return nil
}

// ListCodes все коды (только админ)
func (s *AccessService) ListCodes(ctx context.Context, actor model.Actor) ([]*model.AccessCode, error) {
	const op = "list codes"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return nil, err
	}

	codes, err := s.codes.List(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return codes, nil
}

func (s *AccessService) getCode(ctx context.Context, op string, id uuid.UUID) (*model.AccessCode, error) {
	code, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if code == nil {
		return nil, apperr.NotFound(op, "code %s not found", id)
	}
	return code, nil
}
