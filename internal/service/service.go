package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// calendar decides what "now" and "today" are for the school.
type calendar struct {
	loc *time.Location
	now func() time.Time
}

func newCalendar(loc *time.Location) calendar {
	if loc == nil {
		loc = time.UTC
	}
	return calendar{loc: loc, now: time.Now}
}

func (c calendar) today() time.Time {
	return model.DateOf(c.now().In(c.loc))
}

// validateInput runs struct tags and reports every failed field at once.
func validateInput(op string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation(op, "%v", err)
	}

	msgs := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		if fe.Param() != "" {
			return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
	})
	return apperr.Validation(op, "%s", strings.Join(msgs, "; "))
}

// storeErr classifies a store failure for the caller.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrUniqueViolation):
		return apperr.Wrap(apperr.KindConflict, op, err)
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return apperr.Wrap(apperr.KindNotFound, op, err)
	default:
		return apperr.Unavailable(op, err)
	}
}

func requireProfile(op string, actor model.Actor, profiles ...model.Profile) error {
	if actor.Is(profiles...) {
		return nil
	}
	return apperr.Forbidden(op, "not allowed for profile %q", actor.Profile)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
