package repository

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/school_scheduler/internal/repository/base"
)

// Constraint failures reported distinctly from connectivity errors.
var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("referenced row does not exist")
)

// classify wraps err with op, tagging constraint violations with the
// sentinels above so services can tell them from transport failures.
func classify(op string, err error) error {
	switch {
	case base.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrUniqueViolation, err)
	case base.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrForeignKeyViolation, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
