package service

import (
	"errors"
	"fmt"

	"github.com/untibullet/sprint-rollover/internal/repository"
)

// NotFoundError называет сущность, которую не удалось найти.
// errors.Is(err, repository.ErrNotFound) для нее истинно.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return repository.ErrNotFound
}

// notFound заменяет repository.ErrNotFound на NotFoundError с указанием ID
func notFound(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", repository.ErrInvalidInput, fmt.Sprintf(format, args...))
}
