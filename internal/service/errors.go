package service

import (
	"errors"

	"picturehub/internal/apperr"
	"picturehub/internal/repository"
)

// storeError maps repository sentinels onto the caller-facing taxonomy.
// Errors that are already classified pass through unchanged.
func storeError(err error, what string) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, repository.ErrQuotaExceeded):
		return apperr.Forbidden("space quota exceeded")
	default:
		return apperr.Internal(err, "failed to access %s", what)
	}
}
