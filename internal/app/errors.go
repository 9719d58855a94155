package app

import (
	"errors"
	"fmt"

	"github.com/smfs18/desafio-backend/internal/store"
)

// Outcome errors surfaced to the API layer. Match them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// translateStoreError maps repository sentinels onto outcome errors while
// keeping the store error in the chain.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrRefillNotFound), errors.Is(err, store.ErrDriverNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, store.ErrDuplicateCPF),
		errors.Is(err, store.ErrDuplicateEmail):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
