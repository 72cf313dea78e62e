package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrStore wraps persistence failures. They are safe to retry.
	ErrStore = errors.New("memory store failure")
	// ErrInvalidRequest reports a request that failed validation.
	ErrInvalidRequest = errors.New("invalid memory request")
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
