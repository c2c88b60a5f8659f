package namespace

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a unit does not exist in, or is not visible through, a resolver
	ErrNotFound = errors.New("unit not found")
)

// NotFound returns an error for name that matches ErrNotFound.
func NotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}
