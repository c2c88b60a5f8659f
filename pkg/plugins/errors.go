package plugins

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery matches every error returned by plugin discovery
	ErrDiscovery = errors.New("plugin discovery failed")

	// ErrNotDirectory is returned when a plugin root is not a directory
	ErrNotDirectory = errors.New("a plugin root must be a directory")

	// ErrProvider is returned when a declared service provider cannot be loaded
	ErrProvider = errors.New("service provider failed")
)

// DiscoveryError reports a failed walk of one plugin root
type DiscoveryError struct {
	Root string
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	if e.Path != "" && e.Path != e.Root {
		return fmt.Sprintf("discover plugins in %s: %s: %v", e.Root, e.Path, e.Err)
	}
	return fmt.Sprintf("discover plugins in %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is makes every DiscoveryError match ErrDiscovery
func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}
