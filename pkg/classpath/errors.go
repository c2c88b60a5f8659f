package classpath

import "errors"

var (
	// ErrClosed is returned by operations on a closed classpath
	ErrClosed = errors.New("classpath closed")

	// ErrUnsupportedLocation is returned by Open for locations that are neither file nor archive resources
	ErrUnsupportedLocation = errors.New("unsupported resource location")

	// ErrInvalidName is returned for resource names that escape their entry
	ErrInvalidName = errors.New("invalid resource name")
)
