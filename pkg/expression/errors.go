package expression

import "errors"

var (
	// ErrNotFound is returned when a Ref matches no definition.
	ErrNotFound = errors.New("expression: not found")

	// ErrLoadFailed wraps the cause of a failed expression load.
	ErrLoadFailed = errors.New("expression: load failed")

	// ErrNoLoader is returned when no fetcher was configured.
	ErrNoLoader = errors.New("expression: no loader configured")
)
