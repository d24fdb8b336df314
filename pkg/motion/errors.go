package motion

import "errors"

var (
	// ErrDestroyed is the panic value raised when a Manager is used after Destroy.
	ErrDestroyed = errors.New("motion: manager used after destroy")

	// ErrDefinitionNotFound is returned when a group/index has no definition.
	ErrDefinitionNotFound = errors.New("motion: definition not found")

	// ErrLoadFailed marks a slot whose load attempt errored.
	ErrLoadFailed = errors.New("motion: load failed")

	// ErrNoLoader is returned when no asset fetcher was configured.
	ErrNoLoader = errors.New("motion: no asset loader configured")

	// ErrInvalidPriority is returned by ParsePriority.
	ErrInvalidPriority = errors.New("motion: invalid priority")

	// ErrInvalidPreload is returned by ParsePreload.
	ErrInvalidPreload = errors.New("motion: invalid preload strategy")
)
