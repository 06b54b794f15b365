package inventory

import (
	"errors"

	"github.com/schaermu/shelf/internal/asset"
)

var (
	// ErrInvalidOperand is returned by intent methods for bad paths, name
	// collisions, invalid destinations and paths outside the inventory.
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrNotAnAsset is returned when a path does not resolve to an asset.
	ErrNotAnAsset = asset.ErrNotAnAsset

	// ErrInvalidOperation is returned for well-formed requests that break a
	// structural rule, such as removing a non-empty directory.
	ErrInvalidOperation = errors.New("invalid inventory operation")

	// ErrMissingConfig is returned when a required configuration key is unset.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrExecution wraps failures that happen while committing.
	ErrExecution = errors.New("execution failed")
)
