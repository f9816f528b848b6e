package status

import "errors"

var (
	// ErrConfigurationMissing pauses admission for the resource; it is
	// reported to operators, never papered over with defaults.
	ErrConfigurationMissing = errors.New("waitroom: no queue configuration for resource")

	// ErrSessionNotFound is a retryable signal telling the client to rejoin.
	ErrSessionNotFound = errors.New("waitroom: session not found")

	// ErrCapacityInvariant marks active count exceeding the configured
	// maximum. It is logged and recovered by recounting from the store.
	ErrCapacityInvariant = errors.New("waitroom: active sessions exceed configured maximum")

	// ErrStaleWrite marks a mutation raced by a newer state version. Retried
	// internally, never surfaced to a participant.
	ErrStaleWrite = errors.New("waitroom: state version changed during mutation")
)
