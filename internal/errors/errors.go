package errors

import "errors"

// Core error taxonomy. The first three are permanent and surfaced to the
// caller unchanged; ErrProviderUnavailable is transient and retryable;
// ErrUnknownNotification is discarded by the webhook path, never surfaced.
var ErrNotFound = errors.New("resource not found")
var ErrInsufficientCapacity = errors.New("insufficient tier capacity")
var ErrInvalidState = errors.New("operation not allowed in current payment state")
var ErrProviderUnavailable = errors.New("payment provider unavailable")
var ErrUnknownNotification = errors.New("notification references unknown payment")
