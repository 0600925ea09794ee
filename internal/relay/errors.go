package relay

import "errors"

var (
	// ErrRelayClosed is returned by Publish and Subscribe after Close.
	ErrRelayClosed = errors.New("relay closed")

	// ErrTooManySubscribers is returned when the subscriber limit is reached.
	ErrTooManySubscribers = errors.New("subscriber limit reached")
)
