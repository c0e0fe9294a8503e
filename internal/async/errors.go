package async

import "errors"

var (
	// ErrChannelCompleted is returned by Channel writes after Complete, and by
	// reads once a completed channel has been drained.
	ErrChannelCompleted = errors.New("async: channel completed")

	// ErrDisposed is returned by an EventEmitter after Dispose.
	ErrDisposed = errors.New("async: object disposed")
)
