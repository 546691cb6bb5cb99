package sessionstore

import "errors"

var (
	// ErrNotReady is returned by operations issued against a store whose
	// setup failed (connection or collection could not be established).
	ErrNotReady = errors.New("sessionstore: store is not ready")

	// ErrClosed is returned by operations issued after Close.
	ErrClosed = errors.New("sessionstore: store is closed")
)
