package reactor

import "errors"

var (
	// ErrUnsupported is returned on platforms without epoll or kqueue.
	ErrUnsupported = errors.New("reactor: platform not supported")

	// ErrWriteTimeout is returned by WriteAll when the socket stayed unwritable
	// past the deadline.
	ErrWriteTimeout = errors.New("reactor: write timed out")
)
