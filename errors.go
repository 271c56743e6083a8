package cubealarm

import "errors"

// Sentinel errors for the cubealarm package.
var (
	ErrAlreadyStarted = errors.New("cubealarm: monitor already started")
	ErrClosed         = errors.New("cubealarm: monitor closed")
	ErrNotReady       = errors.New("cubealarm: cube session not ready")
)
