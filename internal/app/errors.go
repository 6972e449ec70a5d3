package app

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrSourceNotFound = errors.New("source not found")
	// ErrIndexingFailed means the source had content but no chunk could be embedded.
	ErrIndexingFailed = errors.New("indexing failed")
)
