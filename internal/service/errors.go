package service

import "errors"

var (
	// ErrRevisionInProgress rejects a request while the project is
	// generating.
	ErrRevisionInProgress = errors.New("a generation is already running for this project")
	ErrEmptyPrompt        = errors.New("prompt must not be empty")
	// ErrEmptyCode means the model answered with nothing but a code fence.
	ErrEmptyCode = errors.New("generated document is empty")
)
