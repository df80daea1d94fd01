package domain

import "errors"

var (
	ErrUnknownServer       = errors.New("unknown server")
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrEndpointUnavailable = errors.New("server endpoint unavailable")
)
