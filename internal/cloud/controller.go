// Package cloud drives the managed container service that hosts each game
// server. Every call receives the account descriptor explicitly; nothing here
// holds credentials between calls.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"gamewarden/internal/domain"
)

var ErrNoRunningTask = errors.New("no running task")

type Controller interface {
	// SetDesiredCount scales the server's service to count tasks and returns
	// once the request is accepted. It does not wait for tasks to settle.
	SetDesiredCount(ctx context.Context, acct domain.AccountDescriptor, count int) error

	// ResolvePublicEndpoint returns the public address of the running task,
	// or an error wrapping ErrNoRunningTask.
	ResolvePublicEndpoint(ctx context.Context, acct domain.AccountDescriptor) (string, error)
}

type ScalingError struct {
	Account      string
	DesiredCount int
	Err          error
}

func (e *ScalingError) Error() string {
	return fmt.Sprintf("scale %s to %d: %v", e.Account, e.DesiredCount, e.Err)
}

func (e *ScalingError) Unwrap() error { return e.Err }
