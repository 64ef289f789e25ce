package engine

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownRuntime is returned by backend calls that reference an engine id
// the backend has no connection for.
var ErrUnknownRuntime = errors.New("engine: unknown runtime id")

// UnsubscribeFunc detaches a status subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Backend abstracts the engine process performing container-level work.
// Implemented by DockerBackend; tests substitute fakes.
type Backend interface {
	// Detect probes the host for installed engines. Per-kind probe failures
	// are collected in the result, not returned as an error.
	Detect(ctx context.Context, force bool) (*DetectionResult, error)

	// StartPolling begins backend-side health checking. Idempotent.
	StartPolling(ctx context.Context) error
	// StopPolling halts health checking. Idempotent.
	StopPolling(ctx context.Context) error

	// SubscribeStatus registers a handler for pushed health updates and
	// returns a func that detaches it.
	SubscribeStatus(handler func(StatusUpdate)) (UnsubscribeFunc, error)

	ListContainers(ctx context.Context, rt Runtime, opts ListOptions) ([]Container, error)

	StartContainer(ctx context.Context, rt Runtime, id string) error
	StopContainer(ctx context.Context, rt Runtime, id string, timeout time.Duration) error
	RestartContainer(ctx context.Context, rt Runtime, id string, timeout time.Duration) error
	PauseContainer(ctx context.Context, rt Runtime, id string) error
	UnpauseContainer(ctx context.Context, rt Runtime, id string) error
	RemoveContainer(ctx context.Context, rt Runtime, id string, force, volumes bool) error
}
