// Package sandbox provides disposable execution environments for rendering
// generated demos. Each artifact execution gets exactly one environment,
// which must be closed by the caller regardless of outcome.
package sandbox

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on an environment that was torn down.
var ErrClosed = errors.New("sandbox: environment closed")

// RuntimeSpec describes the environment to provision.
type RuntimeSpec struct {
	// Image is the container image to run.
	Image string

	// ContainerPort is the fixed port the static server listens on inside
	// the environment.
	ContainerPort int

	// MemoryLimit is passed to the runtime verbatim (e.g. "256m").
	MemoryLimit string

	// CPULimit caps CPU usage (e.g. "0.5").
	CPULimit string

	// Env holds extra environment variables.
	Env map[string]string
}

// Environment is a single provisioned sandbox.
type Environment interface {
	// ID returns the environment's unique identifier.
	ID() string

	// Deploy writes a single file into the environment's working directory.
	Deploy(ctx context.Context, filename string, content []byte) error

	// StartServer starts a static file server on the configured container
	// port and returns the host-reachable base URL.
	StartServer(ctx context.Context) (string, error)

	// Logs returns the environment's collected output lines.
	Logs(ctx context.Context) ([]string, error)

	// Close tears the environment down. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Provider provisions environments.
type Provider interface {
	// Create provisions one environment per call.
	Create(ctx context.Context, spec RuntimeSpec) (Environment, error)
}
