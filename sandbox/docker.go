package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DockerProvider provisions sandboxes as Docker containers via the CLI.
// Containers start idle, receive the demo file with `docker cp`, and serve
// it with python's built-in http.server bound to the container port.
type DockerProvider struct {
	binary string
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewDockerProvider creates a Docker-CLI-backed sandbox provider.
// binary defaults to "docker" when empty.
func NewDockerProvider(binary string, logger *zap.Logger) *DockerProvider {
	if binary == "" {
		binary = "docker"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerProvider{
		binary: binary,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// Create starts one idle container for the given spec.
func (p *DockerProvider) Create(ctx context.Context, spec RuntimeSpec) (Environment, error) {
	name := fmt.Sprintf("demoforge_%d", time.Now().UnixNano())
	args := buildRunArgs(name, spec)

	p.logger.Debug("creating sandbox container",
		zap.String("container", name),
		zap.String("image", spec.Image),
		zap.Strings("args", args),
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("docker run failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	p.mu.Lock()
	p.active[name] = struct{}{}
	p.mu.Unlock()

	return &dockerEnvironment{
		provider: p,
		name:     name,
		spec:     spec,
	}, nil
}

// ActiveCount returns the number of containers not yet torn down.
func (p *DockerProvider) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Ping verifies the docker binary is present and the daemon answers.
// Used by the readiness endpoint.
func (p *DockerProvider) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("docker binary not found: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, "version", "--format", "{{.Server.Version}}")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker daemon unreachable: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Cleanup force-removes every container still tracked as active.
func (p *DockerProvider) Cleanup() error {
	p.mu.Lock()
	names := make([]string, 0, len(p.active))
	for name := range p.active {
		names = append(names, name)
	}
	p.mu.Unlock()

	for _, name := range names {
		p.forceRemove(name)
	}

	p.logger.Info("cleaned up sandbox containers", zap.Int("count", len(names)))
	return nil
}

func (p *DockerProvider) forceRemove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, "rm", "-f", name)
	cmd.Run()

	p.mu.Lock()
	delete(p.active, name)
	p.mu.Unlock()

	p.logger.Debug("removed sandbox container", zap.String("container", name))
}

// buildRunArgs assembles the `docker run` invocation for a sandbox.
// The container publishes its fixed port on an ephemeral localhost port and
// idles until a server is started in it.
func buildRunArgs(name string, spec RuntimeSpec) []string {
	args := []string{
		"run", "-d",
		"--name", name,
	}

	if spec.MemoryLimit != "" {
		args = append(args, "--memory", spec.MemoryLimit, "--memory-swap", spec.MemoryLimit)
	}
	if spec.CPULimit != "" {
		args = append(args, "--cpus", spec.CPULimit)
	}

	args = append(args,
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"--pids-limit", "100",
	)

	args = append(args, "-p", fmt.Sprintf("127.0.0.1:0:%d", spec.ContainerPort))

	for k, v := range spec.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, "-w", "/srv", spec.Image, "sleep", "infinity")
	return args
}

type dockerEnvironment struct {
	provider *DockerProvider
	name     string
	spec     RuntimeSpec

	mu     sync.Mutex
	closed bool
}

func (e *dockerEnvironment) ID() string { return e.name }

func (e *dockerEnvironment) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Deploy copies a single file into the container working directory.
func (e *dockerEnvironment) Deploy(ctx context.Context, filename string, content []byte) error {
	if e.isClosed() {
		return ErrClosed
	}

	tempDir, err := os.MkdirTemp("", "demoforge_deploy_")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	local := filepath.Join(tempDir, filepath.Base(filename))
	if err := os.WriteFile(local, content, 0644); err != nil {
		return fmt.Errorf("failed to write deploy file: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.provider.binary, "cp", local, e.name+":/srv/"+filepath.Base(filename))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker cp failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// StartServer launches the static server and resolves its published address.
func (e *dockerEnvironment) StartServer(ctx context.Context) (string, error) {
	if e.isClosed() {
		return "", ErrClosed
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.provider.binary,
		"exec", "-d", e.name,
		"python3", "-m", "http.server", fmt.Sprintf("%d", e.spec.ContainerPort), "--bind", "0.0.0.0",
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to start static server: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out bytes.Buffer
	portCmd := exec.CommandContext(ctx, e.provider.binary, "port", e.name, fmt.Sprintf("%d", e.spec.ContainerPort))
	portCmd.Stdout = &out
	if err := portCmd.Run(); err != nil {
		return "", fmt.Errorf("failed to resolve container port: %w", err)
	}

	addr, err := parsePortOutput(out.String())
	if err != nil {
		return "", err
	}
	return "http://" + addr, nil
}

// Logs returns the container's combined output lines.
func (e *dockerEnvironment) Logs(ctx context.Context) ([]string, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.provider.binary, "logs", e.name)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("docker logs failed: %w", err)
	}

	raw := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Close removes the container. Idempotent.
func (e *dockerEnvironment) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.provider.forceRemove(e.name)
	return nil
}

// parsePortOutput extracts the first host address from `docker port` output.
// Docker may print multiple lines (IPv4 and IPv6); the IPv4 line wins.
func parsePortOutput(out string) (string, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return "", fmt.Errorf("no published port found")
	}
	for _, line := range lines {
		addr := strings.TrimSpace(line)
		if addr == "" {
			continue
		}
		// Lines look like "80/tcp -> 127.0.0.1:49154" or "127.0.0.1:49154".
		if idx := strings.Index(addr, "->"); idx >= 0 {
			addr = strings.TrimSpace(addr[idx+2:])
		}
		if strings.HasPrefix(addr, "[") {
			continue // IPv6
		}
		if addr != "" {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no usable published port in %q", out)
}

var _ Provider = (*DockerProvider)(nil)
var _ Environment = (*dockerEnvironment)(nil)
