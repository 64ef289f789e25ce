package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Candidate is one engine socket the backend probes during detection.
type Candidate struct {
	ID     string // stable runtime id, unique per candidate list
	Kind   Kind
	Host   string // docker API endpoint, e.g. unix:///var/run/docker.sock
	Binary string // CLI binary to locate on PATH
	Mode   string // "", "rootless"
}

// DefaultCandidates returns the sockets probed on a typical Linux host.
func DefaultCandidates() []Candidate {
	candidates := []Candidate{}

	dockerHost := os.Getenv("DOCKER_HOST")
	if dockerHost == "" {
		dockerHost = "unix:///var/run/docker.sock"
	}
	candidates = append(candidates, Candidate{
		ID:     "docker",
		Kind:   KindDocker,
		Host:   dockerHost,
		Binary: "docker",
	})

	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		candidates = append(candidates, Candidate{
			ID:     "podman-rootless",
			Kind:   KindPodman,
			Host:   "unix://" + filepath.Join(dir, "podman", "podman.sock"),
			Binary: "podman",
			Mode:   "rootless",
		})
	}
	candidates = append(candidates, Candidate{
		ID:     "podman",
		Kind:   KindPodman,
		Host:   "unix:///run/podman/podman.sock",
		Binary: "podman",
	})

	return candidates
}

// DockerBackendConfig configures a DockerBackend.
type DockerBackendConfig struct {
	Candidates   []Candidate
	PollInterval time.Duration
}

// DockerBackend implements Backend over the Docker Engine API, which both
// Docker and Podman (compat socket) serve.
type DockerBackend struct {
	cfg    DockerBackendConfig
	logger *slog.Logger

	mu         sync.Mutex
	clients    map[string]*client.Client // runtime id → connected client
	lastResult *DetectionResult
	subs       map[int]func(StatusUpdate)
	nextSub    int
	pollCancel context.CancelFunc
}

// NewDockerBackend creates a backend probing the given candidates.
func NewDockerBackend(cfg DockerBackendConfig, logger *slog.Logger) *DockerBackend {
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultCandidates()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &DockerBackend{
		cfg:     cfg,
		logger:  logger.With("component", "docker-backend"),
		clients: make(map[string]*client.Client),
		subs:    make(map[int]func(StatusUpdate)),
	}
}

// Detect probes every candidate socket. Results are cached; force bypasses
// the cache and re-probes.
func (b *DockerBackend) Detect(ctx context.Context, force bool) (*DetectionResult, error) {
	b.mu.Lock()
	if !force && b.lastResult != nil {
		cached := *b.lastResult
		b.mu.Unlock()
		return &cached, nil
	}
	b.mu.Unlock()

	started := time.Now()
	result := &DetectionResult{}
	clients := make(map[string]*client.Client)

	for _, cand := range b.cfg.Candidates {
		rt, cli, err := b.probe(ctx, cand)
		if err != nil {
			// Socket absent and binary absent means the engine is simply not
			// installed. Anything else is worth reporting.
			if rt == nil {
				b.logger.Debug("engine not installed", "candidate", cand.ID, "error", err)
				continue
			}
			result.Errors = append(result.Errors, DetectionError{Kind: cand.Kind, Error: err.Error()})
		}
		if rt != nil {
			result.Runtimes = append(result.Runtimes, *rt)
			if cli != nil {
				clients[rt.ID] = cli
			}
		}
	}

	result.CompletedAt = time.Now()
	result.Duration = time.Since(started)

	b.mu.Lock()
	b.clients = clients
	cached := *result
	b.lastResult = &cached
	b.mu.Unlock()

	b.logger.Info("engine detection complete",
		"found", len(result.Runtimes),
		"errors", len(result.Errors),
		"duration", result.Duration,
	)
	return result, nil
}

// probe checks one candidate. Returns (nil, nil, err) when the engine is not
// installed at all, and a stopped/error Runtime when it is installed but
// unreachable.
func (b *DockerBackend) probe(ctx context.Context, cand Candidate) (*Runtime, *client.Client, error) {
	binPath, lookErr := exec.LookPath(cand.Binary)

	cli, err := client.NewClientWithOpts(
		client.WithHost(cand.Host),
		client.WithAPIVersionNegotiation(),
	)
	if err == nil {
		_, err = cli.Ping(ctx)
	}
	if err != nil {
		if cli != nil {
			cli.Close()
		}
		if lookErr != nil {
			return nil, nil, fmt.Errorf("probe %s: %w", cand.ID, err)
		}
		// Installed but daemon not reachable.
		return &Runtime{
			ID:          cand.ID,
			Kind:        cand.Kind,
			Path:        binPath,
			Status:      StatusStopped,
			Mode:        cand.Mode,
			Error:       err.Error(),
			LastChecked: time.Now(),
			DetectedAt:  time.Now(),
		}, nil, nil
	}

	rt := &Runtime{
		ID:          cand.ID,
		Kind:        cand.Kind,
		Path:        binPath,
		Status:      StatusRunning,
		Mode:        cand.Mode,
		LastChecked: time.Now(),
		DetectedAt:  time.Now(),
	}

	ver, err := cli.ServerVersion(ctx)
	if err != nil {
		rt.Error = err.Error()
		return rt, cli, fmt.Errorf("server version for %s: %w", cand.ID, err)
	}

	// A docker socket served by podman's compatibility layer reports a
	// podman platform name.
	if cand.Kind == KindDocker && strings.Contains(strings.ToLower(ver.Platform.Name), "podman") {
		rt.Kind = KindPodman
		rt.CompatLayer = true
	}

	parsed, perr := ParseVersion(ver.Version)
	if perr != nil {
		b.logger.Warn("unparseable engine version", "runtime", cand.ID, "version", ver.Version)
	}
	rt.Version = parsed
	rt.BelowMinimum = BelowMinimum(rt.Kind, parsed)

	return rt, cli, nil
}

// StartPolling launches the health-poll loop. Idempotent.
func (b *DockerBackend) StartPolling(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollCancel != nil {
		return nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	b.pollCancel = cancel
	go b.pollLoop(pollCtx)
	b.logger.Info("health polling started", "interval", b.cfg.PollInterval)
	return nil
}

// StopPolling halts the health-poll loop. Idempotent.
func (b *DockerBackend) StopPolling(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollCancel == nil {
		return nil
	}
	b.pollCancel()
	b.pollCancel = nil
	b.logger.Info("health polling stopped")
	return nil
}

func (b *DockerBackend) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *DockerBackend) pollOnce(ctx context.Context) {
	b.mu.Lock()
	clients := make(map[string]*client.Client, len(b.clients))
	for id, cli := range b.clients {
		clients[id] = cli
	}
	b.mu.Unlock()

	for id, cli := range clients {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := cli.Ping(pingCtx)
		cancel()

		update := StatusUpdate{RuntimeID: id, Timestamp: time.Now()}
		if err != nil {
			if client.IsErrConnectionFailed(err) {
				update.Status = StatusStopped
			} else {
				update.Status = StatusError
			}
			update.Error = err.Error()
		} else {
			update.Status = StatusRunning
		}
		b.dispatch(update)
	}
}

func (b *DockerBackend) dispatch(update StatusUpdate) {
	b.mu.Lock()
	handlers := make([]func(StatusUpdate), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(update)
	}
}

// SubscribeStatus registers a handler for pushed health updates.
func (b *DockerBackend) SubscribeStatus(handler func(StatusUpdate)) (UnsubscribeFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}, nil
}

func (b *DockerBackend) clientFor(rt Runtime) (*client.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cli, ok := b.clients[rt.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuntime, rt.ID)
	}
	return cli, nil
}

// ListContainers fetches the container list from the given engine.
func (b *DockerBackend) ListContainers(ctx context.Context, rt Runtime, opts ListOptions) ([]Container, error) {
	cli, err := b.clientFor(rt)
	if err != nil {
		return nil, err
	}

	f := filters.NewArgs()
	for key, value := range opts.Filters {
		f.Add(key, value)
	}
	summaries, err := cli.ContainerList(ctx, container.ListOptions{
		All:     opts.All,
		Size:    opts.Size,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list containers on %s: %w", rt.ID, err)
	}

	result := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		result = append(result, containerFromSummary(s))
	}
	return result, nil
}

func containerFromSummary(s types.Container) Container {
	name := ""
	if len(s.Names) > 0 {
		// Docker prefixes names with /
		name = strings.TrimPrefix(s.Names[0], "/")
	}

	c := Container{
		ID:         s.ID,
		Name:       name,
		Image:      s.Image,
		ImageID:    s.ImageID,
		Command:    s.Command,
		Created:    s.Created,
		State:      ContainerState(s.State),
		Status:     s.Status,
		Labels:     s.Labels,
		SizeRw:     s.SizeRw,
		SizeRootFs: s.SizeRootFs,
	}

	for _, p := range s.Ports {
		c.Ports = append(c.Ports, Port{
			IP:          p.IP,
			PrivatePort: p.PrivatePort,
			PublicPort:  p.PublicPort,
			Type:        p.Type,
		})
	}
	if s.NetworkSettings != nil {
		for netName := range s.NetworkSettings.Networks {
			c.Networks = append(c.Networks, netName)
		}
		sort.Strings(c.Networks)
	}
	for _, m := range s.Mounts {
		c.Mounts = append(c.Mounts, Mount{
			Type:        string(m.Type),
			Source:      m.Source,
			Destination: m.Destination,
			ReadWrite:   m.RW,
		})
	}
	return c
}

func (b *DockerBackend) StartContainer(ctx context.Context, rt Runtime, id string) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("starting container", "runtime", rt.ID, "container", id)
	if err := cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) StopContainer(ctx context.Context, rt Runtime, id string, timeout time.Duration) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("stopping container", "runtime", rt.ID, "container", id, "timeout", timeout)
	opts := container.StopOptions{}
	if timeout > 0 {
		secs := int(timeout.Seconds())
		opts.Timeout = &secs
	}
	if err := cli.ContainerStop(ctx, id, opts); err != nil {
		return fmt.Errorf("stop container %q: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) RestartContainer(ctx context.Context, rt Runtime, id string, timeout time.Duration) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("restarting container", "runtime", rt.ID, "container", id)
	opts := container.StopOptions{}
	if timeout > 0 {
		secs := int(timeout.Seconds())
		opts.Timeout = &secs
	}
	if err := cli.ContainerRestart(ctx, id, opts); err != nil {
		return fmt.Errorf("restart container %q: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) PauseContainer(ctx context.Context, rt Runtime, id string) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("pausing container", "runtime", rt.ID, "container", id)
	if err := cli.ContainerPause(ctx, id); err != nil {
		return fmt.Errorf("pause container %q: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) UnpauseContainer(ctx context.Context, rt Runtime, id string) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("unpausing container", "runtime", rt.ID, "container", id)
	if err := cli.ContainerUnpause(ctx, id); err != nil {
		return fmt.Errorf("unpause container %q: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) RemoveContainer(ctx context.Context, rt Runtime, id string, force, volumes bool) error {
	cli, err := b.clientFor(rt)
	if err != nil {
		return err
	}
	b.logger.Info("removing container", "runtime", rt.ID, "container", id, "force", force, "volumes", volumes)
	if err := cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: volumes,
	}); err != nil {
		return fmt.Errorf("remove container %q: %w", id, err)
	}
	return nil
}
