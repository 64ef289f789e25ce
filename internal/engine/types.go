package engine

import (
	"time"
)

// Kind identifies a container engine family.
type Kind string

const (
	KindDocker Kind = "docker"
	KindPodman Kind = "podman"
)

// Status is the health of a detected engine.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Runtime is a detected container-engine installation.
type Runtime struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Path         string    `json:"path"`
	Version      Version   `json:"version"`
	Status       Status    `json:"status"`
	LastChecked  time.Time `json:"last_checked"`
	DetectedAt   time.Time `json:"detected_at"`
	Mode         string    `json:"mode,omitempty"`
	CompatLayer  bool      `json:"compat_layer,omitempty"`
	Error        string    `json:"error,omitempty"`
	BelowMinimum bool      `json:"below_minimum,omitempty"`
}

// ContainerState is the lifecycle state reported by the engine.
type ContainerState string

const (
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StatePaused     ContainerState = "paused"
	StateRestarting ContainerState = "restarting"
	StateRemoving   ContainerState = "removing"
	StateExited     ContainerState = "exited"
	StateDead       ContainerState = "dead"
)

// Port is one published port binding.
type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"private_port"`
	PublicPort  uint16 `json:"public_port,omitempty"`
	Type        string `json:"type"`
}

// Mount is one filesystem mount attached to a container.
type Mount struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ReadWrite   bool   `json:"read_write"`
}

// Container is a managed container as of the last list fetch. Identity (ID)
// is stable across snapshot replacements; every other field is only as fresh
// as the fetch that produced it.
type Container struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Image      string            `json:"image"`
	ImageID    string            `json:"image_id"`
	Command    string            `json:"command"`
	Created    int64             `json:"created"`
	State      ContainerState    `json:"state"`
	Status     string            `json:"status"`
	Ports      []Port            `json:"ports,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	SizeRw     int64             `json:"size_rw,omitempty"`
	SizeRootFs int64             `json:"size_root_fs,omitempty"`
	Networks   []string          `json:"networks,omitempty"`
	Mounts     []Mount           `json:"mounts,omitempty"`
}

// DetectionError records a per-kind probe failure. Detection errors are
// non-fatal: one engine family failing to probe never hides the other.
type DetectionError struct {
	Kind  Kind   `json:"kind"`
	Error string `json:"error"`
}

// DetectionResult is the outcome of one detection cycle.
type DetectionResult struct {
	Runtimes    []Runtime        `json:"runtimes"`
	CompletedAt time.Time        `json:"completed_at"`
	Duration    time.Duration    `json:"duration"`
	Errors      []DetectionError `json:"errors,omitempty"`
}

// StatusUpdate is a pushed health event for one engine.
type StatusUpdate struct {
	RuntimeID string    `json:"runtime_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Op names a container lifecycle operation.
type Op string

const (
	OpStart   Op = "start"
	OpStop    Op = "stop"
	OpRestart Op = "restart"
	OpPause   Op = "pause"
	OpUnpause Op = "unpause"
	OpRemove  Op = "remove"
)

// OpArgs carries per-operation options. Timeout applies to stop and restart
// and is passed through to the engine unmodified; Force and RemoveVolumes
// apply to remove.
type OpArgs struct {
	Timeout       time.Duration
	Force         bool
	RemoveVolumes bool
}

// OperationResult is the per-container outcome of a lifecycle operation.
// Skipped marks a request dropped by the in-flight guard; it carries no error.
type OperationResult struct {
	ID      string `json:"id"`
	Ok      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListOptions filters a container list fetch.
type ListOptions struct {
	All     bool
	Size    bool
	Filters map[string]string
}
