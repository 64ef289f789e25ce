package relay

import "fmt"

// Subject hierarchy for the status relay. Companion processes (tray icon,
// secondary windows) subscribe to these to mirror engine health without
// their own backend connection.
const (
	// Engine subjects.
	SubjectEngineStatus   = "stevedore.engine.%s.status"
	SubjectEngineDetected = "stevedore.engine.detected"
	SubjectEngineSelected = "stevedore.engine.selected"

	// Container subjects.
	SubjectContainerOperation = "stevedore.container.%s.operation"
	SubjectSnapshotRefreshed  = "stevedore.container.snapshot"

	// Wildcard patterns for subscriptions.
	SubjectAllEngines    = "stevedore.engine.>"
	SubjectAllContainers = "stevedore.container.>"
	SubjectAll           = "stevedore.>"
)

// EngineSubject returns a subject for a specific engine.
func EngineSubject(pattern, runtimeID string) string {
	return fmt.Sprintf(pattern, runtimeID)
}

// ContainerSubject returns a subject for a specific container.
func ContainerSubject(pattern, containerID string) string {
	return fmt.Sprintf(pattern, containerID)
}
