package domain

// =============================================================================
// Service Status
// =============================================================================

// ServiceStatus is the engine-level view of a deployment, independent of the
// substrate it runs on.
type ServiceStatus string

const (
	ServiceStatusRunning     ServiceStatus = "running"
	ServiceStatusStopped     ServiceStatus = "stopped"
	ServiceStatusNotDeployed ServiceStatus = "not_deployed"
	ServiceStatusDeploying   ServiceStatus = "deploying"
	ServiceStatusUnhealthy   ServiceStatus = "unhealthy"
	ServiceStatusError       ServiceStatus = "error"
	ServiceStatusUnknown     ServiceStatus = "unknown"
)

// ContainerServiceStatus maps a container engine state to a ServiceStatus.
//
// Example:
//
//	ContainerServiceStatus("exited") // returns ServiceStatusStopped
func ContainerServiceStatus(state string) ServiceStatus {
	switch state {
	case "running", "restarting":
		return ServiceStatusRunning
	case "created", "paused", "exited", "dead", "removing":
		return ServiceStatusStopped
	case "":
		return ServiceStatusNotDeployed
	default:
		return ServiceStatusUnknown
	}
}

// RuntimeServiceStatus maps a remote runtime status to a ServiceStatus. A
// Ready runtime is reported as running only when healthy.
func RuntimeServiceStatus(status RuntimeStatus, healthy bool) ServiceStatus {
	switch status {
	case RuntimeStatusReady:
		if healthy {
			return ServiceStatusRunning
		}
		return ServiceStatusUnhealthy
	case RuntimeStatusCreating, RuntimeStatusUpdating, RuntimeStatusUnReleased, RuntimeStatusReleasing:
		return ServiceStatusDeploying
	case RuntimeStatusError:
		return ServiceStatusError
	case RuntimeStatusDeleting:
		return ServiceStatusStopped
	default:
		return ServiceStatusUnknown
	}
}
