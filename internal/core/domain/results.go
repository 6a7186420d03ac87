package domain

import (
	"errors"

	"github.com/artpar/agentkit/internal/core/config"
)

// =============================================================================
// Artifact
// =============================================================================

// ImageInfo identifies a built container artifact.
type ImageInfo struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Digest     string `json:"digest,omitempty"`
	ID         string `json:"id,omitempty"`
}

// FullName returns "repository:tag".
func (i ImageInfo) FullName() string {
	if i.Tag == "" {
		return i.Repository
	}
	return i.Repository + ":" + i.Tag
}

// =============================================================================
// Results
// =============================================================================
//
// Every result carries Success, Error and ErrorCode. When Success is false the
// payload fields are meaningless; callers branch on Success first. Updates
// holds config fields to persist and may be set on failures too.

// BuildResult is returned by builders and Strategy.Build.
type BuildResult struct {
	Success   bool
	Error     string
	ErrorCode ErrorCode
	Image     *ImageInfo
	BuildLogs []string
	Updates   *config.Updates
}

// DeployResult is returned by runners and Strategy.Deploy.
type DeployResult struct {
	Success     bool
	Error       string
	ErrorCode   ErrorCode
	EndpointURL string
	ContainerID string
	ServiceID   string
	Updates     *config.Updates
}

// InvokeResult is returned by Strategy.Invoke. When IsStreaming is true the
// response is in Stream and must be drained or closed.
type InvokeResult struct {
	Success     bool
	Error       string
	ErrorCode   ErrorCode
	Response    any
	Stream      EventStream
	IsStreaming bool
}

// StatusResult is returned by Strategy.Status.
type StatusResult struct {
	Success     bool
	Error       string
	ErrorCode   ErrorCode
	Status      ServiceStatus
	EndpointURL string
	ContainerID string
	ServiceID   string
	Details     map[string]any
	Updates     *config.Updates
}

// LifecycleResult is returned by composite operations (launch, stop, destroy).
type LifecycleResult struct {
	Success   bool
	Error     string
	ErrorCode ErrorCode
	Operation string
	Build     *BuildResult
	Deploy    *DeployResult
	Updates   *config.Updates
}

// =============================================================================
// Failure Constructors
// =============================================================================

// BuildFailure returns a failed BuildResult for err.
func BuildFailure(err error, updates *config.Updates) BuildResult {
	return BuildResult{Success: false, Error: err.Error(), ErrorCode: codeOr(err, ErrorCodeBuildFailed), Updates: updates}
}

// DeployFailure returns a failed DeployResult for err.
func DeployFailure(err error, updates *config.Updates) DeployResult {
	return DeployResult{Success: false, Error: err.Error(), ErrorCode: codeOr(err, ErrorCodeDeployFailed), Updates: updates}
}

// InvokeFailure returns a failed InvokeResult for err.
func InvokeFailure(err error) InvokeResult {
	return InvokeResult{Success: false, Error: err.Error(), ErrorCode: codeOr(err, ErrorCodeInvokeFailed)}
}

// StatusFailure returns a failed StatusResult for err.
func StatusFailure(err error) StatusResult {
	return StatusResult{Success: false, Error: err.Error(), ErrorCode: codeOr(err, ErrorCodeUnknown), Status: ServiceStatusUnknown}
}

// LifecycleFailure returns a failed LifecycleResult for err.
func LifecycleFailure(operation string, err error, updates *config.Updates) LifecycleResult {
	return LifecycleResult{Success: false, Operation: operation, Error: err.Error(), ErrorCode: codeOr(err, ErrorCodeUnknown), Updates: updates}
}

// codeOr returns the code carried by err, or fallback when err carries no
// *Error. An explicit UNKNOWN_ERROR is kept.
func codeOr(err error, fallback ErrorCode) ErrorCode {
	var e *Error
	if errors.As(err, &e) && e.Code != ErrorCodeNone {
		return e.Code
	}
	return fallback
}
