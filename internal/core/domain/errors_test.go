package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Error Tests
// =============================================================================

func TestError_Message(t *testing.T) {
	err := NewError(ErrorCodeConfigInvalid, "Build", "image_tag is required", nil)
	assert.Equal(t, "Build: image_tag is required", err.Error())
}

func TestError_MessageAndCause(t *testing.T) {
	err := NewError(ErrorCodeBuildFailed, "Build", "build weather:v1", errors.New("step 3 failed"))
	assert.Equal(t, "Build: build weather:v1: step 3 failed", err.Error())
}

func TestError_FallsBackToWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewError(ErrorCodeDeployFailed, "", "", inner)

	assert.Equal(t, "connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("deploy: %w", NewError(ErrorCodeDeployNotReady, "Wait", "timeout", nil))

	assert.Equal(t, ErrorCodeNone, CodeOf(nil))
	assert.Equal(t, ErrorCodeUnknown, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrorCodeDeployNotReady, CodeOf(wrapped))
}

func TestErrorCode_IsValid(t *testing.T) {
	assert.True(t, ErrorCodeServiceNotRunning.IsValid())
	assert.False(t, ErrorCode("SOMETHING_ELSE").IsValid())
}

// =============================================================================
// Failure Constructor Tests
// =============================================================================

func TestBuildFailure_DefaultsToBuildFailed(t *testing.T) {
	r := BuildFailure(errors.New("exit status 1"), nil)

	assert.False(t, r.Success)
	assert.Equal(t, ErrorCodeBuildFailed, r.ErrorCode)
	assert.Equal(t, "exit status 1", r.Error)
}

func TestDeployFailure_KeepsCarriedCode(t *testing.T) {
	r := DeployFailure(NewError(ErrorCodeDeployNotReady, "Wait", "runtime entered Error", nil), nil)
	assert.Equal(t, ErrorCodeDeployNotReady, r.ErrorCode)
}

func TestFailures_KeepExplicitUnknown(t *testing.T) {
	err := fmt.Errorf("recovered: %w", NewError(ErrorCodeUnknown, "deploy", "internal error: nil map", nil))

	assert.Equal(t, ErrorCodeUnknown, BuildFailure(err, nil).ErrorCode)
	assert.Equal(t, ErrorCodeUnknown, DeployFailure(err, nil).ErrorCode)
	assert.Equal(t, ErrorCodeUnknown, InvokeFailure(err).ErrorCode)
	assert.Equal(t, ErrorCodeInvokeFailed, InvokeFailure(errors.New("eof")).ErrorCode)
}

func TestImageInfo_FullName(t *testing.T) {
	assert.Equal(t, "agent:v1", ImageInfo{Repository: "agent", Tag: "v1"}.FullName())
	assert.Equal(t, "agent", ImageInfo{Repository: "agent"}.FullName())
}
