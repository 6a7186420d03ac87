package platform

import (
	"context"
)

// Pipeline run statuses.
const (
	RunStatusQueued    = "Queued"
	RunStatusRunning   = "Running"
	RunStatusSucceeded = "Succeeded"
	RunStatusFailed    = "Failed"
	RunStatusCancelled = "Cancelled"
)

// Pipeline is a remote build pipeline.
type Pipeline struct {
	PipelineID string `json:"Id"`
	Name       string `json:"Name"`
}

// CreatePipelineInput creates an image build pipeline that reads the source
// archive from object storage and pushes to the registry.
type CreatePipelineInput struct {
	Name          string `json:"Name"`
	Description   string `json:"Description,omitempty"`
	SourceBucket  string `json:"SourceBucket"`
	RegistryName  string `json:"Registry"`
	Namespace     string `json:"Namespace"`
	Repository    string `json:"Repository"`
	DockerfileRef string `json:"Dockerfile,omitempty"`
}

// RunPipelineInput starts one run.
type RunPipelineInput struct {
	PipelineID string            `json:"PipelineId"`
	Parameters map[string]string `json:"Parameters,omitempty"`
}

// PipelineRun is one execution of a pipeline.
type PipelineRun struct {
	RunID       string `json:"Id"`
	PipelineID  string `json:"PipelineId"`
	Status      string `json:"Status"`
	ImageURL    string `json:"ImageUrl,omitempty"`
	ImageDigest string `json:"ImageDigest,omitempty"`
	LogURL      string `json:"LogUrl,omitempty"`
	Message     string `json:"Message,omitempty"`
}

type pipelineIDInput struct {
	PipelineID string `json:"Id"`
}

type pipelineRunInput struct {
	PipelineID string `json:"PipelineId"`
	RunID      string `json:"Id"`
}

type idOutput struct {
	ID string `json:"Id"`
}

// CreatePipeline creates a pipeline and returns its id.
func (c *Client) CreatePipeline(ctx context.Context, in CreatePipelineInput) (string, error) {
	var out idOutput
	if err := c.call(ctx, ServicePipeline, "CreatePipeline", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetPipeline returns a pipeline. A missing pipeline matches ErrNotFound.
func (c *Client) GetPipeline(ctx context.Context, pipelineID string) (*Pipeline, error) {
	var out Pipeline
	if err := c.call(ctx, ServicePipeline, "GetPipeline", pipelineIDInput{PipelineID: pipelineID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunPipeline starts a run and returns its id.
func (c *Client) RunPipeline(ctx context.Context, in RunPipelineInput) (string, error) {
	var out idOutput
	if err := c.call(ctx, ServicePipeline, "RunPipeline", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetPipelineRun returns the state of a run.
func (c *Client) GetPipelineRun(ctx context.Context, pipelineID, runID string) (*PipelineRun, error) {
	var out PipelineRun
	in := pipelineRunInput{PipelineID: pipelineID, RunID: runID}
	if err := c.call(ctx, ServicePipeline, "GetPipelineRun", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
