package platform

import (
	"context"
	"iter"
)

// =============================================================================
// Runtime Types
// =============================================================================

// EnvVar is one runtime environment variable.
type EnvVar struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// EnvVars converts a map to the API's list form, sorted by key.
func EnvVars(m map[string]string) []EnvVar {
	keys := sortedKeys(m)
	out := make([]EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, EnvVar{Key: k, Value: m[k]})
	}
	return out
}

// Runtime is the remote resource serving one agent.
type Runtime struct {
	RuntimeID      string   `json:"RuntimeId"`
	Name           string   `json:"Name"`
	Description    string   `json:"Description,omitempty"`
	Status         string   `json:"Status"`
	ImageURL       string   `json:"ImageUrl"`
	RoleName       string   `json:"RoleName,omitempty"`
	APIKeyName     string   `json:"ApiKeyName,omitempty"`
	APIKey         string   `json:"ApiKey,omitempty"`
	Endpoint       string   `json:"Endpoint,omitempty"`
	Envs           []EnvVar `json:"Envs,omitempty"`
	FailureLogURL  string   `json:"FailureLogUrl,omitempty"`
	FailureMessage string   `json:"FailureMessage,omitempty"`
	CreatedAt      string   `json:"CreatedAt,omitempty"`
	UpdatedAt      string   `json:"UpdatedAt,omitempty"`
}

// CreateRuntimeInput creates a runtime.
type CreateRuntimeInput struct {
	Name        string   `json:"Name"`
	Description string   `json:"Description,omitempty"`
	ImageURL    string   `json:"ImageUrl"`
	RoleName    string   `json:"RoleName"`
	APIKeyName  string   `json:"ApiKeyName"`
	Port        int      `json:"Port"`
	HealthPath  string   `json:"HealthPath,omitempty"`
	Envs        []EnvVar `json:"Envs,omitempty"`
	ClientToken string   `json:"ClientToken,omitempty"`
}

// CreateRuntimeOutput is returned by CreateRuntime.
type CreateRuntimeOutput struct {
	RuntimeID string `json:"RuntimeId"`
	APIKey    string `json:"ApiKey,omitempty"`
	Endpoint  string `json:"Endpoint,omitempty"`
}

// UpdateRuntimeInput replaces the image and environment of a runtime.
type UpdateRuntimeInput struct {
	RuntimeID   string   `json:"RuntimeId"`
	ImageURL    string   `json:"ImageUrl"`
	Description string   `json:"Description,omitempty"`
	Envs        []EnvVar `json:"Envs,omitempty"`
}

// ListRuntimesInput filters ListRuntimes.
type ListRuntimesInput struct {
	Name       string `json:"Name,omitempty"`
	MaxResults int    `json:"MaxResults,omitempty"`
	NextToken  string `json:"NextToken,omitempty"`
}

type listRuntimesOutput struct {
	Runtimes  []Runtime `json:"Runtimes"`
	NextToken string    `json:"NextToken"`
}

type runtimeIDInput struct {
	RuntimeID string `json:"RuntimeId"`
}

// =============================================================================
// Runtime Operations
// =============================================================================

// CreateRuntime creates a runtime and returns its id.
func (c *Client) CreateRuntime(ctx context.Context, in CreateRuntimeInput) (*CreateRuntimeOutput, error) {
	var out CreateRuntimeOutput
	if err := c.call(ctx, ServiceRuntime, "CreateRuntime", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRuntime returns a runtime. A missing runtime matches ErrNotFound.
func (c *Client) GetRuntime(ctx context.Context, runtimeID string) (*Runtime, error) {
	var out Runtime
	if err := c.call(ctx, ServiceRuntime, "GetRuntime", runtimeIDInput{RuntimeID: runtimeID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRuntime stages a new configuration. Depending on the platform the
// runtime moves to Ready directly or to UnReleased until ReleaseRuntime.
func (c *Client) UpdateRuntime(ctx context.Context, in UpdateRuntimeInput) error {
	return c.call(ctx, ServiceRuntime, "UpdateRuntime", in, nil)
}

// ReleaseRuntime makes a staged configuration serve traffic.
func (c *Client) ReleaseRuntime(ctx context.Context, runtimeID string) error {
	return c.call(ctx, ServiceRuntime, "ReleaseRuntime", runtimeIDInput{RuntimeID: runtimeID}, nil)
}

// DeleteRuntime deletes a runtime.
func (c *Client) DeleteRuntime(ctx context.Context, runtimeID string) error {
	return c.call(ctx, ServiceRuntime, "DeleteRuntime", runtimeIDInput{RuntimeID: runtimeID}, nil)
}

// ListRuntimes iterates over every runtime matching in, fetching pages with
// MaxResults/NextToken as the sequence is consumed.
func (c *Client) ListRuntimes(ctx context.Context, in ListRuntimesInput) iter.Seq2[Runtime, error] {
	return func(yield func(Runtime, error) bool) {
		page := in
		if page.MaxResults == 0 {
			page.MaxResults = 50
		}
		for {
			var out listRuntimesOutput
			if err := c.call(ctx, ServiceRuntime, "ListRuntimes", page, &out); err != nil {
				yield(Runtime{}, err)
				return
			}
			for _, r := range out.Runtimes {
				if !yield(r, nil) {
					return
				}
			}
			if out.NextToken == "" {
				return
			}
			page.NextToken = out.NextToken
		}
	}
}

// FindRuntimeByName returns the first runtime named name.
func (c *Client) FindRuntimeByName(ctx context.Context, name string) (*Runtime, error) {
	for r, err := range c.ListRuntimes(ctx, ListRuntimesInput{Name: name}) {
		if err != nil {
			return nil, err
		}
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, &APIError{Service: ServiceRuntime, Action: "ListRuntimes", Code: "RuntimeNotFound", Message: name}
}
