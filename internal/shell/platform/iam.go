package platform

import (
	"context"
)

// RuntimeTrustPolicy lets the runtime service assume a role.
const RuntimeTrustPolicy = `{"Statement":[{"Effect":"Allow","Action":["sts:AssumeRole"],"Principal":{"Service":["agentkit"]}}]}`

// RuntimePolicies are attached to generated runtime roles.
var RuntimePolicies = []string{"AgentKitRuntimeAccess", "CRReadOnlyAccess"}

// Role is an execution role.
type Role struct {
	RoleName string `json:"RoleName"`
	RoleID   int64  `json:"RoleId,omitempty"`
	Trn      string `json:"Trn,omitempty"`
}

type roleNameInput struct {
	RoleName string `json:"RoleName"`
}

type createRoleInput struct {
	RoleName                 string `json:"RoleName"`
	DisplayName              string `json:"DisplayName,omitempty"`
	TrustPolicyDocument      string `json:"TrustPolicyDocument"`
	Description              string `json:"Description,omitempty"`
	MaxSessionDurationSecond int    `json:"MaxSessionDuration,omitempty"`
}

type attachRolePolicyInput struct {
	RoleName   string `json:"RoleName"`
	PolicyName string `json:"PolicyName"`
	PolicyType string `json:"PolicyType"`
}

type roleOutput struct {
	Role Role `json:"Role"`
}

// GetRole returns a role. A missing role matches ErrNotFound.
func (c *Client) GetRole(ctx context.Context, name string) (*Role, error) {
	var out roleOutput
	if err := c.call(ctx, ServiceIAM, "GetRole", roleNameInput{RoleName: name}, &out); err != nil {
		return nil, err
	}
	return &out.Role, nil
}

// CreateRole creates a role trusted by the runtime service.
func (c *Client) CreateRole(ctx context.Context, name string) (*Role, error) {
	var out roleOutput
	in := createRoleInput{
		RoleName:            name,
		DisplayName:         name,
		TrustPolicyDocument: RuntimeTrustPolicy,
		Description:         "Execution role for agentkit runtimes",
	}
	if err := c.call(ctx, ServiceIAM, "CreateRole", in, &out); err != nil {
		return nil, err
	}
	return &out.Role, nil
}

// AttachRolePolicy attaches a system policy to a role.
func (c *Client) AttachRolePolicy(ctx context.Context, role, policy string) error {
	in := attachRolePolicyInput{RoleName: role, PolicyName: policy, PolicyType: "System"}
	return c.call(ctx, ServiceIAM, "AttachRolePolicy", in, nil)
}

// EnsureRole creates the role with RuntimePolicies attached unless it exists.
// created reports whether anything was created.
func (c *Client) EnsureRole(ctx context.Context, name string) (created bool, err error) {
	if _, err := c.GetRole(ctx, name); err == nil {
		return false, nil
	} else if !IsNotFound(err) {
		return false, err
	}

	if _, err := c.CreateRole(ctx, name); err != nil && !IsConflict(err) {
		return false, err
	}
	for _, p := range RuntimePolicies {
		if err := c.AttachRolePolicy(ctx, name, p); err != nil && !IsConflict(err) {
			return true, err
		}
	}
	return true, nil
}
