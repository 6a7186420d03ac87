package platform

import (
	"context"
	"fmt"
)

// Registry instance statuses.
const (
	InstanceStatusCreating = "Creating"
	InstanceStatusRunning  = "Running"
	InstanceStatusFailed   = "Failed"
)

// Instance is a container registry instance.
type Instance struct {
	Name   string `json:"Name"`
	Status string `json:"Status"`
}

// RegistryCredentials authenticate a push to an instance.
type RegistryCredentials struct {
	Username   string `json:"Username"`
	Token      string `json:"Token"`
	ExpireTime string `json:"ExpireTime,omitempty"`
}

type instanceInput struct {
	Registry string `json:"Registry"`
}

type createInstanceInput struct {
	Name        string `json:"Name"`
	ClientToken string `json:"ClientToken,omitempty"`
}

type namespaceInput struct {
	Registry string `json:"Registry"`
	Name     string `json:"Name"`
}

type repositoryInput struct {
	Registry  string `json:"Registry"`
	Namespace string `json:"Namespace"`
	Name      string `json:"Name"`
}

// RegistryHost returns the push host of an instance.
func RegistryHost(instance, region string) string {
	return fmt.Sprintf("%s-%s.cr.volces.com", instance, region)
}

// GetInstance returns a registry instance. A missing instance matches
// ErrNotFound.
func (c *Client) GetInstance(ctx context.Context, name string) (*Instance, error) {
	var out Instance
	if err := c.call(ctx, ServiceRegistry, "GetRegistry", instanceInput{Registry: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInstance starts creating a registry instance. Poll GetInstance until
// it is Running.
func (c *Client) CreateInstance(ctx context.Context, name string) error {
	err := c.call(ctx, ServiceRegistry, "CreateRegistry", createInstanceInput{Name: name}, nil)
	if IsConflict(err) {
		return nil
	}
	return err
}

// EnsureNamespace creates a namespace unless it exists.
func (c *Client) EnsureNamespace(ctx context.Context, instance, namespace string) (created bool, err error) {
	err = c.call(ctx, ServiceRegistry, "CreateNamespace", namespaceInput{Registry: instance, Name: namespace}, nil)
	switch {
	case err == nil:
		return true, nil
	case IsConflict(err):
		return false, nil
	default:
		return false, err
	}
}

// EnsureRepository creates a repository unless it exists.
func (c *Client) EnsureRepository(ctx context.Context, instance, namespace, repo string) (created bool, err error) {
	in := repositoryInput{Registry: instance, Namespace: namespace, Name: repo}
	err = c.call(ctx, ServiceRegistry, "CreateRepository", in, nil)
	switch {
	case err == nil:
		return true, nil
	case IsConflict(err):
		return false, nil
	default:
		return false, err
	}
}

// GetAuthorizationToken returns temporary push credentials for an instance.
func (c *Client) GetAuthorizationToken(ctx context.Context, instance string) (*RegistryCredentials, error) {
	var out RegistryCredentials
	if err := c.call(ctx, ServiceRegistry, "GetAuthorizationToken", instanceInput{Registry: instance}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
