package deployment

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Port Parsing Functions
// =============================================================================

// PortMapping is a parsed "host:container/proto" port mapping.
type PortMapping struct {
	HostPort      int
	ContainerPort int
	Protocol      string
}

// ParsePortMappings parses port mapping strings.
// Default protocol is "tcp". A bare "8000" maps the same port on both sides.
//
// Example:
//
//	ParsePortMappings([]string{"9000:8000", "53:53/udp"})
//	// Result: [{9000 8000 tcp} {53 53 udp}]
func ParsePortMappings(specs []string) ([]PortMapping, error) {
	result := make([]PortMapping, 0, len(specs))
	for _, spec := range specs {
		m, err := parsePortMapping(spec)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

func parsePortMapping(spec string) (PortMapping, error) {
	spec = strings.TrimSpace(spec)
	proto := "tcp"
	if base, p, ok := strings.Cut(spec, "/"); ok {
		spec, proto = base, strings.ToLower(p)
		if proto != "tcp" && proto != "udp" {
			return PortMapping{}, fmt.Errorf("invalid protocol %q in port mapping", p)
		}
	}

	hostPart, containerPart, found := strings.Cut(spec, ":")
	if !found {
		containerPart = hostPart
	}
	hostPort, err := parsePort(hostPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	containerPort, err := parsePort(containerPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	return PortMapping{HostPort: hostPort, ContainerPort: containerPort, Protocol: proto}, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

// WithInvokePort returns mappings that always expose the invoke port. When no
// mapping targets it, invokePort:invokePort is appended.
func WithInvokePort(mappings []PortMapping, invokePort int) []PortMapping {
	for _, m := range mappings {
		if m.ContainerPort == invokePort && m.Protocol == "tcp" {
			return mappings
		}
	}
	out := make([]PortMapping, 0, len(mappings)+1)
	out = append(out, mappings...)
	return append(out, PortMapping{HostPort: invokePort, ContainerPort: invokePort, Protocol: "tcp"})
}

// InvokeHostPort returns the host port that reaches the invoke port inside
// the container, or 0 when it is not published.
func InvokeHostPort(mappings []PortMapping, invokePort int) int {
	for _, m := range mappings {
		if m.ContainerPort == invokePort && m.Protocol == "tcp" {
			return m.HostPort
		}
	}
	return 0
}

// LocalEndpoint returns the loopback URL for a published host port.
//
// Example:
//
//	LocalEndpoint(8000) // returns "http://localhost:8000"
func LocalEndpoint(hostPort int) string {
	return fmt.Sprintf("http://localhost:%d", hostPort)
}
