package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Volume Parsing Functions
// =============================================================================

// VolumeMount is a parsed "src:dst[:ro|rw]" mount.
type VolumeMount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ParseVolumeMounts parses volume mount strings. A source starting with "/"
// or "." is a bind mount; anything else is a named volume.
//
// Example:
//
//	ParseVolumeMounts([]string{"./data:/app/data:ro"})
//	// Result: [{./data /app/data true}]
func ParseVolumeMounts(specs []string) ([]VolumeMount, error) {
	result := make([]VolumeMount, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(strings.TrimSpace(spec), ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid volume %q (expected src:dst[:ro])", spec)
		}
		if !strings.HasPrefix(parts[1], "/") {
			return nil, fmt.Errorf("invalid volume %q: target must be an absolute path", spec)
		}
		m := VolumeMount{Source: parts[0], Target: parts[1]}
		if len(parts) == 3 {
			switch parts[2] {
			case "ro":
				m.ReadOnly = true
			case "rw":
			default:
				return nil, fmt.Errorf("invalid volume mode %q in %q", parts[2], spec)
			}
		}
		result = append(result, m)
	}
	return result, nil
}

// IsBindMount reports whether the mount source is a host path.
func (m VolumeMount) IsBindMount() bool {
	return strings.HasPrefix(m.Source, "/") || strings.HasPrefix(m.Source, ".") || strings.HasPrefix(m.Source, "~")
}
