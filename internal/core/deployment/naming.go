package deployment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

const namePrefix = "agentkit"

// NewSuffix returns a short random suffix for generated resource names.
func NewSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Slug converts an agent name into a lowercase kebab-case identifier that is
// accepted by registries, buckets and the runtime API.
//
// Example:
//
//	Slug("WeatherAgent") // returns "weather-agent"
func Slug(name string) string {
	s := strcase.ToKebab(name)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteRune(r)
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// RuntimeName generates a runtime name.
// Pattern: agentkit-{slug}-{suffix}
//
// Example:
//
//	RuntimeName("weather_agent", "1a2b3c4d") // returns "agentkit-weather-agent-1a2b3c4d"
func RuntimeName(agentName, suffix string) string {
	return join(namePrefix, Slug(agentName), suffix)
}

// RoleName generates the runtime execution role name.
// Pattern: agentkit-runtime-role-{suffix}
func RoleName(suffix string) string {
	return join(namePrefix, "runtime-role", suffix)
}

// APIKeyName generates the runtime API key name.
// Pattern: agentkit-apikey-{suffix}
func APIKeyName(suffix string) string {
	return join(namePrefix, "apikey", suffix)
}

// BucketName generates an object storage bucket name (max 63 characters).
// Pattern: agentkit-{slug}-{suffix}
func BucketName(agentName, suffix string) string {
	return truncate(join(namePrefix, Slug(agentName), suffix), 63)
}

// RegistryInstanceName generates a registry instance name.
// Pattern: agentkit-{suffix}
func RegistryInstanceName(suffix string) string {
	return join(namePrefix, suffix)
}

// RegistryNamespace returns the default registry namespace.
func RegistryNamespace() string {
	return namePrefix
}

// RepositoryName returns the registry repository for an agent.
func RepositoryName(agentName string) string {
	return Slug(agentName)
}

// PipelineName generates a build pipeline name.
// Pattern: agentkit-{slug}-build-{suffix}
func PipelineName(agentName, suffix string) string {
	return join(namePrefix, Slug(agentName), "build", suffix)
}

// ObjectKey returns the storage key for a source archive.
// Pattern: {prefix}/{slug}-{timestamp}.tar.gz
func ObjectKey(prefix, agentName string, now time.Time) string {
	key := fmt.Sprintf("%s-%s.tar.gz", Slug(agentName), TimestampTag(now))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// TimestampTag returns an image tag derived from the time in UTC.
//
// Example:
//
//	TimestampTag(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)) // returns "20250102150405"
func TimestampTag(now time.Time) string {
	return now.UTC().Format("20060102150405")
}

// ImageRepository returns "{host}/{namespace}/{repo}".
func ImageRepository(registryHost, namespace, repo string) string {
	return strings.TrimSuffix(registryHost, "/") + "/" + namespace + "/" + repo
}

func join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "-")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}
