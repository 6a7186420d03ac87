package deployment

import (
	"maps"
	"regexp"
)

// =============================================================================
// Environment Expansion Functions
// =============================================================================

// envRefRegex matches ${VAR} and ${VAR:-default}.
var envRefRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvs resolves ${VAR} and ${VAR:-default} references in env values
// using lookup (typically os.LookupEnv). Unknown references without a
// default are kept verbatim so the container sees what the user wrote.
//
// Example:
//
//	ExpandEnvs(map[string]string{"KEY": "${API_KEY}"}, os.LookupEnv)
func ExpandEnvs(envs map[string]string, lookup func(string) (string, bool)) map[string]string {
	out := make(map[string]string, len(envs))
	for k, v := range envs {
		out[k] = envRefRegex.ReplaceAllStringFunc(v, func(match string) string {
			sub := envRefRegex.FindStringSubmatch(match)
			if val, ok := lookup(sub[1]); ok {
				return val
			}
			if sub[2] != "" {
				return sub[3]
			}
			return match
		})
	}
	return out
}

// MergeEnvs layers env maps; later maps win.
func MergeEnvs(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
