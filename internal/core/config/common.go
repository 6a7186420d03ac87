package config

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Launch Types
// =============================================================================

// LaunchType selects the strategy that builds and runs the agent.
type LaunchType string

const (
	LaunchTypeLocal  LaunchType = "local"
	LaunchTypeCloud  LaunchType = "cloud"
	LaunchTypeHybrid LaunchType = "hybrid"
)

// ParseLaunchType parses a launch type, case-insensitively.
func ParseLaunchType(s string) (LaunchType, error) {
	switch lt := LaunchType(strings.ToLower(strings.TrimSpace(s))); lt {
	case LaunchTypeLocal, LaunchTypeCloud, LaunchTypeHybrid:
		return lt, nil
	default:
		return "", fmt.Errorf("unknown launch type %q (expected local, cloud or hybrid)", s)
	}
}

// =============================================================================
// Common Config
// =============================================================================

// Supported languages.
const (
	LanguagePython = "python"
	LanguageGo     = "golang"
)

// Agent types.
const (
	AgentTypeBasic = "basic"
	AgentTypeA2A   = "a2a"
)

// CommonConfig holds launch-type independent facts about the project.
type CommonConfig struct {
	AgentName        string            `yaml:"agent_name"`
	EntryPoint       string            `yaml:"entry_point"`
	Description      string            `yaml:"description,omitempty"`
	Language         string            `yaml:"language" default:"python"`
	LanguageVersion  string            `yaml:"language_version,omitempty"`
	DependenciesFile string            `yaml:"dependencies_file,omitempty"`
	AgentType        string            `yaml:"agent_type,omitempty" default:"basic"`
	LaunchType       LaunchType        `yaml:"launch_type"`
	RuntimeEnvs      map[string]string `yaml:"runtime_envs,omitempty"`
}

var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// IsA2A reports whether the agent speaks the peer-to-peer agent protocol.
func (c CommonConfig) IsA2A() bool {
	return strings.EqualFold(c.AgentType, AgentTypeA2A)
}

// ResolvedLanguageVersion returns the configured language version or the
// default for the language.
func (c CommonConfig) ResolvedLanguageVersion() string {
	if c.LanguageVersion != "" {
		return c.LanguageVersion
	}
	if c.Language == LanguageGo {
		return "1.24"
	}
	return "3.12"
}

// ResolvedDependenciesFile returns the dependency manifest path.
func (c CommonConfig) ResolvedDependenciesFile() string {
	if c.DependenciesFile != "" {
		return c.DependenciesFile
	}
	if c.Language == LanguageGo {
		return "go.mod"
	}
	return "requirements.txt"
}

// Validate checks the common section.
func (c CommonConfig) Validate() error {
	var errs ValidationErrors
	switch {
	case c.AgentName == "":
		errs = append(errs, ValidationError{Field: "common.agent_name", Message: "agent_name is required"})
	case !agentNamePattern.MatchString(c.AgentName):
		errs = append(errs, ValidationError{Field: "common.agent_name", Message: "agent_name may only contain letters, digits, '-' and '_' (max 64)"})
	}
	if c.EntryPoint == "" {
		errs = append(errs, ValidationError{Field: "common.entry_point", Message: "entry_point is required"})
	}
	if c.Language != LanguagePython && c.Language != LanguageGo {
		errs = append(errs, ValidationError{Field: "common.language", Message: fmt.Sprintf("unsupported language %q", c.Language)})
	}
	if _, err := ParseLaunchType(string(c.LaunchType)); err != nil {
		errs = append(errs, ValidationError{Field: "common.launch_type", Message: err.Error()})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationError describes one invalid or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}
