package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// AutoToken is the literal written to the config file for unresolved values.
const AutoToken = "Auto"

// =============================================================================
// AutoString
// =============================================================================

// AutoString is a string field that may not be materialized yet.
//
// The zero value is Auto. An empty string is treated the same as Auto, so a
// cleared field (for example runtime_id after destroy) becomes "generate on
// next run" again. In YAML the Auto state is written as the literal token
// "Auto"; reading accepts any casing.
type AutoString struct {
	value string
}

// Auto returns an unresolved AutoString.
func Auto() AutoString {
	return AutoString{}
}

// Value returns a resolved AutoString holding s.
func Value(s string) AutoString {
	if strings.EqualFold(strings.TrimSpace(s), AutoToken) {
		return AutoString{}
	}
	return AutoString{value: s}
}

// IsAuto reports whether the value still needs to be generated.
func (a AutoString) IsAuto() bool {
	return a.value == ""
}

// Get returns the concrete value and whether it is resolved.
func (a AutoString) Get() (string, bool) {
	return a.value, a.value != ""
}

// Resolve returns the concrete value, calling generate when the field is Auto.
// The second return value reports whether a new value was generated.
//
// Example:
//
//	name, generated := cfg.RuntimeName.Resolve(func() string { return "agentkit-abc" })
//	if generated {
//	    updates.Add("runtime_name", name)
//	}
func (a AutoString) Resolve(generate func() string) (string, bool) {
	if !a.IsAuto() {
		return a.value, false
	}
	return generate(), true
}

// String returns the file representation of the value.
func (a AutoString) String() string {
	if a.IsAuto() {
		return AutoToken
	}
	return a.value
}

// MarshalYAML implements yaml.Marshaler.
func (a AutoString) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *AutoString) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*a = Value(s)
	return nil
}
