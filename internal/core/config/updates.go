package config

import (
	"maps"
	"slices"
)

// =============================================================================
// ConfigUpdates
// =============================================================================

// Updates accumulates configuration fields discovered or generated during an
// operation. Keys are YAML field names of the active launch-type section.
//
// Strategies never write into their config; they return Updates and the
// executor applies them once the operation has finished, including after a
// partial failure so that retries are incremental.
type Updates struct {
	values map[string]any
}

// NewUpdates returns an empty accumulator.
func NewUpdates() *Updates {
	return &Updates{values: make(map[string]any)}
}

// Add records a field value, replacing an earlier value for the same key.
func (u *Updates) Add(key string, value any) {
	if u.values == nil {
		u.values = make(map[string]any)
	}
	if a, ok := value.(AutoString); ok {
		value = a.String()
	}
	u.values[key] = value
}

// Merge copies every entry of other into u. Later values win.
func (u *Updates) Merge(other *Updates) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		u.Add(k, v)
	}
}

// HasUpdates reports whether anything was recorded.
func (u *Updates) HasUpdates() bool {
	return u != nil && len(u.values) > 0
}

// Get returns the recorded value for key.
func (u *Updates) Get(key string) (any, bool) {
	if u == nil {
		return nil, false
	}
	v, ok := u.values[key]
	return v, ok
}

// GetString returns the recorded value for key when it is a string.
func (u *Updates) GetString(key string) string {
	v, _ := u.Get(key)
	s, _ := v.(string)
	return s
}

// Keys returns the recorded keys in sorted order.
func (u *Updates) Keys() []string {
	if u == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(u.values))
}

// Len returns the number of recorded keys.
func (u *Updates) Len() int {
	if u == nil {
		return 0
	}
	return len(u.values)
}

// Map returns a copy of the recorded values.
func (u *Updates) Map() map[string]any {
	if u == nil {
		return map[string]any{}
	}
	return maps.Clone(u.values)
}
