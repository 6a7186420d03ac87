package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Updates Tests
// =============================================================================

func TestUpdates_Empty(t *testing.T) {
	u := NewUpdates()
	assert.False(t, u.HasUpdates())
	assert.Equal(t, 0, u.Len())

	var nilUpdates *Updates
	assert.False(t, nilUpdates.HasUpdates())
	assert.Empty(t, nilUpdates.Keys())
}

func TestUpdates_AddAndGet(t *testing.T) {
	u := NewUpdates()
	u.Add("runtime_id", "rt-1")
	u.Add("deploy_timeout", 30)

	assert.True(t, u.HasUpdates())
	assert.Equal(t, "rt-1", u.GetString("runtime_id"))
	v, ok := u.Get("deploy_timeout")
	assert.True(t, ok)
	assert.Equal(t, 30, v)
	assert.Equal(t, []string{"deploy_timeout", "runtime_id"}, u.Keys())
}

func TestUpdates_AddAutoString(t *testing.T) {
	u := NewUpdates()
	u.Add("runtime_id", Auto())
	assert.Equal(t, AutoToken, u.GetString("runtime_id"))
}

func TestUpdates_MergeLaterWins(t *testing.T) {
	a := NewUpdates()
	a.Add("image_id", "sha256:old")
	a.Add("image_name", "agent")

	b := NewUpdates()
	b.Add("image_id", "sha256:new")

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, "sha256:new", a.GetString("image_id"))
	assert.Equal(t, "agent", a.GetString("image_name"))
	assert.Equal(t, 2, a.Len())
}

func TestUpdates_ZeroValueAdd(t *testing.T) {
	var u Updates
	u.Add("k", "v")
	assert.True(t, u.HasUpdates())
}
