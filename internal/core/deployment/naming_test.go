package deployment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Slug Tests
// =============================================================================

func TestSlug_CamelCase(t *testing.T) {
	assert.Equal(t, "weather-agent", Slug("WeatherAgent"))
}

func TestSlug_Underscores(t *testing.T) {
	assert.Equal(t, "my-agent", Slug("my_agent"))
}

func TestSlug_DropsInvalidCharacters(t *testing.T) {
	assert.Equal(t, "my-agent", Slug("my agent!"))
}

// =============================================================================
// Generated Names Tests
// =============================================================================

func TestRuntimeName(t *testing.T) {
	assert.Equal(t, "agentkit-weather-agent-1a2b3c4d", RuntimeName("weather_agent", "1a2b3c4d"))
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "agentkit-runtime-role-abcd1234", RoleName("abcd1234"))
}

func TestAPIKeyName(t *testing.T) {
	assert.Equal(t, "agentkit-apikey-abcd1234", APIKeyName("abcd1234"))
}

func TestBucketName_Truncated(t *testing.T) {
	name := BucketName(strings.Repeat("agent", 20), "abcd1234")
	assert.LessOrEqual(t, len(name), 63)
	assert.True(t, strings.HasPrefix(name, "agentkit-agent"))
	assert.False(t, strings.HasSuffix(name, "-"))
}

func TestPipelineName(t *testing.T) {
	assert.Equal(t, "agentkit-chat-build-abcd1234", PipelineName("chat", "abcd1234"))
}

func TestNewSuffix(t *testing.T) {
	a, b := NewSuffix(), NewSuffix()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestTimestampTag(t *testing.T) {
	got := TimestampTag(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "20250102150405", got)
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "builds/chat-20250102150405.tar.gz", ObjectKey("/builds/", "chat", now))
	assert.Equal(t, "chat-20250102150405.tar.gz", ObjectKey("", "chat", now))
}

func TestImageRepository(t *testing.T) {
	got := ImageRepository("cr.example.com/", "agentkit", "chat")
	assert.Equal(t, "cr.example.com/agentkit/chat", got)
}
