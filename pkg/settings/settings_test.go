package settings

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConfiguredRequiresAPIKey(t *testing.T) {
	s := NewChatSettings()
	assert.False(t, s.IsConfigured())

	s.APIKeys["gemini-api-key"] = "test-key"
	assert.True(t, s.IsConfigured())
	assert.Equal(t, "test-key", s.APIKey())
}

func TestOllamaNeedsNoKey(t *testing.T) {
	s := NewChatSettings()
	apiType := ApiTypeOllama
	s.ApiType = &apiType

	assert.True(t, s.IsConfigured())
}

func TestModelNameFallsBackToProviderDefault(t *testing.T) {
	s := NewChatSettings()
	assert.Equal(t, DefaultGeminiModel, s.ModelName())

	model := "gemini-1.5-pro"
	s.Model = &model
	assert.Equal(t, "gemini-1.5-pro", s.ModelName())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewChatSettings()
	s.APIKeys["gemini-api-key"] = "original"

	c := s.Clone()
	c.APIKeys["gemini-api-key"] = "changed"

	assert.Equal(t, "original", s.APIKeys["gemini-api-key"])
}

func TestUpdateFromViper(t *testing.T) {
	v := viper.New()
	v.Set("ai-api-type", "openai")
	v.Set("ai-model", "gpt-4o")
	v.Set("ai-timeout", "30s")
	v.Set("openai-api-key", "sk-test")

	s := NewChatSettings()
	s.UpdateFromViper(v)

	require.NotNil(t, s.ApiType)
	assert.Equal(t, ApiTypeOpenAI, *s.ApiType)
	assert.Equal(t, "gpt-4o", s.ModelName())
	assert.Equal(t, 30*time.Second, s.TimeoutDuration())
	assert.Equal(t, "sk-test", s.APIKey())
}

func TestNewChatSettingsFromYAML(t *testing.T) {
	s, err := NewChatSettingsFromYAML([]byte(`
api_type: gemini
model: gemini-1.5-flash
api_keys:
  gemini-api-key: from-yaml
`))
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-flash", s.ModelName())
	assert.Equal(t, "from-yaml", s.APIKey())
	assert.True(t, s.IsConfigured())
}
