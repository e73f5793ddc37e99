package settings

import (
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type ApiType string

const (
	ApiTypeGemini ApiType = "gemini"
	ApiTypeOpenAI ApiType = "openai"
	ApiTypeOllama ApiType = "ollama"
)

const (
	DefaultGeminiModel = "gemini-2.0-flash-001"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaModel = "llama3"

	// DefaultTimeout bounds a single backend call. Expiry is treated as a
	// backend error, never left unbounded.
	DefaultTimeout = 60 * time.Second
)

// ChatSettings configures the backend adapter: which provider to talk to,
// with which model and credentials, and the generation knobs passed through
// to it. API keys are stored per provider under "<api-type>-api-key".
type ChatSettings struct {
	ApiType           *ApiType          `yaml:"api_type,omitempty"`
	Model             *string           `yaml:"model,omitempty"`
	Temperature       *float64          `yaml:"temperature,omitempty"`
	MaxResponseTokens *int              `yaml:"max_response_tokens,omitempty"`
	APIKeys           map[string]string `yaml:"api_keys,omitempty"`
	BaseUrls          map[string]string `yaml:"base_urls,omitempty"`
	Timeout           *time.Duration    `yaml:"timeout,omitempty"`
}

func NewChatSettings() *ChatSettings {
	apiType := ApiTypeGemini
	return &ChatSettings{
		ApiType:  &apiType,
		APIKeys:  map[string]string{},
		BaseUrls: map[string]string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// APIKey returns the credential for the configured provider, or "" when none
// has been supplied.
func (s *ChatSettings) APIKey() string {
	if s.ApiType == nil {
		return ""
	}
	return s.APIKeys[string(*s.ApiType)+"-api-key"]
}

// BaseURL returns the provider endpoint override, or "" for the default.
func (s *ChatSettings) BaseURL() string {
	if s.ApiType == nil {
		return ""
	}
	return s.BaseUrls[string(*s.ApiType)+"-base-url"]
}

// IsConfigured reports whether the backend can be called at all. Ollama
// talks to a local daemon and needs no credential; the hosted providers
// require an api key.
func (s *ChatSettings) IsConfigured() bool {
	if s.ApiType == nil {
		return false
	}
	if *s.ApiType == ApiTypeOllama {
		return true
	}
	return s.APIKey() != ""
}

// ModelName returns the configured model, falling back to the provider's
// default.
func (s *ChatSettings) ModelName() string {
	if s.Model != nil && *s.Model != "" {
		return *s.Model
	}
	if s.ApiType == nil {
		return ""
	}
	switch *s.ApiType {
	case ApiTypeGemini:
		return DefaultGeminiModel
	case ApiTypeOpenAI:
		return DefaultOpenAIModel
	case ApiTypeOllama:
		return DefaultOllamaModel
	}
	return ""
}

func (s *ChatSettings) TimeoutDuration() time.Duration {
	if s.Timeout != nil {
		return *s.Timeout
	}
	return DefaultTimeout
}

// UpdateFromViper fills settings from bound flags and config keys. Only keys
// that were actually set override the current values.
func (s *ChatSettings) UpdateFromViper(v *viper.Viper) {
	if v.IsSet("ai-api-type") {
		apiType := ApiType(v.GetString("ai-api-type"))
		s.ApiType = &apiType
	}
	if v.IsSet("ai-model") {
		model := v.GetString("ai-model")
		s.Model = &model
	}
	if v.IsSet("ai-temperature") {
		temperature := v.GetFloat64("ai-temperature")
		s.Temperature = &temperature
	}
	if v.IsSet("ai-max-response-tokens") {
		maxTokens := v.GetInt("ai-max-response-tokens")
		s.MaxResponseTokens = &maxTokens
	}
	if v.IsSet("ai-timeout") {
		timeout := v.GetDuration("ai-timeout")
		s.Timeout = &timeout
	}

	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	if s.BaseUrls == nil {
		s.BaseUrls = map[string]string{}
	}
	for _, apiType := range []ApiType{ApiTypeGemini, ApiTypeOpenAI, ApiTypeOllama} {
		keyName := string(apiType) + "-api-key"
		if v.IsSet(keyName) && v.GetString(keyName) != "" {
			s.APIKeys[keyName] = v.GetString(keyName)
		}
		urlName := string(apiType) + "-base-url"
		if v.IsSet(urlName) && v.GetString(urlName) != "" {
			s.BaseUrls[urlName] = v.GetString(urlName)
		}
	}
}

// NewChatSettingsFromYAML parses a settings file.
func NewChatSettingsFromYAML(b []byte) (*ChatSettings, error) {
	s := NewChatSettings()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not parse chat settings")
	}
	return s, nil
}
