package factory

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/engine/gemini"
	"github.com/go-go-golems/bookchat/pkg/engine/ollama"
	"github.com/go-go-golems/bookchat/pkg/engine/openai"
	"github.com/go-go-golems/bookchat/pkg/settings"
)

// NewEngineFromSettings picks the provider adapter for the configured api
// type. The returned engine may still be unconfigured (missing api key);
// that is surfaced at call time, not here.
func NewEngineFromSettings(s *settings.ChatSettings) (engine.Engine, error) {
	if s == nil || s.ApiType == nil {
		return nil, errors.New("no api type specified")
	}

	switch *s.ApiType {
	case settings.ApiTypeGemini:
		return gemini.NewGeminiEngine(s), nil
	case settings.ApiTypeOpenAI:
		return openai.NewOpenAIEngine(s), nil
	case settings.ApiTypeOllama:
		return ollama.NewOllamaEngine(s), nil
	}

	return nil, errors.Errorf("unknown api type %s", *s.ApiType)
}
